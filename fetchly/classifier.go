package fetchly

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// StatusCarrier is implemented by errors that carry an HTTP status. A host
// that fails with such an error, and a status outside 2xx, produces an API
// failure instead of a network or internal one.
//
// Example:
//
//	type upstreamError struct{ code int }
//
//	func (e upstreamError) Error() string      { return "upstream failed" }
//	func (e upstreamError) StatusCode() int    { return e.code }
//	func (e upstreamError) StatusText() string { return http.StatusText(e.code) }
type StatusCarrier interface {
	error
	StatusCode() int
	StatusText() string
}

// PanicError wraps a value recovered from a panic inside the request
// pipeline, such as one raised by an OnRequest hook or the host.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("fetchly: recovered panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

const (
	networkErrorText  = "Network Error"
	internalErrorText = "Internal Error"
)

// failure is the classification of an exchange that did not yield a
// decodable response.
type failure struct {
	errorType  ErrorType
	statusCode int
	statusText string
}

// classifyFailure maps an error escaping the exchange to its Result branch.
// A decoder failure is always Internal. An error carrying a non-2xx status
// is API; transport-level failures, timeouts and cancellation are Network
// with status 0; anything else is Internal with status 500.
func classifyFailure(err error) failure {
	var decErr *decodeError
	if errors.As(err, &decErr) {
		return internalFailure
	}

	var carrier StatusCarrier
	if errors.As(err, &carrier) {
		if code := carrier.StatusCode(); code < 200 || code > 299 {
			return failure{errorType: ErrorTypeAPI, statusCode: code, statusText: carrier.StatusText()}
		}
	}

	if isNetworkError(err) {
		return failure{errorType: ErrorTypeNetwork, statusCode: 0, statusText: networkErrorText}
	}

	return internalFailure
}

var internalFailure = failure{
	errorType:  ErrorTypeInternal,
	statusCode: http.StatusInternalServerError,
	statusText: internalErrorText,
}

// isNetworkError reports whether err means the exchange did not complete at
// the transport level.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	// A recovered panic is internal even when it wraps a network error.
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return false
	}

	// 1. Timeouts and cancellation
	if errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	// 2. Errors from http.Client.Do and the net package
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// 3. Syscall-level failures surfaced by custom hosts
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	// 4. A connection closed mid-body
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// Fine-grained causes of a network failure, as returned by NetworkReason.
const (
	ReasonTimeout           = "timeout"
	ReasonCancelled         = "cancelled"
	ReasonConnectionRefused = "connection_refused"
	ReasonConnectionReset   = "connection_reset"
	ReasonDNSError          = "dns_error"
	ReasonTLSError          = "tls_error"
	ReasonRedirectBlocked   = "redirect_blocked"
	ReasonEOF               = "eof"
	ReasonUnknown           = "unknown"
)

// NetworkReason returns the cause of a network failure, for example
// ReasonTimeout or ReasonDNSError. It returns "" for a nil error.
//
// Example:
//
//	res := client.Get(ctx, "/slow", fetchly.WithTimeout(time.Second))
//	if res.IsNetworkError() && fetchly.NetworkReason(res.InternalError) == fetchly.ReasonTimeout {
//	    // ...
//	}
func NetworkReason(err error) string {
	if err == nil {
		return ""
	}

	// Our own timeout is checked first: it surfaces as a cancellation too.
	if errors.Is(err, ErrTimeout) {
		return ReasonTimeout
	}
	if errors.Is(err, ErrRedirectBlocked) {
		return ReasonRedirectBlocked
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ReasonDNSError
	}

	var tlsRecordErr tls.RecordHeaderError
	if errors.As(err, &tlsRecordErr) {
		return ReasonTLSError
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return ReasonTLSError
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ReasonConnectionRefused
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return ReasonConnectionReset
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ReasonEOF
	}

	// Fallback for wrapped errors from third-party transports
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"):
		return ReasonTimeout
	case strings.Contains(errStr, "connection refused"):
		return ReasonConnectionRefused
	case strings.Contains(errStr, "connection reset"):
		return ReasonConnectionReset
	case strings.Contains(errStr, "no such host"):
		return ReasonDNSError
	case strings.Contains(errStr, "x509"), strings.Contains(errStr, "tls:"):
		return ReasonTLSError
	case strings.Contains(errStr, "eof"):
		return ReasonEOF
	}
	return ReasonUnknown
}
