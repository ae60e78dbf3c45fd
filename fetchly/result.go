package fetchly

import (
	"fmt"
	"net/http"
	"time"
)

// Result is the outcome of one request. Every call returns one; failures
// never surface as a separate error value.
//
// T is the type a 2xx body is decoded into and E the type of a non-2xx
// body. Exactly one of Data, Error and InternalError is set, except when an
// error response has an empty body, which leaves all three nil.
//
// Example usage:
//
//	res := fetchly.Get[Product, Problem](ctx, client, "/products/1")
//	switch {
//	case res.IsSuccess():
//	    fmt.Println(res.Data.Title)
//	case res.IsAPIError():
//	    fmt.Println(res.StatusCode, res.Error.Detail)
//	default:
//	    fmt.Println(res.StatusText, res.InternalError)
//	}
type Result[T, E any] struct {
	// Config is the request configuration actually sent.
	Config *RequestConfig

	Status     Status
	StatusCode int
	StatusText string

	// Data is the decoded body of a 2xx response.
	Data *T

	// HasError is true whenever Status is StatusError.
	HasError bool

	// ErrorType is nil on success.
	ErrorType *ErrorType

	// Error is the decoded body of a non-2xx response.
	Error *E

	// InternalError is the failure of an exchange that did not produce a
	// classifiable response: a network failure, a decoder failure, or a
	// panic raised inside the pipeline.
	InternalError error

	// Headers are the response headers. Nil when no response was received.
	Headers http.Header

	// Duration covers the whole call, from option merging to decoding.
	Duration time.Duration

	// RequestID identifies the call in debug logs and spans.
	RequestID string

	// Trace holds the network timing of the exchange when the host is
	// backed by net/http.
	Trace *TraceInfo
}

// IsSuccess reports whether the response status was 2xx.
func (r *Result[T, E]) IsSuccess() bool {
	return r.Status == StatusSuccess
}

// IsAPIError reports whether the host returned a non-2xx response.
func (r *Result[T, E]) IsAPIError() bool {
	return r.ErrorType != nil && *r.ErrorType == ErrorTypeAPI
}

// IsNetworkError reports whether the exchange failed at the transport level.
func (r *Result[T, E]) IsNetworkError() bool {
	return r.ErrorType != nil && *r.ErrorType == ErrorTypeNetwork
}

// IsInternalError reports whether the call failed for any other reason.
func (r *Result[T, E]) IsInternalError() bool {
	return r.ErrorType != nil && *r.ErrorType == ErrorTypeInternal
}

// Err returns nil on success and a *ResultError otherwise, for callers that
// prefer ordinary error flow.
//
//	if err := res.Err(); err != nil {
//	    return fmt.Errorf("load product: %w", err)
//	}
func (r *Result[T, E]) Err() error {
	if r.ErrorType == nil {
		return nil
	}
	return &ResultError{
		Type:    *r.ErrorType,
		Code:    r.StatusCode,
		Text:    r.StatusText,
		Payload: payloadOf(r.Error),
		Cause:   r.InternalError,
	}
}

// succeed fills the success branch.
func (r *Result[T, E]) succeed(code int, text string) {
	r.Status = StatusSuccess
	r.StatusCode = code
	r.StatusText = text
	r.HasError = false
	r.ErrorType = nil
}

// reject fills the API branch.
func (r *Result[T, E]) reject(code int, text string) {
	r.Status = StatusError
	r.StatusCode = code
	r.StatusText = text
	r.HasError = true
	r.ErrorType = ptr(ErrorTypeAPI)
}

// fail fills a failure branch and clears any partially decoded payload.
func (r *Result[T, E]) fail(f failure, err error) {
	r.Status = StatusError
	r.StatusCode = f.statusCode
	r.StatusText = f.statusText
	r.HasError = true
	r.ErrorType = ptr(f.errorType)
	r.Data = nil
	r.Error = nil
	r.InternalError = err
}

// ResultError is the error form of a failed Result.
type ResultError struct {
	Type ErrorType
	Code int
	Text string

	// Payload is the decoded error body of an API failure.
	Payload any

	// Cause is the underlying failure of a network or internal error.
	Cause error
}

func (e *ResultError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetchly: %s error: %s: %v", e.Type, e.Text, e.Cause)
	}
	return fmt.Sprintf("fetchly: %s error: %d %s", e.Type, e.Code, e.Text)
}

func (e *ResultError) Unwrap() error {
	return e.Cause
}

// isSuccessCode reports whether code is in [200, 299].
func isSuccessCode(code int) bool {
	return code >= 200 && code <= 299
}

// statusText returns the reason phrase sent by the server, falling back to
// the canonical text for the code.
func statusText(resp *http.Response) string {
	prefix := fmt.Sprintf("%d ", resp.StatusCode)
	if len(resp.Status) > len(prefix) && resp.Status[:len(prefix)] == prefix {
		return resp.Status[len(prefix):]
	}
	return http.StatusText(resp.StatusCode)
}
