package fetchly

import "net/http"

// Doer is the host HTTP primitive every exchange is delegated to.
// *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// DoerFunc adapts an ordinary function to the Doer interface.
type DoerFunc func(*http.Request) (*http.Response, error)

// Do calls f(req).
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Method is the HTTP method of a request.
type Method string

// Methods exposed by the client facade.
const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
)

func (m Method) String() string {
	return string(m)
}

// Status is the coarse outcome of a request.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrorType tags the failure branch of a Result.
type ErrorType string

const (
	// ErrorTypeAPI means the host completed the exchange with a non-2xx status.
	ErrorTypeAPI ErrorType = "api"

	// ErrorTypeNetwork means the exchange did not complete: DNS, connect,
	// TLS, redirect policy, timeout or cancellation.
	ErrorTypeNetwork ErrorType = "network"

	// ErrorTypeInternal covers everything else, such as encoder or decoder
	// failures and panics raised before the outcome is classified.
	ErrorTypeInternal ErrorType = "internal"
)

func (t ErrorType) String() string {
	return string(t)
}
