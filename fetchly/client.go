package fetchly

import (
	"context"
	"sync/atomic"
)

// Client sends requests with a set of instance defaults. It is safe for
// concurrent use, including calls to Configure while requests are in flight.
//
// Create a Client using New():
//
//	client := fetchly.New(
//	    fetchly.WithBaseURL("https://api.example.com"),
//	    fetchly.WithServiceName("catalog-client"),
//	)
//
//	res := client.Get(ctx, "/products/1")
//	if res.HasError {
//	    // ...
//	}
type Client struct {
	state atomic.Pointer[clientState]
}

// clientState is the immutable snapshot a call reads once.
type clientState struct {
	// defaults are the instance options with every unset field resolved
	// from HardDefaults.
	defaults Options

	telemetry *telemetry
	prom      *promCollector
}

// New creates a Client with the given instance defaults.
//
// Example:
//
//	client := fetchly.New(
//	    fetchly.WithBaseURL("https://dummyjson.com"),
//	    fetchly.WithHeader("Authorization", "Bearer "+token),
//	    fetchly.WithTimeout(10*time.Second),
//	    fetchly.WithShowLogs(true),
//	)
func New(opts ...Option) *Client {
	c := &Client{}
	c.Configure(opts...)
	return c
}

// Configure replaces the instance defaults wholesale. Options not given
// here fall back to the hard defaults, not to the previous configuration.
// Calls already in flight keep the defaults they started with.
func (c *Client) Configure(opts ...Option) {
	defaults := withHardDefaults(NewOptions(opts...))
	c.state.Store(&clientState{
		defaults:  defaults,
		telemetry: newTelemetry(defaults),
		prom:      newPromCollector(defaults.PrometheusRegisterer),
	})
}

// Defaults returns a copy of the current instance defaults.
func (c *Client) Defaults() Options {
	return c.state.Load().defaults
}

// Get sends a GET request. The body of the response is decoded into any;
// use the package-level Get for typed results.
func (c *Client) Get(ctx context.Context, url string, opts ...Option) *Result[any, any] {
	return do[any, any](ctx, c, MethodGet, url, nil, opts)
}

// Post sends body as a POST request.
func (c *Client) Post(ctx context.Context, url string, body any, opts ...Option) *Result[any, any] {
	return do[any, any](ctx, c, MethodPost, url, body, opts)
}

// Put sends body as a PUT request.
func (c *Client) Put(ctx context.Context, url string, body any, opts ...Option) *Result[any, any] {
	return do[any, any](ctx, c, MethodPut, url, body, opts)
}

// Patch sends body as a PATCH request.
func (c *Client) Patch(ctx context.Context, url string, body any, opts ...Option) *Result[any, any] {
	return do[any, any](ctx, c, MethodPatch, url, body, opts)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, url string, opts ...Option) *Result[any, any] {
	return do[any, any](ctx, c, MethodDelete, url, nil, opts)
}

// =============================================================================
// Typed calls
// =============================================================================

// Get sends a GET request and decodes a 2xx body into T and any other body
// into E. A nil client uses the default client.
//
// Example:
//
//	type Product struct {
//	    ID    int    `json:"id"`
//	    Title string `json:"title"`
//	}
//
//	res := fetchly.Get[Product, map[string]any](ctx, client, "/products/1")
//	if res.IsSuccess() {
//	    fmt.Println(res.Data.Title)
//	}
func Get[T, E any](ctx context.Context, c *Client, url string, opts ...Option) *Result[T, E] {
	return do[T, E](ctx, c, MethodGet, url, nil, opts)
}

// Post sends body as a POST request. See Get.
func Post[T, E any](ctx context.Context, c *Client, url string, body any, opts ...Option) *Result[T, E] {
	return do[T, E](ctx, c, MethodPost, url, body, opts)
}

// Put sends body as a PUT request. See Get.
func Put[T, E any](ctx context.Context, c *Client, url string, body any, opts ...Option) *Result[T, E] {
	return do[T, E](ctx, c, MethodPut, url, body, opts)
}

// Patch sends body as a PATCH request. See Get.
func Patch[T, E any](ctx context.Context, c *Client, url string, body any, opts ...Option) *Result[T, E] {
	return do[T, E](ctx, c, MethodPatch, url, body, opts)
}

// Delete sends a DELETE request. See Get.
func Delete[T, E any](ctx context.Context, c *Client, url string, opts ...Option) *Result[T, E] {
	return do[T, E](ctx, c, MethodDelete, url, nil, opts)
}

// Do sends a request with an explicit method. body may be nil.
func Do[T, E any](
	ctx context.Context,
	c *Client,
	method Method,
	url string,
	body any,
	opts ...Option,
) *Result[T, E] {
	return do[T, E](ctx, c, method, url, body, opts)
}

// =============================================================================
// Default client
// =============================================================================

// defaultClient backs the package-level calls made with a nil client.
var defaultClient = New()

// Default returns the process-wide client.
func Default() *Client {
	return defaultClient
}

// Configure replaces the defaults of the process-wide client.
func Configure(opts ...Option) {
	defaultClient.Configure(opts...)
}
