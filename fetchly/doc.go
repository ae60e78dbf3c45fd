// Package fetchly provides an HTTP client that never fails with an error
// value: every call returns a Result describing a success, an API failure,
// a network failure or an internal failure.
//
// # Features
//
//   - Two-tier options: client defaults merged with per-call overrides
//   - Ordered query parameters rendered without percent-encoding
//   - Content-Type driven decoding into typed success and error payloads
//   - Lifecycle hooks: OnRequest, OnSuccess, OnError, OnInternalError
//   - Per-request timeouts with network-class classification
//   - OpenTelemetry tracing and metrics, optional Prometheus collectors
//   - Structured debug records via zerolog
//   - YAML configuration files
//
// # Quick Start
//
//	client := fetchly.New(
//	    fetchly.WithBaseURL("https://dummyjson.com"),
//	    fetchly.WithTimeout(10*time.Second),
//	)
//
//	// Untyped: payloads decode into any
//	res := client.Get(ctx, "/products/1")
//
//	// Typed: 2xx bodies decode into Product, others into Problem
//	typed := fetchly.Get[Product, Problem](ctx, client, "/products/1")
//	if typed.IsSuccess() {
//	    fmt.Println(typed.Data.Title)
//	}
//
// Package-level calls with a nil client use a process-wide default client,
// which is reconfigured with Configure:
//
//	fetchly.Configure(fetchly.WithBaseURL("https://dummyjson.com"))
//	res := fetchly.Get[Product, any](ctx, nil, "/products/1")
//
// # Option Merging
//
// Each call resolves every field as call value, else client value, else the
// hard default (see HardDefaults). Headers and AdditionalOptions are merged
// key by key with call keys winning; header keys compare case-insensitively.
// Params keep the client order, with call params overriding in place and new
// keys appended. Hooks of both tiers run, the client hook first.
//
//	client := fetchly.New(
//	    fetchly.WithParams(fetchly.Params{{Key: "limit", Value: 10}}),
//	    fetchly.WithHeader("Authorization", "Bearer "+token),
//	)
//	res := client.Get(ctx, "/products", fetchly.WithParam("skip", 20))
//	// GET /products?limit=10&skip=20
//
// # Outcomes
//
// A Result is in exactly one branch:
//
//	Success   2xx              Data holds the decoded body
//	API       non-2xx          Error holds the decoded body
//	Network   no exchange      StatusCode 0, InternalError holds the cause
//	Internal  anything else    StatusCode 500, InternalError holds the cause
//
// Exactly one of OnSuccess, OnError or OnInternalError fires per call.
// Timeouts, cancellation, DNS, connect and TLS failures are Network; use
// NetworkReason for the finer cause. Decoder failures and panics raised by
// OnRequest or the host are Internal.
//
// # Response Decoding
//
// WithResponseFormat forces a decoder. Otherwise the Content-Type is matched
// by substring: "application/json" is JSON, anything containing "text" is a
// string, "blob" a Blob, "form-data" a *multipart.Form and "array-buffer"
// raw bytes. Unknown types fall back to JSON. An empty 2xx body is an
// internal error for JSON and form data and an empty value otherwise; an
// empty error body leaves Error nil.
//
// # Host
//
// The exchange is delegated to a Doer. By default it is a shared
// *http.Client built from DefaultHostConfig, which honours the Redirect and
// Proxy options. Presets are available for other workloads:
//
//	client := fetchly.New(
//	    fetchly.WithHost(fetchly.NewHost(fetchly.LowLatencyHostConfig())),
//	)
//
// Custom hosts can read the effective configuration of each request with
// RequestConfigFromContext. MockHost is a Doer for tests.
//
// # Observability
//
// Every call opens a client span named "HTTP <METHOD>" and propagates W3C
// trace context. Metrics are recorded under the "fetchly.client." prefix:
//
//	client := fetchly.New(
//	    fetchly.WithTracerProvider(tp),
//	    fetchly.WithMeterProvider(mp),
//	    fetchly.WithPrometheusRegisterer(prometheus.DefaultRegisterer),
//	    fetchly.WithServiceName("catalog-client"),
//	)
//
// WithShowLogs(true) writes one debug record per call, including a cURL
// reproduction of the request.
//
// # Configuration Files
//
//	cfg, err := fetchly.LoadConfig("fetchly.yaml")
//	if err != nil {
//	    return err
//	}
//	client := fetchly.New(cfg.Options()...)
package fetchly
