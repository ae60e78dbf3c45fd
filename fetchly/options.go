package fetchly

import (
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/fetchly-go/fetchly"

	// DefaultTimeout bounds a request when no timeout is configured.
	DefaultTimeout = 30 * time.Second
)

// Pass-through values forwarded to the host. Only Redirect is interpreted by
// the default host; the rest travel on the RequestConfig.
const (
	DefaultMode           = "same-origin"
	DefaultCache          = "default"
	DefaultCredentials    = "same-origin"
	DefaultRedirect       = RedirectFollow
	DefaultReferrer       = "about:client"
	DefaultReferrerPolicy = "no-referrer"

	RedirectFollow = "follow"
	RedirectManual = "manual"
	RedirectError  = "error"
)

// RequestHook observes the outgoing request right before the host is called.
type RequestHook func(req *http.Request)

// PayloadHook observes the decoded body of a completed exchange. The payload
// is nil when the body was empty.
type PayloadHook func(payload any)

// FailureHook observes a request that failed before a response was classified.
type FailureHook func(err error)

// NextConfig carries framework cache directives. It is attached to GET
// requests only.
type NextConfig struct {
	Revalidate *int     `json:"revalidate,omitempty" yaml:"revalidate,omitempty"`
	Tags       []string `json:"tags,omitempty"       yaml:"tags,omitempty"`
}

// Options is the request configuration record. It is used both for client
// defaults and per-call overrides; nil fields fall through to the next tier.
//
// Build it with Option functions:
//
//	client := fetchly.New(
//	    fetchly.WithBaseURL("https://api.example.com"),
//	    fetchly.WithHeader("Authorization", "Bearer "+token),
//	    fetchly.WithTimeout(5*time.Second),
//	)
type Options struct {
	BaseURL *string
	Headers map[string]string
	Params  Params
	Timeout *time.Duration

	Mode           *string
	Cache          *string
	Credentials    *string
	Redirect       *string
	Referrer       *string
	ReferrerPolicy *string

	// ResponseFormat forces a decoder. When nil the Content-Type is sniffed.
	ResponseFormat *ResponseFormat

	// Proxy is a proxy URL for this request. The default host falls back to
	// the environment when empty.
	Proxy *string

	Next *NextConfig

	// AdditionalOptions are copied into RequestConfig.Extra.
	AdditionalOptions map[string]any

	ShowLogs *bool

	OnRequest       RequestHook
	OnSuccess       PayloadHook
	OnError         PayloadHook
	OnInternalError FailureHook

	// Host performs the exchange. Defaults to a shared *http.Client built
	// from DefaultHostConfig.
	Host Doer

	// Logger receives the ShowLogs records.
	Logger *zerolog.Logger

	// The fields below are read when a client is configured and ignored on
	// individual calls.

	TracerProvider       trace.TracerProvider
	MeterProvider        metric.MeterProvider
	PrometheusRegisterer prometheus.Registerer
	ServiceName          string
}

// Option sets a field of Options.
type Option func(*Options)

// NewOptions builds an Options record from opts.
func NewOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// HardDefaults returns the values used for every field left unset by both
// the call and the client.
func HardDefaults() Options {
	return Options{
		BaseURL:        ptr(""),
		Headers:        map[string]string{"Content-Type": "application/json"},
		Timeout:        ptr(DefaultTimeout),
		Mode:           ptr(DefaultMode),
		Cache:          ptr(DefaultCache),
		Credentials:    ptr(DefaultCredentials),
		Redirect:       ptr(DefaultRedirect),
		Referrer:       ptr(DefaultReferrer),
		ReferrerPolicy: ptr(DefaultReferrerPolicy),
		ShowLogs:       ptr(false),
	}
}

// withHardDefaults fills every unset field of o from HardDefaults. Fields are
// replaced whole, so a client configured with its own headers does not
// inherit the default Content-Type.
func withHardDefaults(o Options) Options {
	hard := HardDefaults()

	o.BaseURL = coalesce(o.BaseURL, hard.BaseURL)
	if o.Headers == nil {
		o.Headers = hard.Headers
	}
	o.Timeout = coalesce(o.Timeout, hard.Timeout)
	o.Mode = coalesce(o.Mode, hard.Mode)
	o.Cache = coalesce(o.Cache, hard.Cache)
	o.Credentials = coalesce(o.Credentials, hard.Credentials)
	o.Redirect = coalesce(o.Redirect, hard.Redirect)
	o.Referrer = coalesce(o.Referrer, hard.Referrer)
	o.ReferrerPolicy = coalesce(o.ReferrerPolicy, hard.ReferrerPolicy)
	o.ShowLogs = coalesce(o.ShowLogs, hard.ShowLogs)
	return o
}

// mergeOptions layers call over instance. Scalar fields take the first set
// value; Headers and AdditionalOptions are a shallow union where call keys
// win; Params are merged in order; Next is merged per directive. Hooks of
// both tiers are kept, the instance hook running first.
func mergeOptions(call, instance Options) Options {
	merged := Options{
		BaseURL:           coalesce(call.BaseURL, instance.BaseURL),
		Headers:           mergeHeaders(instance.Headers, call.Headers),
		Params:            instance.Params.Merge(call.Params),
		Timeout:           coalesce(call.Timeout, instance.Timeout),
		Mode:              coalesce(call.Mode, instance.Mode),
		Cache:             coalesce(call.Cache, instance.Cache),
		Credentials:       coalesce(call.Credentials, instance.Credentials),
		Redirect:          coalesce(call.Redirect, instance.Redirect),
		Referrer:          coalesce(call.Referrer, instance.Referrer),
		ReferrerPolicy:    coalesce(call.ReferrerPolicy, instance.ReferrerPolicy),
		ResponseFormat:    coalesce(call.ResponseFormat, instance.ResponseFormat),
		Proxy:             coalesce(call.Proxy, instance.Proxy),
		Next:              mergeNext(call.Next, instance.Next),
		AdditionalOptions: mergeAdditional(instance.AdditionalOptions, call.AdditionalOptions),
		ShowLogs:          coalesce(call.ShowLogs, instance.ShowLogs),
		OnRequest:         chainHooks(instance.OnRequest, call.OnRequest),
		OnSuccess:         chainHooks(instance.OnSuccess, call.OnSuccess),
		OnError:           chainHooks(instance.OnError, call.OnError),
		OnInternalError:   chainHooks(instance.OnInternalError, call.OnInternalError),
		Host:              call.Host,
		Logger:            coalesce(call.Logger, instance.Logger),

		TracerProvider:       instance.TracerProvider,
		MeterProvider:        instance.MeterProvider,
		PrometheusRegisterer: instance.PrometheusRegisterer,
		ServiceName:          instance.ServiceName,
	}

	if merged.Host == nil {
		merged.Host = instance.Host
	}
	return merged
}

// chainHooks returns a hook that calls first then second, skipping nil ones.
func chainHooks[A any, F ~func(A)](first, second F) F {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	}
	return func(a A) {
		first(a)
		second(a)
	}
}

// mergeHeaders canonicalises keys so "content-type" overrides "Content-Type".
func mergeHeaders(base, override map[string]string) map[string]string {
	if base == nil && override == nil {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range override {
		out[http.CanonicalHeaderKey(k)] = v
	}
	return out
}

func mergeAdditional(base, override map[string]any) map[string]any {
	if base == nil && override == nil {
		return nil
	}
	out := make(map[string]any, len(base)+len(override))
	maps.Copy(out, base)
	maps.Copy(out, override)
	return out
}

func mergeNext(call, instance *NextConfig) *NextConfig {
	if call == nil && instance == nil {
		return nil
	}
	var c, i NextConfig
	if call != nil {
		c = *call
	}
	if instance != nil {
		i = *instance
	}

	merged := &NextConfig{Revalidate: coalesce(c.Revalidate, i.Revalidate)}
	switch {
	case c.Tags != nil:
		merged.Tags = slices.Clone(c.Tags)
	case i.Tags != nil:
		merged.Tags = slices.Clone(i.Tags)
	}
	return merged
}

// defined reports whether at least one directive is set.
func (n *NextConfig) defined() bool {
	return n != nil && (n.Revalidate != nil || n.Tags != nil)
}

// =============================================================================
// Option constructors
// =============================================================================

// WithBaseURL sets the prefix concatenated verbatim with every request URL.
// No slash normalisation is done.
func WithBaseURL(baseURL string) Option {
	return func(o *Options) {
		o.BaseURL = ptr(baseURL)
	}
}

// WithHeaders sets several headers at once. Keys already set on the same
// Options are overwritten.
func WithHeaders(headers map[string]string) Option {
	return func(o *Options) {
		if o.Headers == nil {
			o.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			o.Headers[k] = v
		}
	}
}

// WithHeader sets a single header.
func WithHeader(key, value string) Option {
	return WithHeaders(map[string]string{key: value})
}

// WithParams merges params into the query parameters.
func WithParams(params Params) Option {
	return func(o *Options) {
		if o.Params == nil {
			o.Params = make(Params, 0, len(params))
		}
		o.Params = o.Params.Merge(params)
	}
}

// WithParam sets a single query parameter.
func WithParam(key string, value any) Option {
	return WithParams(Params{{Key: key, Value: value}})
}

// WithTimeout bounds the whole request, including reading the body.
// Zero aborts immediately; negative values fail the request as internal.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = ptr(d)
	}
}

// WithMode sets the pass-through request mode.
func WithMode(mode string) Option {
	return func(o *Options) {
		o.Mode = ptr(mode)
	}
}

// WithCache sets the pass-through cache mode.
func WithCache(cache string) Option {
	return func(o *Options) {
		o.Cache = ptr(cache)
	}
}

// WithCredentials sets the pass-through credentials mode.
func WithCredentials(credentials string) Option {
	return func(o *Options) {
		o.Credentials = ptr(credentials)
	}
}

// WithRedirect sets the redirect policy: RedirectFollow, RedirectManual or
// RedirectError.
func WithRedirect(redirect string) Option {
	return func(o *Options) {
		o.Redirect = ptr(redirect)
	}
}

// WithReferrer sets the pass-through referrer.
func WithReferrer(referrer string) Option {
	return func(o *Options) {
		o.Referrer = ptr(referrer)
	}
}

// WithReferrerPolicy sets the pass-through referrer policy.
func WithReferrerPolicy(policy string) Option {
	return func(o *Options) {
		o.ReferrerPolicy = ptr(policy)
	}
}

// WithResponseFormat forces the response decoder.
func WithResponseFormat(format ResponseFormat) Option {
	return func(o *Options) {
		o.ResponseFormat = ptr(format)
	}
}

// WithProxy routes the request through proxyURL.
func WithProxy(proxyURL string) Option {
	return func(o *Options) {
		o.Proxy = ptr(proxyURL)
	}
}

// WithNext sets the cache directives sent with GET requests.
func WithNext(next NextConfig) Option {
	return func(o *Options) {
		o.Next = &next
	}
}

// WithRevalidate sets the revalidate directive in seconds.
func WithRevalidate(seconds int) Option {
	return func(o *Options) {
		if o.Next == nil {
			o.Next = &NextConfig{}
		}
		o.Next.Revalidate = ptr(seconds)
	}
}

// WithTags sets the cache tags directive.
func WithTags(tags ...string) Option {
	return func(o *Options) {
		if o.Next == nil {
			o.Next = &NextConfig{}
		}
		o.Next.Tags = append([]string{}, tags...)
	}
}

// WithAdditionalOptions adds arbitrary keys to the outgoing RequestConfig.
func WithAdditionalOptions(extra map[string]any) Option {
	return func(o *Options) {
		if o.AdditionalOptions == nil {
			o.AdditionalOptions = make(map[string]any, len(extra))
		}
		maps.Copy(o.AdditionalOptions, extra)
	}
}

// WithShowLogs enables one debug log record per request.
func WithShowLogs(enabled bool) Option {
	return func(o *Options) {
		o.ShowLogs = ptr(enabled)
	}
}

// WithOnRequest registers a hook that runs before the host is called.
func WithOnRequest(hook RequestHook) Option {
	return func(o *Options) {
		o.OnRequest = hook
	}
}

// WithOnSuccess registers a hook that runs after a 2xx response.
func WithOnSuccess(hook PayloadHook) Option {
	return func(o *Options) {
		o.OnSuccess = hook
	}
}

// WithOnError registers a hook that runs after a non-2xx response.
func WithOnError(hook PayloadHook) Option {
	return func(o *Options) {
		o.OnError = hook
	}
}

// WithOnInternalError registers a hook that runs when the exchange fails
// without a classifiable response.
func WithOnInternalError(hook FailureHook) Option {
	return func(o *Options) {
		o.OnInternalError = hook
	}
}

// WithHost replaces the host HTTP primitive.
//
// Example:
//
//	client := fetchly.New(fetchly.WithHost(&http.Client{Transport: myTransport}))
func WithHost(host Doer) Option {
	return func(o *Options) {
		o.Host = host
	}
}

// WithLogger sets the logger used for ShowLogs records.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = &logger
	}
}

// WithTracerProvider sets the OpenTelemetry TracerProvider.
// If not set, the global provider from otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}

// WithMeterProvider sets the OpenTelemetry MeterProvider.
// If not set, the global provider from otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Options) {
		o.MeterProvider = mp
	}
}

// WithPrometheusRegisterer registers request counters and a latency
// histogram on reg.
func WithPrometheusRegisterer(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.PrometheusRegisterer = reg
	}
}

// WithServiceName sets the "fetchly.client.name" attribute on spans and
// metrics, identifying this client in traces.
func WithServiceName(name string) Option {
	return func(o *Options) {
		o.ServiceName = name
	}
}

// =============================================================================
// helpers
// =============================================================================

func ptr[T any](v T) *T {
	return &v
}

func coalesce[T any](values ...*T) *T {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func deref[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}
