package fetchly

import (
	"context"
	"maps"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// RequestConfig is the effective configuration of one outgoing request.
//
// It is returned on every Result and attached to the request context, so a
// custom host can honour the pass-through fields:
//
//	host := fetchly.DoerFunc(func(req *http.Request) (*http.Response, error) {
//	    cfg := fetchly.RequestConfigFromContext(req.Context())
//	    if cfg != nil && cfg.Cache == "no-store" {
//	        // ...
//	    }
//	    return http.DefaultClient.Do(req)
//	})
type RequestConfig struct {
	Method  Method
	URL     string
	Headers map[string]string

	Mode           string
	Cache          string
	Credentials    string
	Redirect       string
	Referrer       string
	ReferrerPolicy string

	Timeout time.Duration
	Proxy   string

	// Next is set only on GET requests with at least one directive.
	Next *NextConfig

	// Body holds the JSON-encoded request body. It is nil for form bodies
	// and for requests without a body.
	Body []byte

	// Form is true when the body was passed through as FormData.
	Form bool

	// Extra holds the merged AdditionalOptions.
	Extra map[string]any
}

type requestConfigKey struct{}

// RequestConfigFromContext returns the RequestConfig of the request carrying
// ctx, or nil.
func RequestConfigFromContext(ctx context.Context) *RequestConfig {
	cfg, _ := ctx.Value(requestConfigKey{}).(*RequestConfig)
	return cfg
}

func contextWithRequestConfig(ctx context.Context, cfg *RequestConfig) context.Context {
	return context.WithValue(ctx, requestConfigKey{}, cfg)
}

// newRequestConfig assembles the request configuration from effective
// options. Extra keys from the call already won over the client's in
// mergeOptions.
func newRequestConfig(method Method, fullURL string, eff Options, body encodedBody) *RequestConfig {
	cfg := &RequestConfig{
		Method:         method,
		URL:            fullURL,
		Headers:        maps.Clone(eff.Headers),
		Mode:           deref(eff.Mode),
		Cache:          deref(eff.Cache),
		Credentials:    deref(eff.Credentials),
		Redirect:       deref(eff.Redirect),
		Referrer:       deref(eff.Referrer),
		ReferrerPolicy: deref(eff.ReferrerPolicy),
		Timeout:        deref(eff.Timeout),
		Proxy:          deref(eff.Proxy),
		Body:           body.raw,
		Form:           body.form,
		Extra:          maps.Clone(eff.AdditionalOptions),
	}

	if method == MethodGet && eff.Next.defined() {
		cfg.Next = &NextConfig{Revalidate: eff.Next.Revalidate, Tags: eff.Next.Tags}
	}
	return cfg
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (c *RequestConfig) MarshalZerologObject(e *zerolog.Event) {
	e.Str("method", string(c.Method)).
		Str("url", c.URL).
		Dict("headers", headerDict(c.Headers)).
		Str("mode", c.Mode).
		Str("cache", c.Cache).
		Str("credentials", c.Credentials).
		Str("redirect", c.Redirect).
		Str("referrer", c.Referrer).
		Str("referrerPolicy", c.ReferrerPolicy).
		Dur("timeout", c.Timeout)

	if c.Proxy != "" {
		e.Str("proxy", c.Proxy)
	}
	if c.Next != nil {
		e.Interface("next", c.Next)
	}
	if c.Form {
		e.Bool("form", true)
	}
	if len(c.Extra) > 0 {
		e.Interface("extra", c.Extra)
	}
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler. Hooks and
// telemetry providers are omitted.
func (o Options) MarshalZerologObject(e *zerolog.Event) {
	if o.BaseURL != nil {
		e.Str("baseURL", *o.BaseURL)
	}
	if o.Headers != nil {
		e.Dict("headers", headerDict(o.Headers))
	}
	if o.Params != nil {
		e.Str("params", StringifyParams(o.Params))
	}
	if o.Timeout != nil {
		e.Dur("timeout", *o.Timeout)
	}
	for _, f := range []struct {
		key   string
		value *string
	}{
		{"mode", o.Mode},
		{"cache", o.Cache},
		{"credentials", o.Credentials},
		{"redirect", o.Redirect},
		{"referrer", o.Referrer},
		{"referrerPolicy", o.ReferrerPolicy},
		{"proxy", o.Proxy},
	} {
		if f.value != nil {
			e.Str(f.key, *f.value)
		}
	}
	if o.ResponseFormat != nil {
		e.Str("responseFormat", o.ResponseFormat.String())
	}
	if o.Next != nil {
		e.Interface("next", o.Next)
	}
	if o.AdditionalOptions != nil {
		e.Interface("additionalOptions", o.AdditionalOptions)
	}
	if o.ShowLogs != nil {
		e.Bool("showLogs", *o.ShowLogs)
	}
}

// headerDict renders headers with sorted keys.
func headerDict(headers map[string]string) *zerolog.Event {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dict := zerolog.Dict()
	for _, k := range keys {
		dict.Str(k, headers[k])
	}
	return dict
}
