package fetchly

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// telemetry instruments calls with one client span and a set of metrics.
// It is built once per Configure.
type telemetry struct {
	tracer     trace.Tracer
	metrics    *metrics
	propagator propagation.TextMapPropagator
	baseAttrs  []attribute.KeyValue
}

// callOutcome is what the pipeline reports when a call ends.
type callOutcome struct {
	statusCode   int
	errorType    *ErrorType
	err          error
	duration     time.Duration
	responseSize int64
	protocol     string
}

func newTelemetry(o Options) *telemetry {
	tp := o.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := o.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	// Instruments that fail to register leave metrics nil, which records
	// nothing.
	m, _ := newMetrics(mp.Meter(scope))

	t := &telemetry{
		tracer:  tp.Tracer(scope),
		metrics: m,
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}
	if o.ServiceName != "" {
		t.baseAttrs = []attribute.KeyValue{attribute.String("fetchly.client.name", o.ServiceName)}
	}
	return t
}

// start opens the client span of a call and marks it active.
func (t *telemetry) start(
	ctx context.Context,
	cfg *RequestConfig,
	requestID string,
	bodySize int64,
) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "HTTP "+string(cfg.Method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.requestAttributes(cfg, requestID, bodySize)...),
	)

	t.metrics.recordActiveRequestStart(ctx, t.baseAttrs)
	if bodySize > 0 {
		t.metrics.recordRequestBodySize(ctx, bodySize, t.baseAttrs)
	}
	return ctx, span
}

// inject writes the trace context into the outgoing headers.
func (t *telemetry) inject(ctx context.Context, header http.Header) {
	t.propagator.Inject(ctx, propagation.HeaderCarrier(header))
}

// end records the outcome of a call and closes its span.
func (t *telemetry) end(
	ctx context.Context,
	span trace.Span,
	nt *networkTrace,
	cfg *RequestConfig,
	out callOutcome,
) {
	defer span.End()
	defer t.metrics.recordActiveRequestEnd(ctx, t.baseAttrs)

	if nt != nil {
		nt.addTraceEvents(span)
		nt.recordTimingMetrics(ctx, t.metrics, t.baseAttrs)
	}

	if out.statusCode != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", out.statusCode))
	}
	if version := protocolVersion(out.protocol); version != "" {
		span.SetAttributes(attribute.String("network.protocol.version", version))
	}
	if out.responseSize > 0 {
		span.SetAttributes(attribute.Int64("http.response.body.size", out.responseSize))
		t.metrics.recordResponseBodySize(ctx, out.responseSize, t.baseAttrs)
	}

	var reason string
	if out.errorType != nil {
		span.SetAttributes(attribute.String("fetchly.error_type", string(*out.errorType)))

		switch *out.errorType {
		case ErrorTypeAPI:
			reason = strconv.Itoa(out.statusCode)
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", out.statusCode))
			span.SetAttributes(attribute.String("error.type", reason))
		case ErrorTypeNetwork:
			reason = NetworkReason(out.err)
			setSpanError(span, out.err, reason)
		default:
			reason = string(ErrorTypeInternal)
			setSpanError(span, out.err, reason)
		}
		t.metrics.recordError(ctx, *out.errorType, reason, t.baseAttrs)
	}

	t.metrics.recordRequestDuration(ctx, out.duration, t.metricsAttributes(cfg, out, reason))
}

// requestAttributes returns span attributes for the request.
func (t *telemetry) requestAttributes(
	cfg *RequestConfig,
	requestID string,
	bodySize int64,
) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 10)
	attrs = append(attrs, t.baseAttrs...)
	attrs = append(attrs,
		attribute.String("http.request.method", string(cfg.Method)),
		attribute.String("url.full", cfg.URL),
		attribute.String("fetchly.request_id", requestID),
	)
	attrs = append(attrs, serverAttributes(cfg.URL)...)

	if bodySize > 0 {
		attrs = append(attrs, attribute.Int64("http.request.body.size", bodySize))
	}
	return attrs
}

// metricsAttributes returns attributes for the duration histogram.
func (t *telemetry) metricsAttributes(
	cfg *RequestConfig,
	out callOutcome,
	reason string,
) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 6)
	attrs = append(attrs, t.baseAttrs...)
	attrs = append(attrs, attribute.String("http.request.method", string(cfg.Method)))
	attrs = append(attrs, serverAttributes(cfg.URL)...)

	if out.statusCode != 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", out.statusCode))
	}
	if reason != "" {
		attrs = append(attrs, attribute.String("error.type", reason))
	}
	return attrs
}

// serverAttributes returns server.address and server.port for rawURL.
// Unparseable URLs yield no attributes.
func serverAttributes(rawURL string) []attribute.KeyValue {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	attrs := make([]attribute.KeyValue, 0, 3)
	if u.Scheme != "" {
		attrs = append(attrs, attribute.String("url.scheme", u.Scheme))
	}
	if host := u.Hostname(); host != "" {
		attrs = append(attrs, attribute.String("server.address", host))
	}

	if port := u.Port(); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			attrs = append(attrs, attribute.Int("server.port", p))
		}
	} else {
		switch u.Scheme {
		case "http":
			attrs = append(attrs, attribute.Int("server.port", 80))
		case "https":
			attrs = append(attrs, attribute.Int("server.port", 443))
		}
	}
	return attrs
}

// protocolVersion converts "HTTP/1.1" to "1.1" and "HTTP/2.0" to "2".
func protocolVersion(proto string) string {
	if len(proto) > 5 && proto[:5] == "HTTP/" {
		proto = proto[5:]
	}
	if proto == "2.0" {
		proto = "2"
	}
	return proto
}
