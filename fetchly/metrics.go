package fetchly

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Bucket layouts shared by the fetchly.client.* histograms.
var (
	callBuckets     = []float64{0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10}
	dialBuckets     = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	lookupBuckets   = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}
	transferBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	sizeBuckets     = []float64{0, 100, 1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024}
)

// metrics holds the OTel instruments of one client. A nil *metrics records
// nothing.
type metrics struct {
	// Every call, whatever its Result branch.
	requestDuration  metric.Float64Histogram
	activeRequests   metric.Int64UpDownCounter
	requestBodySize  metric.Int64Histogram
	responseBodySize metric.Int64Histogram

	// Calls that did not end in success, by fetchly.error_type and, for
	// network failures, by NetworkReason.
	requestErrors metric.Int64Counter

	// Phases of the exchange, only seen when the host is net/http based.
	connectionsOpened       metric.Int64Counter
	connectionDuration      metric.Float64Histogram
	dnsDuration             metric.Float64Histogram
	tlsDuration             metric.Float64Histogram
	ttfb                    metric.Float64Histogram
	contentTransferDuration metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	seconds := func(name, desc string, buckets []float64) (metric.Float64Histogram, error) {
		return meter.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(buckets...),
		)
	}
	sizes := func(name, desc string) (metric.Int64Histogram, error) {
		return meter.Int64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("By"),
			metric.WithExplicitBucketBoundaries(sizeBuckets...),
		)
	}

	m := &metrics{}
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	m.requestDuration, err = seconds("fetchly.client.request.duration",
		"Time from option merging to decoded Result", callBuckets)
	collect(err)
	m.activeRequests, err = meter.Int64UpDownCounter("fetchly.client.active_requests",
		metric.WithDescription("Calls waiting on the host"),
		metric.WithUnit("{request}"))
	collect(err)
	m.requestBodySize, err = sizes("fetchly.client.request.body.size", "Encoded JSON request bodies")
	collect(err)
	m.responseBodySize, err = sizes("fetchly.client.response.body.size", "Response bodies read before decoding")
	collect(err)
	m.requestErrors, err = meter.Int64Counter("fetchly.client.request.error",
		metric.WithDescription("Calls ending in an api, network or internal Result"),
		metric.WithUnit("{error}"))
	collect(err)

	m.connectionsOpened, err = meter.Int64Counter("fetchly.client.connection.opened",
		metric.WithDescription("Connections dialled by the default host"),
		metric.WithUnit("{connection}"))
	collect(err)
	m.connectionDuration, err = seconds("fetchly.client.connection.duration",
		"Time to dial a connection", dialBuckets)
	collect(err)
	m.dnsDuration, err = seconds("fetchly.client.dns.duration", "DNS lookup time", lookupBuckets)
	collect(err)
	m.tlsDuration, err = seconds("fetchly.client.tls.duration", "TLS handshake time", lookupBuckets)
	collect(err)
	m.ttfb, err = seconds("fetchly.client.ttfb",
		"Time from request written to first response byte", callBuckets[:12])
	collect(err)
	m.contentTransferDuration, err = seconds("fetchly.client.content_transfer.duration",
		"Time to read the response body", transferBuckets)
	collect(err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

func recordSeconds(ctx context.Context, h metric.Float64Histogram, d time.Duration, attrs []attribute.KeyValue) {
	if h != nil {
		h.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
	}
}

func recordBytes(ctx context.Context, h metric.Int64Histogram, n int64, attrs []attribute.KeyValue) {
	if h != nil {
		h.Record(ctx, n, metric.WithAttributes(attrs...))
	}
}

func (m *metrics) recordRequestDuration(ctx context.Context, d time.Duration, attrs []attribute.KeyValue) {
	if m != nil {
		recordSeconds(ctx, m.requestDuration, d, attrs)
	}
}

func (m *metrics) recordRequestBodySize(ctx context.Context, size int64, attrs []attribute.KeyValue) {
	if m != nil {
		recordBytes(ctx, m.requestBodySize, size, attrs)
	}
}

func (m *metrics) recordResponseBodySize(ctx context.Context, size int64, attrs []attribute.KeyValue) {
	if m != nil {
		recordBytes(ctx, m.responseBodySize, size, attrs)
	}
}

func (m *metrics) recordConnectionOpened(ctx context.Context, attrs []attribute.KeyValue) {
	if m != nil && m.connectionsOpened != nil {
		m.connectionsOpened.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *metrics) recordConnectionDuration(ctx context.Context, d time.Duration, attrs []attribute.KeyValue) {
	if m != nil {
		recordSeconds(ctx, m.connectionDuration, d, attrs)
	}
}

func (m *metrics) recordDNSDuration(ctx context.Context, d time.Duration, attrs []attribute.KeyValue) {
	if m != nil {
		recordSeconds(ctx, m.dnsDuration, d, attrs)
	}
}

func (m *metrics) recordTLSDuration(ctx context.Context, d time.Duration, attrs []attribute.KeyValue) {
	if m != nil {
		recordSeconds(ctx, m.tlsDuration, d, attrs)
	}
}

func (m *metrics) recordTTFB(ctx context.Context, d time.Duration, attrs []attribute.KeyValue) {
	if m != nil {
		recordSeconds(ctx, m.ttfb, d, attrs)
	}
}

func (m *metrics) recordContentTransferDuration(ctx context.Context, d time.Duration, attrs []attribute.KeyValue) {
	if m != nil {
		recordSeconds(ctx, m.contentTransferDuration, d, attrs)
	}
}

func (m *metrics) recordActiveRequestStart(ctx context.Context, attrs []attribute.KeyValue) {
	if m != nil && m.activeRequests != nil {
		m.activeRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *metrics) recordActiveRequestEnd(ctx context.Context, attrs []attribute.KeyValue) {
	if m != nil && m.activeRequests != nil {
		m.activeRequests.Add(ctx, -1, metric.WithAttributes(attrs...))
	}
}

// recordError counts a failed call under fetchly.error_type. Network
// failures also carry their NetworkReason as error.type.
func (m *metrics) recordError(
	ctx context.Context,
	errorType ErrorType,
	reason string,
	attrs []attribute.KeyValue,
) {
	if m == nil || m.requestErrors == nil {
		return
	}
	all := append(make([]attribute.KeyValue, 0, len(attrs)+2), attrs...)
	all = append(all, attribute.String("fetchly.error_type", string(errorType)))
	if reason != "" {
		all = append(all, attribute.String("error.type", reason))
	}
	m.requestErrors.Add(ctx, 1, metric.WithAttributes(all...))
}
