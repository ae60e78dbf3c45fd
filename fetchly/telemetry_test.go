package fetchly

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newTestTelemetry returns client options wired to in-memory exporters.
func newTestTelemetry(t *testing.T) (*tracetest.InMemoryExporter, *sdkmetric.ManualReader, []Option) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	return exporter, reader, []Option{
		WithTracerProvider(tp),
		WithMeterProvider(mp),
		WithServiceName("catalog"),
	}
}

func spanAttr(span tracetest.SpanStub, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestTelemetrySpans(t *testing.T) {
	t.Run("given a success, then records one client span", func(t *testing.T) {
		exporter, _, opts := newTestTelemetry(t)
		host := NewMockHost().StubResponse(http.StatusOK, `{"id":1}`)
		client := New(append(opts, WithHost(host))...)

		res := client.Get(context.Background(), "https://api.example.com/products/1")

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		span := spans[0]
		assert.Equal(t, "HTTP GET", span.Name)
		assert.Equal(t, codes.Unset, span.Status.Code)

		v, ok := spanAttr(span, "http.response.status_code")
		require.True(t, ok)
		assert.Equal(t, int64(200), v.AsInt64())

		v, ok = spanAttr(span, "fetchly.request_id")
		require.True(t, ok)
		assert.Equal(t, res.RequestID, v.AsString())

		v, ok = spanAttr(span, "fetchly.client.name")
		require.True(t, ok)
		assert.Equal(t, "catalog", v.AsString())

		v, ok = spanAttr(span, "server.port")
		require.True(t, ok)
		assert.Equal(t, int64(443), v.AsInt64())

		_, ok = spanAttr(span, "fetchly.error_type")
		assert.False(t, ok)
	})

	t.Run("given an api failure, then marks the span with the status", func(t *testing.T) {
		exporter, _, opts := newTestTelemetry(t)
		host := NewMockHost().StubResponse(http.StatusNotFound, `{}`)
		client := New(append(opts, WithHost(host))...)

		client.Get(context.Background(), "https://api.example.com/missing")

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		assert.Equal(t, "HTTP 404", spans[0].Status.Description)

		v, ok := spanAttr(spans[0], "fetchly.error_type")
		require.True(t, ok)
		assert.Equal(t, "api", v.AsString())
	})

	t.Run("given a network failure, then records the error and its cause", func(t *testing.T) {
		exporter, _, opts := newTestTelemetry(t)
		client := New(append(opts, WithHost(NewMockHost().StubError(context.DeadlineExceeded)))...)

		client.Get(context.Background(), "https://api.example.com/slow")

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		require.NotEmpty(t, spans[0].Events)
		assert.Equal(t, "exception", spans[0].Events[len(spans[0].Events)-1].Name)

		v, ok := spanAttr(spans[0], "error.type")
		require.True(t, ok)
		assert.Equal(t, ReasonTimeout, v.AsString())
	})
}

func TestTelemetryPropagation(t *testing.T) {
	_, _, opts := newTestTelemetry(t)
	host := NewMockHost().StubResponse(http.StatusOK, `{}`)
	client := New(append(opts, WithHost(host))...)

	client.Get(context.Background(), "https://api.example.com/p")

	req := host.LastRequest()
	require.NotNil(t, req)
	assert.NotEmpty(t, req.Header.Get("traceparent"))
}

func TestTelemetryMetrics(t *testing.T) {
	_, reader, opts := newTestTelemetry(t)

	r := chi.NewRouter()
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client := New(append(opts, WithBaseURL(srv.URL))...)
	client.Get(context.Background(), "/ok")
	client.Get(context.Background(), "/missing")

	got := collectMetrics(t, reader)

	for _, name := range []string{
		"fetchly.client.request.duration",
		"fetchly.client.response.body.size",
		"fetchly.client.active_requests",
		"fetchly.client.request.error",
		"fetchly.client.ttfb",
		"fetchly.client.connection.opened",
	} {
		assert.Contains(t, got, name)
	}

	duration, ok := got["fetchly.client.request.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range duration.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)

	errs, ok := got["fetchly.client.request.error"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, errs.DataPoints, 1)
	assert.Equal(t, int64(1), errs.DataPoints[0].Value)
	errType, ok := errs.DataPoints[0].Attributes.Value("fetchly.error_type")
	require.True(t, ok)
	assert.Equal(t, "api", errType.AsString())

	active, ok := got["fetchly.client.active_requests"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, active.DataPoints, 1)
	assert.Equal(t, int64(0), active.DataPoints[0].Value)
}

func TestServerAttributes(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want []attribute.KeyValue
	}{
		{
			name: "given https without port, then defaults to 443",
			url:  "https://api.example.com/x",
			want: []attribute.KeyValue{
				attribute.String("url.scheme", "https"),
				attribute.String("server.address", "api.example.com"),
				attribute.Int("server.port", 443),
			},
		},
		{
			name: "given an explicit port, then uses it",
			url:  "http://localhost:8080/x",
			want: []attribute.KeyValue{
				attribute.String("url.scheme", "http"),
				attribute.String("server.address", "localhost"),
				attribute.Int("server.port", 8080),
			},
		},
		{
			name: "given no scheme or host, then returns nothing",
			url:  "/relative",
			want: []attribute.KeyValue{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serverAttributes(tt.url))
		})
	}
}

func TestProtocolVersion(t *testing.T) {
	assert.Equal(t, "1.1", protocolVersion("HTTP/1.1"))
	assert.Equal(t, "2", protocolVersion("HTTP/2.0"))
	assert.Equal(t, "", protocolVersion(""))
}
