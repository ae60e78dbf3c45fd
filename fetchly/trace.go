package fetchly

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http/httptrace"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// networkTrace holds timing data collected from httptrace.ClientTrace.
// Callbacks may fire from dialer goroutines, so every access is locked.
type networkTrace struct {
	mu sync.Mutex

	// DNS timing
	dnsStart time.Time
	dnsDone  time.Time

	// Connection timing
	connectStart time.Time
	connectDone  time.Time

	// TLS timing
	tlsStart time.Time
	tlsDone  time.Time

	// Request/Response timing
	gotConnTime       time.Time
	wroteRequestTime  time.Time
	firstResponseTime time.Time
	bodyReadTime      time.Time

	// Connection info
	connReused  bool
	connRemote  string
	connIdle    bool
	protocolVer string

	dnsAddrs []string
}

// clientTrace returns an httptrace.ClientTrace that populates nt.
func (nt *networkTrace) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			nt.mu.Lock()
			defer nt.mu.Unlock()
			nt.gotConnTime = time.Now()
			nt.connReused = info.Reused
			nt.connIdle = info.WasIdle
			if info.Conn != nil {
				if addr := info.Conn.RemoteAddr(); addr != nil {
					nt.connRemote = addr.String()
				}
			}
		},
		DNSStart: func(_ httptrace.DNSStartInfo) {
			nt.mark(&nt.dnsStart)
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			nt.mu.Lock()
			defer nt.mu.Unlock()
			nt.dnsDone = time.Now()
			nt.dnsAddrs = make([]string, 0, len(info.Addrs))
			for _, addr := range info.Addrs {
				nt.dnsAddrs = append(nt.dnsAddrs, addr.String())
			}
		},
		ConnectStart: func(_, _ string) {
			nt.mark(&nt.connectStart)
		},
		ConnectDone: func(_, _ string, _ error) {
			nt.mark(&nt.connectDone)
		},
		TLSHandshakeStart: func() {
			nt.mark(&nt.tlsStart)
		},
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			nt.mu.Lock()
			defer nt.mu.Unlock()
			nt.tlsDone = time.Now()
			nt.protocolVer = state.NegotiatedProtocol
		},
		WroteRequest: func(_ httptrace.WroteRequestInfo) {
			nt.mark(&nt.wroteRequestTime)
		},
		GotFirstResponseByte: func() {
			nt.mark(&nt.firstResponseTime)
		},
	}
}

// mark records the current time into *field.
func (nt *networkTrace) mark(field *time.Time) {
	nt.mu.Lock()
	*field = time.Now()
	nt.mu.Unlock()
}

// bodyRead records that the response body has been fully read.
func (nt *networkTrace) bodyRead() {
	nt.mark(&nt.bodyReadTime)
}

// addTraceEvents adds span events for network timing.
func (nt *networkTrace) addTraceEvents(span trace.Span) {
	nt.mu.Lock()
	defer nt.mu.Unlock()

	if !nt.dnsStart.IsZero() && !nt.dnsDone.IsZero() {
		span.AddEvent("dns.start", trace.WithTimestamp(nt.dnsStart))
		span.AddEvent("dns.done", trace.WithTimestamp(nt.dnsDone),
			trace.WithAttributes(
				attribute.Float64(
					"dns.duration_ms",
					float64(nt.dnsDone.Sub(nt.dnsStart).Milliseconds()),
				),
				attribute.StringSlice("dns.addresses", nt.dnsAddrs),
			))
	}

	if !nt.connectStart.IsZero() && !nt.connectDone.IsZero() {
		span.AddEvent("connect.start", trace.WithTimestamp(nt.connectStart))
		span.AddEvent("connect.done", trace.WithTimestamp(nt.connectDone),
			trace.WithAttributes(
				attribute.Float64(
					"connect.duration_ms",
					float64(nt.connectDone.Sub(nt.connectStart).Milliseconds()),
				),
			))
	}

	if !nt.tlsStart.IsZero() && !nt.tlsDone.IsZero() {
		span.AddEvent("tls.start", trace.WithTimestamp(nt.tlsStart))
		span.AddEvent("tls.done", trace.WithTimestamp(nt.tlsDone),
			trace.WithAttributes(
				attribute.Float64(
					"tls.duration_ms",
					float64(nt.tlsDone.Sub(nt.tlsStart).Milliseconds()),
				),
				attribute.String("tls.protocol", nt.protocolVer),
			))
	}

	if !nt.gotConnTime.IsZero() {
		span.AddEvent("got_conn", trace.WithTimestamp(nt.gotConnTime),
			trace.WithAttributes(
				attribute.Bool("connection.reused", nt.connReused),
				attribute.Bool("connection.was_idle", nt.connIdle),
				attribute.String("network.peer.address", nt.connRemote),
			))
	}

	if !nt.wroteRequestTime.IsZero() {
		span.AddEvent("wrote_request", trace.WithTimestamp(nt.wroteRequestTime))
	}

	if !nt.firstResponseTime.IsZero() {
		var ttfbMs float64
		if !nt.wroteRequestTime.IsZero() {
			ttfbMs = float64(nt.firstResponseTime.Sub(nt.wroteRequestTime).Milliseconds())
		}
		span.AddEvent("got_first_response_byte", trace.WithTimestamp(nt.firstResponseTime),
			trace.WithAttributes(
				attribute.Float64("ttfb_ms", ttfbMs),
			))
	}
}

// recordTimingMetrics records network timing metrics.
func (nt *networkTrace) recordTimingMetrics(
	ctx context.Context,
	m *metrics,
	attrs []attribute.KeyValue,
) {
	if m == nil {
		return
	}

	nt.mu.Lock()
	defer nt.mu.Unlock()

	// A connect phase without reuse means a new connection was dialled.
	if !nt.connReused && !nt.connectStart.IsZero() {
		m.recordConnectionOpened(ctx, attrs)
	}
	if !nt.dnsStart.IsZero() && !nt.dnsDone.IsZero() {
		m.recordDNSDuration(ctx, nt.dnsDone.Sub(nt.dnsStart), attrs)
	}
	if !nt.connectStart.IsZero() && !nt.connectDone.IsZero() {
		m.recordConnectionDuration(ctx, nt.connectDone.Sub(nt.connectStart), attrs)
	}
	if !nt.tlsStart.IsZero() && !nt.tlsDone.IsZero() {
		m.recordTLSDuration(ctx, nt.tlsDone.Sub(nt.tlsStart), attrs)
	}
	if !nt.wroteRequestTime.IsZero() && !nt.firstResponseTime.IsZero() {
		m.recordTTFB(ctx, nt.firstResponseTime.Sub(nt.wroteRequestTime), attrs)
	}
	if !nt.firstResponseTime.IsZero() && !nt.bodyReadTime.IsZero() {
		m.recordContentTransferDuration(ctx, nt.bodyReadTime.Sub(nt.firstResponseTime), attrs)
	}
}

// traceInfo summarises the collected timings. It returns nil when the host
// never reported a first response byte, as happens with hosts that are not
// backed by net/http.
func (nt *networkTrace) traceInfo(total time.Duration) *TraceInfo {
	nt.mu.Lock()
	defer nt.mu.Unlock()

	if nt.firstResponseTime.IsZero() {
		return nil
	}

	info := &TraceInfo{ConnReused: nt.connReused, TotalTime: total}
	if !nt.dnsStart.IsZero() && !nt.dnsDone.IsZero() {
		info.DNSLookup = nt.dnsDone.Sub(nt.dnsStart)
	}
	if !nt.connectStart.IsZero() && !nt.connectDone.IsZero() {
		info.ConnTime = nt.connectDone.Sub(nt.connectStart)
	}
	if !nt.tlsStart.IsZero() && !nt.tlsDone.IsZero() {
		info.TLSHandshake = nt.tlsDone.Sub(nt.tlsStart)
	}
	if !nt.wroteRequestTime.IsZero() {
		info.ServerTime = nt.firstResponseTime.Sub(nt.wroteRequestTime)
	}
	if !nt.bodyReadTime.IsZero() {
		info.TransferTime = nt.bodyReadTime.Sub(nt.firstResponseTime)
	}
	return info
}

// TraceInfo contains timing information for one exchange. Phases that did
// not happen, such as DNS on a reused connection, are zero.
//
// Example usage:
//
//	res := client.Get(ctx, "/users/1")
//	fmt.Println(res.Trace)
//	// Output:
//	// DNS Lookup:    2ms
//	// TCP Connect:   15ms
//	// TLS Handshake: 28ms
//	// Server Time:   45ms
//	// Transfer Time: 1ms
//	// Total Time:    91ms
type TraceInfo struct {
	// DNSLookup is the duration of DNS name resolution.
	DNSLookup time.Duration

	// ConnTime is the duration to establish the TCP connection.
	ConnTime time.Duration

	// TLSHandshake is the duration of the TLS handshake. Zero for plain HTTP.
	TLSHandshake time.Duration

	// ServerTime is the time from writing the request to the first
	// response byte (TTFB).
	ServerTime time.Duration

	// TransferTime is the time spent reading the response body.
	TransferTime time.Duration

	// TotalTime is the duration of the whole call.
	TotalTime time.Duration

	// ConnReused is true when the connection came from the idle pool.
	ConnReused bool
}

func (t *TraceInfo) String() string {
	if t == nil {
		return "TraceInfo: nil"
	}

	return fmt.Sprintf(
		"DNS Lookup:    %s\nTCP Connect:   %s\nTLS Handshake: %s\nServer Time:   %s\nTransfer Time: %s\nTotal Time:    %s",
		t.DNSLookup,
		t.ConnTime,
		t.TLSHandshake,
		t.ServerTime,
		t.TransferTime,
		t.TotalTime,
	)
}

// setSpanError records an error on the span with proper status and attributes.
func setSpanError(span trace.Span, err error, errorType string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errorType != "" {
		span.SetAttributes(attribute.String("error.type", errorType))
	}
}
