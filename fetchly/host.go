package fetchly

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// ErrRedirectBlocked is returned by the default host when a request with
// the "error" redirect policy receives a redirect.
var ErrRedirectBlocked = errors.New("fetchly: redirect blocked by policy")

// maxRedirects matches net/http's own limit.
const maxRedirects = 10

// =============================================================================
// HostConfig - transport configuration of the default host
// =============================================================================

// HostConfig holds the transport parameters of a host built with NewHost.
// Use DefaultHostConfig() to get a properly initialized configuration, then
// modify specific fields as needed.
//
// There is no overall timeout here: every request is bounded by its own
// Timeout option.
//
// Example:
//
//	cfg := fetchly.DefaultHostConfig()
//	cfg.MaxIdleConnsPerHost = 50
//
//	client := fetchly.New(fetchly.WithHost(fetchly.NewHost(cfg)))
type HostConfig struct {
	// =======================================================================
	// Connection Pool Settings
	// =======================================================================

	// MaxIdleConns controls the maximum number of idle (keep-alive)
	// connections across all hosts combined.
	//
	// Default: 100
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections kept for
	// each downstream host. If you primarily call one API, set this close
	// to MaxIdleConns.
	//
	// Default: 20
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits the total number of connections (idle + active)
	// per host. Zero means unlimited.
	//
	// Default: 100
	MaxConnsPerHost int

	// IdleConnTimeout is how long an idle connection remains in the pool.
	//
	// Default: 90s
	IdleConnTimeout time.Duration

	// =======================================================================
	// Protocol Timeouts
	// =======================================================================

	// TLSHandshakeTimeout is the maximum time to wait for a TLS handshake.
	//
	// Default: 10s
	TLSHandshakeTimeout time.Duration

	// ExpectContinueTimeout is how long to wait for "100 Continue" after
	// sending "Expect: 100-continue".
	//
	// Default: 1s
	ExpectContinueTimeout time.Duration

	// ResponseHeaderTimeout is the time to wait for response headers after
	// the request is written. Zero leaves it to the request timeout.
	//
	// Default: 0
	ResponseHeaderTimeout time.Duration

	// =======================================================================
	// TCP Dial Settings
	// =======================================================================

	// DialTimeout is the maximum time to establish a TCP connection.
	//
	// Default: 5s
	DialTimeout time.Duration

	// KeepAlive is the TCP keep-alive probe interval.
	//
	// Default: 30s
	KeepAlive time.Duration

	// FallbackDelay is the RFC 6555 "Happy Eyeballs" delay. Negative
	// disables it.
	//
	// Default: 300ms
	FallbackDelay time.Duration

	// =======================================================================
	// Buffers and Protocol
	// =======================================================================

	// WriteBufferSize and ReadBufferSize size the per-connection buffers.
	//
	// Default: 64KB
	WriteBufferSize int
	ReadBufferSize  int

	// MaxResponseHeaderBytes limits the size of response headers.
	// Zero uses the net/http default.
	MaxResponseHeaderBytes int64

	// DisableKeepAlives forces a new connection per request.
	DisableKeepAlives bool

	// DisableCompression stops the transport from requesting gzip.
	//
	// Default: true
	DisableCompression bool

	// ForceHTTP2 attempts HTTP/2 even with a custom dialer or TLS config.
	ForceHTTP2 bool

	// TLSConfig is the client TLS configuration. Nil uses the defaults.
	TLSConfig *tls.Config
}

// DefaultHostConfig returns balanced transport settings suitable for most
// API clients.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		DialTimeout:   5 * time.Second,
		KeepAlive:     30 * time.Second,
		FallbackDelay: 300 * time.Millisecond,

		WriteBufferSize: 64 * 1024,
		ReadBufferSize:  64 * 1024,

		DisableCompression: true,
	}
}

// HighThroughputHostConfig returns settings for many concurrent requests to
// the same downstream APIs: larger pools, larger buffers and no per-host
// connection cap.
func HighThroughputHostConfig() HostConfig {
	return HostConfig{
		MaxIdleConns:        500,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     0, // Unlimited for bursts
		IdleConnTimeout:     120 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		DialTimeout:   5 * time.Second,
		KeepAlive:     30 * time.Second,
		FallbackDelay: 300 * time.Millisecond,

		WriteBufferSize: 128 * 1024,
		ReadBufferSize:  128 * 1024,

		DisableCompression: true,
	}
}

// LowLatencyHostConfig returns settings that fail fast: short dial and
// handshake timeouts, a response header timeout, and HTTP/2.
func LowLatencyHostConfig() HostConfig {
	return HostConfig{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 25,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     60 * time.Second,

		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 500 * time.Millisecond,
		ResponseHeaderTimeout: 3 * time.Second,

		DialTimeout:   2 * time.Second,
		KeepAlive:     15 * time.Second,
		FallbackDelay: 150 * time.Millisecond,

		WriteBufferSize: 32 * 1024,
		ReadBufferSize:  32 * 1024,

		DisableCompression: true,
		ForceHTTP2:         true,
	}
}

// ConservativeHostConfig returns resource-conscious settings for serverless
// functions or processes holding many clients.
func ConservativeHostConfig() HostConfig {
	return HostConfig{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		DialTimeout:   5 * time.Second,
		KeepAlive:     30 * time.Second,
		FallbackDelay: 300 * time.Millisecond,

		WriteBufferSize: 4 * 1024,
		ReadBufferSize:  4 * 1024,

		DisableCompression: true,
	}
}

// NewHost builds an *http.Client from cfg that honours the Redirect and
// Proxy fields of the RequestConfig attached to each request.
func NewHost(cfg HostConfig) *http.Client {
	return &http.Client{
		Transport:     buildTransport(cfg),
		CheckRedirect: checkRedirect,
	}
}

// defaultHost is shared by every client that does not set its own host, so
// connections are pooled across them.
var defaultHost = sync.OnceValue(func() *http.Client {
	return NewHost(DefaultHostConfig())
})

func buildTransport(cfg HostConfig) *http.Transport {
	dialer := &net.Dialer{
		Timeout:       cfg.DialTimeout,
		KeepAlive:     cfg.KeepAlive,
		FallbackDelay: cfg.FallbackDelay,
	}

	return &http.Transport{
		Proxy:                  proxyFunc,
		DialContext:            dialer.DialContext,
		MaxIdleConns:           cfg.MaxIdleConns,
		MaxIdleConnsPerHost:    cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:        cfg.MaxConnsPerHost,
		IdleConnTimeout:        cfg.IdleConnTimeout,
		TLSHandshakeTimeout:    cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout:  cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout:  cfg.ExpectContinueTimeout,
		DisableKeepAlives:      cfg.DisableKeepAlives,
		DisableCompression:     cfg.DisableCompression,
		WriteBufferSize:        cfg.WriteBufferSize,
		ReadBufferSize:         cfg.ReadBufferSize,
		MaxResponseHeaderBytes: cfg.MaxResponseHeaderBytes,
		TLSClientConfig:        cfg.TLSConfig,
		ForceAttemptHTTP2:      cfg.ForceHTTP2,
	}
}

// proxyFunc uses the request's Proxy option, falling back to HTTP_PROXY,
// HTTPS_PROXY and NO_PROXY.
func proxyFunc(req *http.Request) (*url.URL, error) {
	if cfg := RequestConfigFromContext(req.Context()); cfg != nil && cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("fetchly: invalid proxy url %q: %w", cfg.Proxy, err)
		}
		return proxyURL, nil
	}
	return http.ProxyFromEnvironment(req)
}

// checkRedirect applies the request's Redirect policy.
func checkRedirect(req *http.Request, via []*http.Request) error {
	policy := DefaultRedirect
	if cfg := RequestConfigFromContext(req.Context()); cfg != nil && cfg.Redirect != "" {
		policy = cfg.Redirect
	}

	switch policy {
	case RedirectManual:
		return http.ErrUseLastResponse
	case RedirectError:
		return ErrRedirectBlocked
	}
	if len(via) >= maxRedirects {
		return fmt.Errorf("fetchly: stopped after %d redirects", maxRedirects)
	}
	return nil
}
