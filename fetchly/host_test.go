package fetchly

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedirectServer(t *testing.T) *httptest.Server {
	t.Helper()

	r := chi.NewRouter()
	r.Get("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	r.Get("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"moved":true}`))
	})
	r.Get("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestRedirectPolicy(t *testing.T) {
	srv := newRedirectServer(t)
	client := New(WithBaseURL(srv.URL))
	ctx := context.Background()

	t.Run("given follow, then returns the final response", func(t *testing.T) {
		res := Get[map[string]bool, any](ctx, client, "/old")

		require.True(t, res.IsSuccess())
		assert.True(t, (*res.Data)["moved"])
	})

	t.Run("given manual, then returns the redirect as an api error", func(t *testing.T) {
		res := client.Get(ctx, "/old", WithRedirect(RedirectManual))

		assert.True(t, res.IsAPIError())
		assert.Equal(t, http.StatusFound, res.StatusCode)
		assert.Equal(t, "/new", res.Headers.Get("Location"))
	})

	t.Run("given error, then fails as a network error", func(t *testing.T) {
		res := client.Get(ctx, "/old", WithRedirect(RedirectError))

		assert.True(t, res.IsNetworkError())
		assert.ErrorIs(t, res.InternalError, ErrRedirectBlocked)
		assert.Equal(t, ReasonRedirectBlocked, NetworkReason(res.InternalError))
	})

	t.Run("given a redirect loop, then stops after the limit", func(t *testing.T) {
		res := client.Get(ctx, "/loop")

		assert.True(t, res.IsNetworkError())
		assert.ErrorContains(t, res.InternalError, "stopped after 10 redirects")
	})
}

func TestCheckRedirect(t *testing.T) {
	newReq := func(policy string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
		if policy == "" {
			return req
		}
		return req.WithContext(contextWithRequestConfig(req.Context(), &RequestConfig{Redirect: policy}))
	}

	tests := []struct {
		name    string
		req     *http.Request
		via     int
		wantErr error
	}{
		{name: "given no config, then follows", req: newReq(""), via: 1},
		{name: "given follow, then follows", req: newReq(RedirectFollow), via: 1},
		{name: "given manual, then uses the last response", req: newReq(RedirectManual), via: 1, wantErr: http.ErrUseLastResponse},
		{name: "given error, then blocks", req: newReq(RedirectError), via: 1, wantErr: ErrRedirectBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkRedirect(tt.req, make([]*http.Request, tt.via))
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestProxyFunc(t *testing.T) {
	t.Run("given a proxy on the request config, then uses it", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
		req = req.WithContext(contextWithRequestConfig(req.Context(), &RequestConfig{Proxy: "http://proxy.local:3128"}))

		got, err := proxyFunc(req)
		require.NoError(t, err)
		assert.Equal(t, "proxy.local:3128", got.Host)
	})

	t.Run("given an invalid proxy, then returns an error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
		req = req.WithContext(contextWithRequestConfig(req.Context(), &RequestConfig{Proxy: "http://[::1"}))

		_, err := proxyFunc(req)
		assert.ErrorContains(t, err, "invalid proxy url")
	})
}

func TestHostPresets(t *testing.T) {
	tests := []struct {
		name            string
		cfg             HostConfig
		wantIdlePerHost int
		wantHTTP2       bool
	}{
		{name: "default", cfg: DefaultHostConfig(), wantIdlePerHost: 20},
		{name: "high throughput", cfg: HighThroughputHostConfig(), wantIdlePerHost: 100},
		{name: "low latency", cfg: LowLatencyHostConfig(), wantIdlePerHost: 25, wantHTTP2: true},
		{name: "conservative", cfg: ConservativeHostConfig(), wantIdlePerHost: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := NewHost(tt.cfg)

			transport, ok := host.Transport.(*http.Transport)
			require.True(t, ok)
			assert.Equal(t, tt.wantIdlePerHost, transport.MaxIdleConnsPerHost)
			assert.Equal(t, tt.wantHTTP2, transport.ForceAttemptHTTP2)
			assert.Equal(t, tt.cfg.IdleConnTimeout, transport.IdleConnTimeout)
			assert.NotNil(t, transport.Proxy)
			assert.NotNil(t, host.CheckRedirect)
			assert.Zero(t, host.Timeout)
		})
	}

	t.Run("given the shared default host, then returns one instance", func(t *testing.T) {
		assert.Same(t, defaultHost(), defaultHost())
	})

	t.Run("given low latency, then bounds header wait", func(t *testing.T) {
		assert.Equal(t, 3*time.Second, LowLatencyHostConfig().ResponseHeaderTimeout)
	})
}
