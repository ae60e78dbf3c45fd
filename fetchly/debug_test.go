package fetchly

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCurlCommand(t *testing.T) {
	tests := []struct {
		name   string
		method string
		url    string
		header http.Header
		body   []byte
		want   []string
		absent []string
	}{
		{
			name:   "given GET request, then omits -X",
			method: http.MethodGet,
			url:    "https://api.example.com/users",
			want:   []string{"curl", "'https://api.example.com/users'"},
			absent: []string{"-X"},
		},
		{
			name:   "given POST request, then includes -X POST",
			method: http.MethodPost,
			url:    "https://api.example.com/users",
			want:   []string{"-X POST"},
		},
		{
			name:   "given headers, then writes them sorted",
			method: http.MethodGet,
			url:    "https://api.example.com",
			header: http.Header{"X-B": {"2"}, "X-A": {"1"}},
			want:   []string{"-H 'X-A: 1' -H 'X-B: 2'"},
		},
		{
			name:   "given a body with a quote, then escapes it",
			method: http.MethodPost,
			url:    "https://api.example.com",
			body:   []byte(`{"name":"O'Brien"}`),
			want:   []string{`-d '{"name":"O'\''Brien"}'`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, tt.url, nil)
			require.NoError(t, err)
			for k, v := range tt.header {
				req.Header[k] = v
			}

			got := generateCurlCommand(req, tt.body)

			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
			for _, a := range tt.absent {
				assert.NotContains(t, got, a)
			}
		})
	}
}

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	return entry
}

func TestShowLogs(t *testing.T) {
	t.Run("given ShowLogs on a success, then writes one record with the response", func(t *testing.T) {
		var buf bytes.Buffer
		host := NewMockHost().StubResponse(http.StatusOK, `{"id":1}`)
		client := New(
			WithHost(host),
			WithBaseURL("https://api.example.com"),
			WithShowLogs(true),
			WithLogger(zerolog.New(&buf)),
		)

		res := client.Post(context.Background(), "/products", map[string]string{"title": "x"})

		entry := decodeLogLine(t, &buf)
		assert.Equal(t, "debug", entry["level"])
		assert.Equal(t, "POST https://api.example.com/products", entry["message"])
		assert.Equal(t, res.RequestID, entry["requestId"])
		assert.Equal(t, float64(200), entry["status"])
		assert.Contains(t, entry["duration"], " ms")
		assert.Equal(t, `{"title":"x"}`, entry["body"])
		assert.Equal(t, map[string]any{"id": float64(1)}, entry["response"])
		assert.Contains(t, entry["curl"], "-X POST")
		assert.Contains(t, entry, "requestHeaders")
		assert.Contains(t, entry, "responseHeaders")

		cfg, ok := entry["requestConfig"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "POST", cfg["method"])
		assert.Equal(t, "same-origin", cfg["mode"])

		opts, ok := entry["options"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "https://api.example.com", opts["baseURL"])
	})

	t.Run("given ShowLogs on a failure, then writes the error instead of the response", func(t *testing.T) {
		var buf bytes.Buffer
		host := NewMockHost().StubError(errors.New("boom"))
		client := New(WithHost(host), WithShowLogs(true), WithLogger(zerolog.New(&buf)))

		client.Get(context.Background(), "https://api.example.com/p")

		entry := decodeLogLine(t, &buf)
		assert.Equal(t, "boom", entry["error"])
		assert.Equal(t, float64(500), entry["status"])
		assert.NotContains(t, entry, "response")
	})

	t.Run("given ShowLogs enabled per call, then logs only that call", func(t *testing.T) {
		var buf bytes.Buffer
		host := NewMockHost().StubResponse(http.StatusOK, `{}`)
		client := New(WithHost(host), WithLogger(zerolog.New(&buf)))

		client.Get(context.Background(), "https://api.example.com/quiet")
		assert.Empty(t, buf.String())

		client.Get(context.Background(), "https://api.example.com/loud", WithShowLogs(true))
		entry := decodeLogLine(t, &buf)
		assert.Equal(t, "GET https://api.example.com/loud", entry["message"])
	})

	t.Run("given a form body, then logs a placeholder", func(t *testing.T) {
		var buf bytes.Buffer
		host := NewMockHost().StubResponse(http.StatusOK, `{}`)
		client := New(WithHost(host), WithShowLogs(true), WithLogger(zerolog.New(&buf)))

		client.Post(context.Background(), "https://api.example.com/upload",
			NewFormData("application/x-www-form-urlencoded", strings.NewReader("a=1")))

		entry := decodeLogLine(t, &buf)
		assert.Equal(t, "[form data]", entry["body"])
	})
}

func TestHeaderDict(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	logger.Log().Dict("h", headerDict(map[string]string{"b": "2", "a": "1"})).Send()

	assert.Equal(t, `{"h":{"a":"1","b":"2"}}`+"\n", buf.String())
}
