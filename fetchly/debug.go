package fetchly

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// debugLogger is the package-level zerolog logger for ShowLogs records.
var debugLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// callLogger returns the configured logger or the package default.
func callLogger(l *zerolog.Logger) zerolog.Logger {
	if l != nil {
		return *l
	}
	return debugLogger
}

// callRecord is everything one ShowLogs record reports.
type callRecord struct {
	requestID  string
	options    Options
	config     *RequestConfig
	request    *http.Request
	response   *http.Response
	statusCode int
	duration   time.Duration
	payload    any
	err        error
}

// logCall writes a single debug record for a finished call.
//
// Example output (wrapped):
//
//	{"level":"debug","requestId":"6f1c...","status":200,"duration":"12 ms",
//	 "body":"","options":{...},"requestConfig":{...},"requestHeaders":{...},
//	 "responseHeaders":{"Content-Type":"application/json"},"response":{"id":1},
//	 "curl":"curl 'https://dummyjson.com/products/1' ...","message":"GET https://dummyjson.com/products/1"}
func logCall(logger zerolog.Logger, rec callRecord) {
	event := logger.Debug().
		Str("requestId", rec.requestID).
		Int("status", rec.statusCode).
		Str("duration", fmt.Sprintf("%d ms", rec.duration.Milliseconds())).
		Str("body", requestBodyText(rec.config)).
		Object("options", rec.options).
		Object("requestConfig", rec.config)

	if rec.request != nil {
		event.Dict("requestHeaders", flattenHeaders(rec.request.Header)).
			Str("curl", generateCurlCommand(rec.request, rec.config.Body))
	} else {
		event.Dict("requestHeaders", headerDict(rec.config.Headers))
	}

	if rec.err != nil {
		event.AnErr("error", rec.err)
	} else if rec.response != nil {
		event.Dict("responseHeaders", flattenHeaders(rec.response.Header)).
			Interface("response", rec.payload)
	}

	event.Msg(string(rec.config.Method) + " " + rec.config.URL)
}

// requestBodyText renders the request body for logs.
func requestBodyText(cfg *RequestConfig) string {
	if cfg.Form {
		return "[form data]"
	}
	return string(cfg.Body)
}

// flattenHeaders joins repeated header values with ", ".
func flattenHeaders(h http.Header) *zerolog.Event {
	flat := make(map[string]string, len(h))
	for k, v := range h {
		flat[k] = strings.Join(v, ", ")
	}
	return headerDict(flat)
}

// generateCurlCommand creates a cURL command equivalent for the given request.
//
// The generated command can be used to reproduce the request from the command line.
// Sensitive headers like Authorization are included for debugging purposes.
//
// Example output:
//
//	curl -X POST 'https://api.example.com/users' \
//	  -H 'Content-Type: application/json' \
//	  -H 'Authorization: Bearer ***' \
//	  -d '{"name":"John"}'
func generateCurlCommand(req *http.Request, body []byte) string {
	var parts []string

	parts = append(parts, "curl")

	if req.Method != http.MethodGet {
		parts = append(parts, "-X", req.Method)
	}

	parts = append(parts, fmt.Sprintf("'%s'", req.URL.String()))

	// Headers (sorted for consistent output)
	headerKeys := make([]string, 0, len(req.Header))
	for k := range req.Header {
		headerKeys = append(headerKeys, k)
	}
	sort.Strings(headerKeys)

	for _, k := range headerKeys {
		for _, v := range req.Header[k] {
			parts = append(parts, "-H", fmt.Sprintf("'%s: %s'", k, v))
		}
	}

	if len(body) > 0 {
		// Escape single quotes in body
		bodyStr := strings.ReplaceAll(string(body), "'", "'\\''")
		parts = append(parts, "-d", fmt.Sprintf("'%s'", bodyStr))
	}

	return strings.Join(parts, " ")
}
