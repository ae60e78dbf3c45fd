package fetchly

import (
	"context"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/google/uuid"
)

// exchange is what came back from the host, with the body fully read.
type exchange struct {
	req  *http.Request
	resp *http.Response
	body []byte
	err  error
}

// do runs one call through the pipeline. It never panics on failures inside
// the exchange and always returns a Result; panics raised by OnSuccess,
// OnError or OnInternalError propagate to the caller.
func do[T, E any](
	ctx context.Context,
	c *Client,
	method Method,
	rawURL string,
	body any,
	opts []Option,
) *Result[T, E] {
	if c == nil {
		c = defaultClient
	}

	state := c.state.Load()
	call := NewOptions(opts...)
	eff := mergeOptions(call, state.defaults)
	start := time.Now()
	requestID := uuid.NewString()

	// The query string is appended only when either tier has params, even
	// if every value ends up skipped.
	fullURL := deref(eff.BaseURL) + rawURL
	if call.Params != nil || state.defaults.Params != nil {
		fullURL += StringifyParams(eff.Params)
	}

	encoded, encodeErr := encodeBody(body)
	cfg := newRequestConfig(method, fullURL, eff, encoded)

	ctx, span := state.telemetry.start(ctx, cfg, requestID, encoded.size())
	nt := &networkTrace{}
	ctx = httptrace.WithClientTrace(ctx, nt.clientTrace())

	ex := exchange{err: encodeErr}
	if encodeErr == nil {
		host := eff.Host
		if host == nil {
			host = defaultHost()
		}
		ex = roundTrip(ctx, host, state.telemetry, eff.OnRequest, cfg, encoded, nt)
	}

	res := &Result[T, E]{Config: cfg, RequestID: requestID}
	failErr := ex.err
	var payload any
	if failErr == nil {
		res.Headers = ex.resp.Header
		contentType := ex.resp.Header.Get("Content-Type")
		format := selectFormat(eff.ResponseFormat, contentType)

		if isSuccessCode(ex.resp.StatusCode) {
			res.Data, failErr = safeDecode[T](format, ex.body, contentType)
			payload = payloadOf(res.Data)
			res.succeed(ex.resp.StatusCode, statusText(ex.resp))
		} else {
			// An error response may have no body; Error then stays nil.
			if len(ex.body) > 0 {
				res.Error, failErr = safeDecode[E](format, ex.body, contentType)
			}
			payload = payloadOf(res.Error)
			res.reject(ex.resp.StatusCode, statusText(ex.resp))
		}
	}
	if failErr != nil {
		payload = nil
		res.fail(classifyFailure(failErr), failErr)
	}

	res.Duration = time.Since(start)
	res.Trace = nt.traceInfo(res.Duration)

	out := callOutcome{
		statusCode:   res.StatusCode,
		errorType:    res.ErrorType,
		err:          res.InternalError,
		duration:     res.Duration,
		responseSize: int64(len(ex.body)),
	}
	if ex.resp != nil {
		out.protocol = ex.resp.Proto
	}
	state.telemetry.end(ctx, span, nt, cfg, out)
	state.prom.observe(method, res.StatusCode, res.ErrorType, res.Duration)

	if deref(eff.ShowLogs) {
		logCall(callLogger(eff.Logger), callRecord{
			requestID:  requestID,
			options:    eff,
			config:     cfg,
			request:    ex.req,
			response:   ex.resp,
			statusCode: res.StatusCode,
			duration:   res.Duration,
			payload:    payload,
			err:        res.InternalError,
		})
	}

	dispatchHooks(eff, res.ErrorType, payload, res.InternalError)
	return res
}

// roundTrip builds the request, runs OnRequest, calls the host and reads
// the body, all under the request timeout. A panic anywhere in here is
// recovered into a *PanicError.
func roundTrip(
	ctx context.Context,
	host Doer,
	tel *telemetry,
	onRequest RequestHook,
	cfg *RequestConfig,
	body encodedBody,
	nt *networkTrace,
) (ex exchange) {
	defer func() {
		if r := recover(); r != nil {
			ex.resp = nil
			ex.body = nil
			ex.err = &PanicError{Value: r}
		}
	}()

	ctx, cancel, err := timeoutContext(ctx, cfg.Timeout)
	defer cancel()
	if err != nil {
		ex.err = err
		return ex
	}

	req, err := http.NewRequestWithContext(
		contextWithRequestConfig(ctx, cfg),
		string(cfg.Method),
		cfg.URL,
		body.reader,
	)
	if err != nil {
		ex.err = err
		return ex
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if body.form && body.contentType != "" {
		req.Header.Set("Content-Type", body.contentType)
	}
	tel.inject(ctx, req.Header)
	ex.req = req

	if onRequest != nil {
		onRequest(req)
	}

	resp, err := host.Do(req)
	if err != nil {
		ex.err = withTimeoutCause(ctx, err)
		return ex
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	nt.bodyRead()
	if err != nil {
		ex.err = withTimeoutCause(ctx, err)
		return ex
	}

	ex.resp = resp
	ex.body = data
	return ex
}

// safeDecode runs decodeBody, tags its failures as decodeError and
// recovers a panicking decoder.
func safeDecode[V any](format ResponseFormat, body []byte, contentType string) (v *V, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, &PanicError{Value: r}
		}
	}()
	v, err = decodeBody[V](format, body, contentType)
	if err != nil {
		return nil, &decodeError{err: err}
	}
	return v, nil
}

// dispatchHooks fires exactly one outcome hook. The merged hooks already
// run the client's hook before the call's.
func dispatchHooks(eff Options, errorType *ErrorType, payload any, err error) {
	switch {
	case errorType == nil:
		if eff.OnSuccess != nil {
			eff.OnSuccess(payload)
		}
	case *errorType == ErrorTypeAPI && err == nil:
		if eff.OnError != nil {
			eff.OnError(payload)
		}
	default:
		if eff.OnInternalError != nil {
			eff.OnInternalError(err)
		}
	}
}
