package fetchly

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/url"
	"reflect"
	"strings"

	json "github.com/goccy/go-json"
)

// ResponseFormat selects how a response body is decoded.
type ResponseFormat string

const (
	// FormatJSON parses the body into the caller's type.
	FormatJSON ResponseFormat = "json"

	// FormatText returns the body as a string.
	FormatText ResponseFormat = "text"

	// FormatBlob returns a Blob carrying the bytes and their media type.
	FormatBlob ResponseFormat = "blob"

	// FormatFormData parses a multipart or urlencoded body into a *multipart.Form.
	FormatFormData ResponseFormat = "formdata"

	// FormatArrayBuffer returns the raw bytes.
	FormatArrayBuffer ResponseFormat = "arraybuffer"
)

// maxFormMemory bounds the in-memory part of a decoded multipart form.
const maxFormMemory = 32 << 20

func (f ResponseFormat) String() string {
	return string(f)
}

// UnmarshalText parses a format name case-insensitively.
func (f *ResponseFormat) UnmarshalText(text []byte) error {
	parsed, err := ParseResponseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseResponseFormat parses a format name. "buffer" and "form" are accepted
// as aliases of blob and formdata.
func ParseResponseFormat(s string) (ResponseFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	case "blob", "buffer":
		return FormatBlob, nil
	case "formdata", "form-data", "form":
		return FormatFormData, nil
	case "arraybuffer", "array-buffer":
		return FormatArrayBuffer, nil
	}
	return "", fmt.Errorf("fetchly: unknown response format %q", s)
}

// Blob is an opaque binary body together with its declared media type.
type Blob struct {
	Type string
	Data []byte
}

// Size returns the length of the blob in bytes.
func (b Blob) Size() int {
	return len(b.Data)
}

// selectFormat returns explicit when set, otherwise sniffs contentType.
// Matching is a case-insensitive substring test; unknown types fall back to JSON.
func selectFormat(explicit *ResponseFormat, contentType string) ResponseFormat {
	if explicit != nil && *explicit != "" {
		return *explicit
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/json"):
		return FormatJSON
	case strings.Contains(ct, "text"):
		return FormatText
	case strings.Contains(ct, "blob"):
		return FormatBlob
	case strings.Contains(ct, "form-data"):
		return FormatFormData
	case strings.Contains(ct, "array-buffer"):
		return FormatArrayBuffer
	}
	return FormatJSON
}

// errEmptyBody is returned when a JSON or form body is required but the
// response has none.
var errEmptyBody = errors.New("empty body")

// decodeError wraps any failure to decode a response body. It classifies as
// Internal whatever it wraps, including io.ErrUnexpectedEOF from a
// truncated multipart body.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// decodeBody decodes body into a *V according to format. JSON and form
// bodies must not be empty; text, blob and array buffer decode an empty
// body to their empty value.
func decodeBody[V any](format ResponseFormat, body []byte, contentType string) (*V, error) {
	if format == FormatJSON {
		if len(body) == 0 {
			return nil, fmt.Errorf("fetchly: decode json body: %w", errEmptyBody)
		}
		var v V
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, fmt.Errorf("fetchly: decode json body: %w", err)
		}
		return &v, nil
	}

	var (
		value any
		err   error
	)
	switch format {
	case FormatText:
		value = string(body)
	case FormatBlob:
		value = Blob{Type: contentType, Data: nonNilBytes(body)}
	case FormatArrayBuffer:
		value = nonNilBytes(body)
	case FormatFormData:
		if len(body) == 0 {
			return nil, fmt.Errorf("fetchly: decode form body: %w", errEmptyBody)
		}
		value, err = decodeForm(body, contentType)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("fetchly: unknown response format %q", format)
	}

	v, ok := value.(V)
	if !ok {
		return nil, fmt.Errorf(
			"fetchly: cannot decode %s body into %s",
			format, reflect.TypeFor[V](),
		)
	}
	return &v, nil
}

// decodeForm parses a multipart/form-data or urlencoded body.
func decodeForm(body []byte, contentType string) (*multipart.Form, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("fetchly: decode form body: %w", err)
	}

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		boundary := params["boundary"]
		if boundary == "" {
			return nil, errors.New("fetchly: decode form body: missing multipart boundary")
		}
		form, err := multipart.NewReader(bytes.NewReader(body), boundary).ReadForm(maxFormMemory)
		if err != nil {
			return nil, fmt.Errorf("fetchly: decode form body: %w", err)
		}
		return form, nil
	case mediaType == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("fetchly: decode form body: %w", err)
		}
		return &multipart.Form{Value: values, File: map[string][]*multipart.FileHeader{}}, nil
	}
	return nil, fmt.Errorf("fetchly: cannot decode %q as form data", mediaType)
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// payloadOf unwraps a decoded pointer for hooks and logs.
func payloadOf[V any](v *V) any {
	if v == nil {
		return nil
	}
	return *v
}
