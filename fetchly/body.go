package fetchly

import (
	"bytes"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// FormData is an already-built form body. It is handed to the host as is,
// with its own Content-Type (which carries the multipart boundary).
//
// Example:
//
//	var buf bytes.Buffer
//	w := multipart.NewWriter(&buf)
//	_ = w.WriteField("title", "report")
//	_ = w.Close()
//
//	res := client.Post(ctx, "/upload", fetchly.NewFormData(w.FormDataContentType(), &buf))
type FormData struct {
	ContentType string
	Body        io.Reader
}

// NewFormData wraps an encoded form body and its content type.
func NewFormData(contentType string, body io.Reader) *FormData {
	return &FormData{ContentType: contentType, Body: body}
}

// encodedBody is the request body after encoding.
type encodedBody struct {
	reader      io.Reader
	raw         []byte
	contentType string
	form        bool
}

// size returns the encoded length, or -1 when unknown.
func (b encodedBody) size() int64 {
	if b.form {
		return -1
	}
	return int64(len(b.raw))
}

// encodeBody turns a caller-supplied body into a request body. Form data
// passes through; every other non-nil value is JSON-encoded.
func encodeBody(body any) (encodedBody, error) {
	switch b := body.(type) {
	case nil:
		return encodedBody{}, nil
	case *FormData:
		if b == nil {
			return encodedBody{}, nil
		}
		return encodedBody{reader: b.Body, contentType: b.ContentType, form: true}, nil
	case FormData:
		return encodedBody{reader: b.Body, contentType: b.ContentType, form: true}, nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return encodedBody{}, fmt.Errorf("fetchly: encode request body: %w", err)
	}
	return encodedBody{reader: bytes.NewReader(data), raw: data}, nil
}
