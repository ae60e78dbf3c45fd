package fetchly

import (
	"bytes"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectFormat(t *testing.T) {
	text := FormatText

	tests := []struct {
		name        string
		explicit    *ResponseFormat
		contentType string
		want        ResponseFormat
	}{
		{
			name:        "given explicit format, then ignores content type",
			explicit:    &text,
			contentType: "application/json",
			want:        FormatText,
		},
		{
			name:        "given json with charset, then json",
			contentType: "application/json; charset=utf-8",
			want:        FormatJSON,
		},
		{
			name:        "given upper case content type, then matches case-insensitively",
			contentType: "Application/JSON",
			want:        FormatJSON,
		},
		{
			name:        "given text/html, then text",
			contentType: "text/html",
			want:        FormatText,
		},
		{
			name:        "given blob content type, then blob",
			contentType: "application/blob",
			want:        FormatBlob,
		},
		{
			name:        "given multipart form, then formdata",
			contentType: "multipart/form-data; boundary=xyz",
			want:        FormatFormData,
		},
		{
			name:        "given array-buffer content type, then arraybuffer",
			contentType: "application/array-buffer",
			want:        FormatArrayBuffer,
		},
		{
			name:        "given unknown content type, then falls back to json",
			contentType: "application/octet-stream",
			want:        FormatJSON,
		},
		{
			name:        "given no content type, then falls back to json",
			contentType: "",
			want:        FormatJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, selectFormat(tt.explicit, tt.contentType))
		})
	}
}

func TestParseResponseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    ResponseFormat
		wantErr bool
	}{
		{input: "json", want: FormatJSON},
		{input: " TEXT ", want: FormatText},
		{input: "buffer", want: FormatBlob},
		{input: "form", want: FormatFormData},
		{input: "form-data", want: FormatFormData},
		{input: "array-buffer", want: FormatArrayBuffer},
		{input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseResponseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("given UnmarshalText, then uses the same aliases", func(t *testing.T) {
		var f ResponseFormat
		require.NoError(t, f.UnmarshalText([]byte("Blob")))
		assert.Equal(t, FormatBlob, f)
		assert.Error(t, f.UnmarshalText([]byte("nope")))
	})
}

func TestDecodeBody(t *testing.T) {
	type product struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
	}

	t.Run("given json into a struct, then decodes fields", func(t *testing.T) {
		got, err := decodeBody[product](FormatJSON, []byte(`{"id":1,"title":"phone"}`), "application/json")
		require.NoError(t, err)
		assert.Equal(t, &product{ID: 1, Title: "phone"}, got)
	})

	t.Run("given json into any, then decodes a map", func(t *testing.T) {
		got, err := decodeBody[any](FormatJSON, []byte(`{"id":1}`), "application/json")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": float64(1)}, *got)
	})

	t.Run("given malformed json, then returns an error", func(t *testing.T) {
		got, err := decodeBody[product](FormatJSON, []byte(`{"id":`), "application/json")
		assert.Error(t, err)
		assert.Nil(t, got)
	})

	t.Run("given an empty json body, then fails", func(t *testing.T) {
		got, err := decodeBody[product](FormatJSON, nil, "application/json")
		assert.ErrorIs(t, err, errEmptyBody)
		assert.Nil(t, got)
	})

	t.Run("given an empty form body, then fails", func(t *testing.T) {
		got, err := decodeBody[any](FormatFormData, nil, "multipart/form-data; boundary=b")
		assert.ErrorIs(t, err, errEmptyBody)
		assert.Nil(t, got)
	})

	t.Run("given an empty text body, then returns an empty string", func(t *testing.T) {
		got, err := decodeBody[string](FormatText, nil, "text/plain")
		require.NoError(t, err)
		assert.Equal(t, "", *got)
	})

	t.Run("given an empty array buffer, then returns empty bytes", func(t *testing.T) {
		got, err := decodeBody[[]byte](FormatArrayBuffer, nil, "")
		require.NoError(t, err)
		assert.NotNil(t, *got)
		assert.Empty(t, *got)
	})

	t.Run("given an empty blob, then returns an empty blob", func(t *testing.T) {
		got, err := decodeBody[Blob](FormatBlob, nil, "image/png")
		require.NoError(t, err)
		assert.Equal(t, "image/png", got.Type)
		assert.Zero(t, got.Size())
	})

	t.Run("given text into string, then returns the text", func(t *testing.T) {
		got, err := decodeBody[string](FormatText, []byte("hello"), "text/plain")
		require.NoError(t, err)
		assert.Equal(t, "hello", *got)
	})

	t.Run("given text into any, then returns the text", func(t *testing.T) {
		got, err := decodeBody[any](FormatText, []byte("hello"), "text/plain")
		require.NoError(t, err)
		assert.Equal(t, "hello", *got)
	})

	t.Run("given text into a struct, then reports a type mismatch", func(t *testing.T) {
		_, err := decodeBody[product](FormatText, []byte("hello"), "text/plain")
		assert.ErrorContains(t, err, "cannot decode text body")
	})

	t.Run("given blob, then keeps bytes and media type", func(t *testing.T) {
		got, err := decodeBody[Blob](FormatBlob, []byte{1, 2, 3}, "image/png")
		require.NoError(t, err)
		assert.Equal(t, "image/png", got.Type)
		assert.Equal(t, 3, got.Size())
	})

	t.Run("given arraybuffer, then returns raw bytes", func(t *testing.T) {
		got, err := decodeBody[[]byte](FormatArrayBuffer, []byte("raw"), "")
		require.NoError(t, err)
		assert.Equal(t, []byte("raw"), *got)
	})

	t.Run("given an unknown format, then returns an error", func(t *testing.T) {
		_, err := decodeBody[any](ResponseFormat("xml"), []byte("<a/>"), "")
		assert.Error(t, err)
	})
}

func TestDecodeForm(t *testing.T) {
	t.Run("given multipart body, then parses fields", func(t *testing.T) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		require.NoError(t, w.WriteField("title", "report"))
		require.NoError(t, w.Close())

		got, err := decodeBody[*multipart.Form](FormatFormData, buf.Bytes(), w.FormDataContentType())
		require.NoError(t, err)
		assert.Equal(t, []string{"report"}, (*got).Value["title"])
	})

	t.Run("given urlencoded body, then parses values", func(t *testing.T) {
		got, err := decodeBody[*multipart.Form](
			FormatFormData,
			[]byte("a=1&b=2&a=3"),
			"application/x-www-form-urlencoded",
		)
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "3"}, (*got).Value["a"])
	})

	t.Run("given multipart without boundary, then returns an error", func(t *testing.T) {
		_, err := decodeForm([]byte("x"), "multipart/form-data")
		assert.ErrorContains(t, err, "missing multipart boundary")
	})

	t.Run("given a non-form media type, then returns an error", func(t *testing.T) {
		_, err := decodeForm([]byte("x"), "application/json")
		assert.Error(t, err)
	})
}
