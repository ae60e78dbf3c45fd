package fetchly

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultErr(t *testing.T) {
	t.Run("given success, then nil", func(t *testing.T) {
		res := &Result[any, any]{}
		res.succeed(http.StatusOK, "OK")

		assert.NoError(t, res.Err())
		assert.True(t, res.IsSuccess())
	})

	t.Run("given an api failure, then carries code and payload", func(t *testing.T) {
		payload := map[string]any{"message": "not found"}
		res := &Result[any, map[string]any]{Error: &payload}
		res.reject(http.StatusNotFound, "Not Found")

		var resErr *ResultError
		require.ErrorAs(t, res.Err(), &resErr)
		assert.Equal(t, ErrorTypeAPI, resErr.Type)
		assert.Equal(t, http.StatusNotFound, resErr.Code)
		assert.Equal(t, payload, resErr.Payload)
		assert.Equal(t, "fetchly: api error: 404 Not Found", resErr.Error())
		assert.True(t, res.IsAPIError())
	})

	t.Run("given a network failure, then unwraps to the cause", func(t *testing.T) {
		res := &Result[any, any]{}
		res.fail(classifyFailure(ErrTimeout), ErrTimeout)

		err := res.Err()
		assert.ErrorIs(t, err, ErrTimeout)
		assert.Contains(t, err.Error(), "network error: Network Error")
		assert.True(t, res.IsNetworkError())
	})

	t.Run("given a failure after decoding, then clears the payloads", func(t *testing.T) {
		data := "partial"
		res := &Result[string, string]{Data: &data}
		res.succeed(http.StatusOK, "OK")

		res.fail(classifyFailure(errors.New("decode")), errors.New("decode"))

		assert.Nil(t, res.Data)
		assert.Nil(t, res.Error)
		assert.True(t, res.HasError)
		assert.Equal(t, StatusError, res.Status)
		assert.True(t, res.IsInternalError())
	})
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		name string
		resp *http.Response
		want string
	}{
		{
			name: "given a server reason phrase, then keeps it",
			resp: &http.Response{StatusCode: 404, Status: "404 Nothing Here"},
			want: "Nothing Here",
		},
		{
			name: "given no status line, then uses the canonical text",
			resp: &http.Response{StatusCode: 404},
			want: "Not Found",
		},
		{
			name: "given a status line for another code, then uses the canonical text",
			resp: &http.Response{StatusCode: 200, Status: "201 Created"},
			want: "OK",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusText(tt.resp))
		})
	}
}

func TestIsSuccessCode(t *testing.T) {
	assert.False(t, isSuccessCode(199))
	assert.True(t, isSuccessCode(200))
	assert.True(t, isSuccessCode(299))
	assert.False(t, isSuccessCode(300))
}
