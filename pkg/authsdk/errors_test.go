package authsdk

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOAuth2ErrorWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrInvalidGrant.WriteError(rec)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"error":"invalid_grant","error_description":"the refresh token is invalid or has already been used"}`, rec.Body.String())
}

func TestParseErrorResponse(t *testing.T) {
	respWith := func(code int, header http.Header) *http.Response {
		if header == nil {
			header = http.Header{}
		}
		return &http.Response{StatusCode: code, Header: header}
	}

	t.Run("success is nil", func(t *testing.T) {
		require.NoError(t, parseErrorResponse(respWith(http.StatusNoContent, nil), nil))
	})

	t.Run("json body", func(t *testing.T) {
		err := parseErrorResponse(respWith(http.StatusUnauthorized, nil),
			[]byte(`{"error":"invalid_grant","error_description":"nope"}`))
		require.True(t, errors.Is(err, ErrInvalidGrant))

		var oe *OAuth2Error
		require.ErrorAs(t, err, &oe)
		require.Equal(t, "nope", oe.Description)
	})

	t.Run("bare bearer challenge", func(t *testing.T) {
		h := http.Header{}
		h.Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		err := parseErrorResponse(respWith(http.StatusUnauthorized, h), nil)
		require.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("unknown body", func(t *testing.T) {
		err := parseErrorResponse(respWith(http.StatusBadGateway, nil), []byte("<html>"))
		var oe *OAuth2Error
		require.ErrorAs(t, err, &oe)
		require.Equal(t, ErrorCodeServerError, oe.Code)
		require.Equal(t, http.StatusBadGateway, oe.StatusCode)
	})
}
