package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestParseResponseError_Structured(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		code     string
		message  string
		sentinel error
	}{
		{
			name:     "not found",
			status:   http.StatusNotFound,
			body:     `{"error":{"code":"NOT_FOUND","message":"walnut-desk"}}`,
			code:     "NOT_FOUND",
			message:  "catalog with id walnut-desk not found",
			sentinel: apperrors.ErrNotFound,
		},
		{
			name:     "bad request",
			status:   http.StatusBadRequest,
			body:     `{"error":{"code":"BAD","message":"per_page too large"}}`,
			code:     "INVALID_INPUT",
			message:  "catalog: per_page too large",
			sentinel: apperrors.ErrInvalidInput,
		},
		{
			name:     "unauthorized flat message",
			status:   http.StatusUnauthorized,
			body:     `{"message":"Unauthenticated."}`,
			code:     "UNAUTHORIZED",
			message:  "catalog: Unauthenticated.",
			sentinel: apperrors.ErrUnauthorized,
		},
		{
			name:     "forbidden",
			status:   http.StatusForbidden,
			body:     `{"error":{"code":"FORBIDDEN","message":"admins only"}}`,
			code:     "FORBIDDEN",
			message:  "catalog: admins only",
			sentinel: apperrors.ErrForbidden,
		},
		{
			name:     "conflict",
			status:   http.StatusConflict,
			body:     `{"message":"already exists"}`,
			code:     "CONFLICT",
			sentinel: apperrors.ErrConflict,
		},
		{
			name:     "gone",
			status:   http.StatusGone,
			body:     `{"message":"listing removed"}`,
			code:     "GONE",
			sentinel: apperrors.ErrGone,
		},
		{
			name:     "unprocessable",
			status:   http.StatusUnprocessableEntity,
			body:     `{"message":"The given data was invalid."}`,
			code:     "UNPROCESSABLE_ENTITY",
			sentinel: apperrors.ErrValidation,
		},
		{
			name:     "service unavailable",
			status:   http.StatusServiceUnavailable,
			body:     `{"message":"maintenance"}`,
			code:     "SERVICE_UNAVAILABLE",
			message:  "catalog: maintenance",
			sentinel: apperrors.ErrServiceUnavail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseResponseError(response(tt.status, tt.body), "catalog")

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.status, appErr.Status)
			assert.Equal(t, tt.code, appErr.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, appErr.Message)
			}
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestParseResponseError_OtherClientStatusKeepsStatus(t *testing.T) {
	err := ParseResponseError(response(http.StatusTooManyRequests, `{"message":"slow down"}`), "orders")

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusTooManyRequests, appErr.Status)
	assert.Equal(t, "TOO_MANY_REQUESTS", appErr.Code)
	assert.Equal(t, "orders: slow down", appErr.Message)
}

func TestParseResponseError_ServerErrorIsPlain(t *testing.T) {
	err := ParseResponseError(response(http.StatusBadGateway, `{"error":{"code":"UPSTREAM","message":"db down"}}`), "orders")

	var appErr *apperrors.AppError
	assert.False(t, errors.As(err, &appErr))
	assert.Equal(t, "orders server error (502/UPSTREAM): db down", err.Error())
	assert.Equal(t, http.StatusInternalServerError, apperrors.HTTPStatus(err))
}

func TestParseResponseError_Unstructured(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "html", body: "<html>Bad Gateway</html>"},
		{name: "empty", body: ""},
		{name: "json without error", body: `{"error":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseResponseError(response(http.StatusNotFound, tt.body), "auth")

			require.Error(t, err)
			assert.Equal(t, "auth returned status 404: "+tt.body, err.Error())
		})
	}
}

type failingBody struct{ closed bool }

func (b *failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func (b *failingBody) Close() error {
	b.closed = true
	return nil
}

func TestParseResponseError_ReadFailureClosesBody(t *testing.T) {
	body := &failingBody{}

	err := ParseResponseError(&http.Response{StatusCode: http.StatusBadRequest, Body: body}, "auth")

	assert.ErrorContains(t, err, "auth returned status 400 (failed to read body: connection reset)")
	assert.True(t, body.closed)
}
