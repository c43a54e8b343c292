package http

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
)

func TestGetSession_Anonymous(t *testing.T) {
	env := setupRouter(t)
	b := env.browser(t)

	rec := b.do(http.MethodGet, "/api/v1/session", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SessionResponse
	decodeData(t, rec, &resp)
	assert.True(t, resp.Hydrated)
	assert.False(t, resp.Authenticated)
	assert.Nil(t, resp.User)
	assert.False(t, resp.IsAdmin)
}

func TestLogin_Success(t *testing.T) {
	env := setupRouter(t)
	b := env.browser(t)

	b.loginAs(customer, false)

	rec := b.do(http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "tok-")

	var resp SessionResponse
	decodeData(t, rec, &resp)
	assert.True(t, resp.Authenticated)
	require.NotNil(t, resp.User)
	assert.Equal(t, customer.ID, resp.User.ID)
	assert.False(t, resp.IsAdmin)

	// Credentials are written to the session's durable storage.
	assert.Positive(t, env.storage.Len())
	env.auth.AssertExpectations(t)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := setupRouter(t)
	b := env.browser(t)
	env.auth.On("Login", mock.Anything, "ada@example.com", "wrong").
		Return(nil, apperrors.Unauthorized("invalid credentials"))

	rec := b.do(http.MethodPost, "/api/v1/session/login", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp SessionResponse
	decodeData(t, b.do(http.MethodGet, "/api/v1/session", nil), &resp)
	assert.False(t, resp.Authenticated)
}

func TestLogin_BackendUnavailable(t *testing.T) {
	env := setupRouter(t)
	b := env.browser(t)
	env.auth.On("Login", mock.Anything, "ada@example.com", "secret").
		Return(nil, apperrors.ServiceUnavailable("auth service is unavailable", errors.New("dial tcp")))

	rec := b.do(http.MethodPost, "/api/v1/session/login", map[string]string{
		"email":    "ada@example.com",
		"password": "secret",
	})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLogin_ValidationError(t *testing.T) {
	env := setupRouter(t)
	b := env.browser(t)

	rec := b.do(http.MethodPost, "/api/v1/session/login", map[string]string{"email": "not-an-email"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeErrorCode(t, rec))
	env.auth.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogout_ClearsCredentials(t *testing.T) {
	env := setupRouter(t)
	b := env.browser(t)
	b.loginAs(customer, false)
	env.auth.On("Logout", mock.Anything, "tok-ada@example.com").Return(nil).Once()

	rec := b.do(http.MethodPost, "/api/v1/session/logout", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SessionResponse
	decodeData(t, rec, &resp)
	assert.False(t, resp.Authenticated)
	env.auth.AssertExpectations(t)
}

func TestLogout_BackendFailureStillClearsCredentials(t *testing.T) {
	env := setupRouter(t)
	b := env.browser(t)
	b.loginAs(customer, false)
	env.auth.On("Logout", mock.Anything, mock.Anything).Return(errors.New("connection refused")).Once()

	rec := b.do(http.MethodPost, "/api/v1/session/logout", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SessionResponse
	decodeData(t, rec, &resp)
	assert.False(t, resp.Authenticated)
}

func TestLogout_AnonymousSkipsBackend(t *testing.T) {
	env := setupRouter(t)
	b := env.browser(t)

	rec := b.do(http.MethodPost, "/api/v1/session/logout", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	env.auth.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
}
