package client

import (
	"context"
	"fmt"

	"github.com/utafrali/EcommerceGo/services/storefront/internal/domain"
)

// LoginResult is a successful authentication.
type LoginResult struct {
	Token   string
	User    *domain.User
	IsAdmin bool
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginPayload struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type loginResponse struct {
	loginPayload
	Data *loginPayload `json:"data"`
}

// AuthClient calls the backend authentication endpoints.
type AuthClient struct {
	base
}

// NewAuthClient creates an auth client for the API at baseURL.
func NewAuthClient(doer HTTPDoer, baseURL string) *AuthClient {
	return &AuthClient{base: newBase(doer, baseURL, "auth")}
}

// Login exchanges credentials for a token. Bad credentials surface as an
// Unauthorized or Unprocessable AppError.
func (c *AuthClient) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var resp loginResponse
	if err := c.post(ctx, "/auth/login", loginRequest{Email: email, Password: password}, "", &resp); err != nil {
		return nil, err
	}

	payload := resp.loginPayload
	if resp.Data != nil {
		payload = *resp.Data
	}
	if payload.Token == "" || payload.User == nil {
		return nil, fmt.Errorf("%s: login response without token or user", c.service)
	}

	return &LoginResult{
		Token:   payload.Token,
		User:    payload.User,
		IsAdmin: payload.User.Role == "admin",
	}, nil
}

// Logout revokes token on the backend.
func (c *AuthClient) Logout(ctx context.Context, token string) error {
	return c.post(ctx, "/auth/logout", nil, token, nil)
}
