package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/EcommerceGo/pkg/httputil"
	"github.com/utafrali/EcommerceGo/pkg/validator"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/client"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/domain"
)

// AuthService authenticates shoppers against the backend.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*client.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// SessionHandler exposes the persisted auth state of the browser session.
type SessionHandler struct {
	auth   AuthService
	logger *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(auth AuthService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{auth: auth, logger: logger}
}

// LoginRequest is the JSON body for POST /api/v1/session/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse never carries the bearer token.
type SessionResponse struct {
	Hydrated      bool         `json:"hydrated"`
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user"`
	IsAdmin       bool         `json:"is_admin"`
}

func newSessionResponse(s domain.AuthSession) SessionResponse {
	return SessionResponse{
		Hydrated:      s.HasHydrated,
		Authenticated: s.IsAuthenticated(),
		User:          s.User,
		IsAdmin:       s.IsAdmin,
	}
}

// GetSession handles GET /api/v1/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newSessionResponse(sess.Auth.Snapshot())})
}

// Login handles POST /api/v1/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := sess.Auth.Login(r.Context(), result.Token, result.User, result.IsAdmin); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.logger.InfoContext(r.Context(), "shopper logged in",
		slog.String("session_id", sess.ID),
		slog.Int64("user_id", result.User.ID),
		slog.Bool("is_admin", result.IsAdmin),
	)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newSessionResponse(sess.Auth.Snapshot())})
}

// Logout handles POST /api/v1/session/logout. The backend logout is best
// effort; local credentials are cleared regardless.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	if token := sess.Auth.Snapshot().Token; token != "" {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			h.logger.WarnContext(r.Context(), "backend logout failed",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := sess.Auth.Logout(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newSessionResponse(sess.Auth.Snapshot())})
}
