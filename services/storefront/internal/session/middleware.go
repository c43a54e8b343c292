package session

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/pkg/httputil"
	"github.com/utafrali/EcommerceGo/pkg/logger"
	"github.com/utafrali/EcommerceGo/pkg/middleware"
)

// CookieName is the cookie carrying the signed session id.
const CookieName = "sf_session"

type contextKey struct{}

// NewContext returns a copy of ctx carrying sess.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session stored by Middleware, or nil.
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(contextKey{}).(*Session)
	return sess
}

// Middleware resolves the browser session from its cookie, creating a new
// one when the cookie is missing or invalid, and stores it in the request
// context. A logged-in user's identity is placed in context for the
// RequireAuth and RequireRole guards and for request logs.
func Middleware(reg *Registry, codec *Codec, secureCookie bool, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			sid := ""
			if c, err := r.Cookie(CookieName); err == nil {
				if id, err := codec.Parse(c.Value); err == nil {
					sid = id
				} else {
					log.DebugContext(ctx, "discarding session cookie", slog.String("error", err.Error()))
				}
			}

			if sid == "" {
				sid = uuid.New().String()
				token, err := codec.Issue(sid)
				if err != nil {
					httputil.WriteError(w, r, apperrors.Internal(err), log)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     CookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   int(codec.TTL().Seconds()),
					HttpOnly: true,
					Secure:   secureCookie,
					SameSite: http.SameSiteLaxMode,
				})
			}

			sess, err := reg.Get(ctx, sid)
			if err != nil {
				httputil.WriteError(w, r, apperrors.ServiceUnavailable("session storage is unavailable", err), log)
				return
			}

			ctx = NewContext(ctx, sess)
			if auth := sess.Auth.Snapshot(); auth.IsAuthenticated() {
				userID := strconv.FormatInt(auth.User.ID, 10)
				role := middleware.RoleCustomer
				if auth.IsAdmin {
					role = middleware.RoleAdmin
				}
				ctx = middleware.WithIdentity(ctx, userID, role)
				ctx = logger.WithUserID(ctx, userID)
				ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", userID)))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
