package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/pkg/httputil"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/session"
)

var errNoSession = errors.New("no session in request context")

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// currentSession returns the request's session, writing a 500 when the
// session middleware is not mounted.
func currentSession(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*session.Session, bool) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		httputil.WriteError(w, r, apperrors.Internal(errNoSession), logger)
		return nil, false
	}
	return sess, true
}

// noStore marks degraded responses so they are not cached.
func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}
