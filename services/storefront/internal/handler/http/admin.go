package http

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/pkg/httputil"
	"github.com/utafrali/EcommerceGo/pkg/pagination"
)

// AdminHandler serves the admin shell. Routes are mounted behind the auth
// and admin role guards.
type AdminHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(orders OrderService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{orders: orders, logger: logger}
}

// Overview handles GET /api/v1/admin
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newSessionResponse(sess.Auth.Snapshot())})
}

// ListOrders handles GET /api/v1/admin/orders
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	params := pagination.FromRequest(r)
	page, err := h.orders.ListOrders(r.Context(), sess.Auth.Snapshot().Token, params)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) || errors.Is(err, apperrors.ErrForbidden) {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		writeDegradedOrders(w, r, params, err, h.logger)
		return
	}

	writeOrderPage(w, page)
}
