package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/pkg/httputil"
	"github.com/utafrali/EcommerceGo/pkg/pagination"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/client"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/domain"
)

// OrderService reads a shopper's orders on their behalf.
type OrderService interface {
	ListOrders(ctx context.Context, token string, params pagination.Params) (*client.Page[domain.Order], error)
	GetOrder(ctx context.Context, token string, id int64) (*domain.Order, error)
}

// OrderListResponse is a page of orders.
type OrderListResponse struct {
	httputil.PaginatedResponse[domain.Order]
	Empty bool `json:"empty"`
}

// OrderResponse wraps a single order.
type OrderResponse struct {
	Order *domain.Order `json:"order"`
	Empty bool          `json:"empty"`
}

// AccountHandler serves the signed-in shopper's account pages. Anonymous
// callers are redirected to the login page.
type AccountHandler struct {
	orders    OrderService
	loginPath string
	logger    *slog.Logger
}

// NewAccountHandler creates a new account HTTP handler.
func NewAccountHandler(orders OrderService, loginPath string, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{orders: orders, loginPath: loginPath, logger: logger}
}

// ListOrders handles GET /api/v1/account/orders
func (h *AccountHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireLogin(w, r)
	if !ok {
		return
	}

	params := pagination.FromRequest(r)
	page, err := h.orders.ListOrders(r.Context(), token, params)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			h.redirectToLogin(w, r)
			return
		}
		writeDegradedOrders(w, r, params, err, h.logger)
		return
	}

	writeOrderPage(w, page)
}

// GetOrder handles GET /api/v1/account/orders/{orderId}
func (h *AccountHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireLogin(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteError(w, r, apperrors.InvalidInput("order id must be a positive integer"), h.logger)
		return
	}

	order, err := h.orders.GetOrder(r.Context(), token, id)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUnauthorized):
			h.redirectToLogin(w, r)
		case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrForbidden):
			httputil.WriteError(w, r, err, h.logger)
		default:
			h.logger.WarnContext(r.Context(), "order read failed, serving empty result",
				slog.Int64("order_id", id),
				slog.String("error", err.Error()),
			)
			noStore(w)
			httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: OrderResponse{Empty: true}})
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: OrderResponse{Order: order}})
}

// requireLogin returns the session's bearer token, or redirects and reports
// false when nobody is signed in.
func (h *AccountHandler) requireLogin(w http.ResponseWriter, r *http.Request) (string, bool) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return "", false
	}
	auth := sess.Auth.Snapshot()
	if !auth.IsAuthenticated() {
		h.redirectToLogin(w, r)
		return "", false
	}
	return auth.Token, true
}

func (h *AccountHandler) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := h.loginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func writeOrderPage(w http.ResponseWriter, page *client.Page[domain.Order]) {
	p := page.Meta.Params()
	total := page.Meta.Total
	if total < len(page.Items) {
		total = len(page.Items)
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: OrderListResponse{
		PaginatedResponse: httputil.NewPaginatedResponse(page.Items, total, p.Page, p.PerPage),
	}})
}

func writeDegradedOrders(w http.ResponseWriter, r *http.Request, params pagination.Params, err error, logger *slog.Logger) {
	logger.WarnContext(r.Context(), "order list failed, serving empty result",
		slog.String("error", err.Error()),
	)
	noStore(w)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: OrderListResponse{
		PaginatedResponse: httputil.NewPaginatedResponse([]domain.Order{}, 0, params.Page, params.PerPage),
		Empty:             true,
	}})
}
