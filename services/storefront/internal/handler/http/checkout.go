package http

import (
	"context"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/pkg/httputil"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/domain"
)

// SettingsService reads the store-wide checkout settings.
type SettingsService interface {
	GetSettings(ctx context.Context) (*domain.Settings, error)
}

// CheckoutHandler prices the session cart for the checkout page.
type CheckoutHandler struct {
	settings SettingsService
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(settings SettingsService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{settings: settings, logger: logger}
}

// CheckoutSummaryResponse is the priced cart.
type CheckoutSummaryResponse struct {
	Items   []domain.CartItem      `json:"items"`
	Summary domain.CheckoutSummary `json:"summary"`
}

// Summary handles GET /api/v1/checkout/summary
func (h *CheckoutHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	settings, err := h.settings.GetSettings(r.Context())
	if err != nil {
		httputil.WriteError(w, r, apperrors.ServiceUnavailable("checkout settings are unavailable", err), h.logger)
		return
	}

	cart := sess.Cart.Snapshot()
	items := cart.Items
	if items == nil {
		items = []domain.CartItem{}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: CheckoutSummaryResponse{
		Items:   items,
		Summary: domain.Summarize(cart, *settings),
	}})
}
