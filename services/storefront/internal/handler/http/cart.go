package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/pkg/httputil"
	"github.com/utafrali/EcommerceGo/pkg/validator"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/domain"
)

// CartHandler handles HTTP requests for the session cart.
type CartHandler struct {
	logger *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(logger *slog.Logger) *CartHandler {
	return &CartHandler{logger: logger}
}

// AddItemRequest is the JSON body for adding an item to the cart. Price is
// a decimal in major units.
type AddItemRequest struct {
	ProductID    int64        `json:"product_id" validate:"required,gt=0"`
	ProductName  string       `json:"product_name" validate:"required,max=500"`
	ProductImage *string      `json:"product_image"`
	Price        domain.Money `json:"price" validate:"gte=0"`
	Quantity     int          `json:"quantity" validate:"required,gt=0"`
	SKU          string       `json:"sku" validate:"max=100"`
}

// UpdateQuantityRequest is the JSON body for updating an item's quantity.
// Zero or negative quantities remove the line.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// CartResponse is the wire view of the cart with its derived totals.
type CartResponse struct {
	Items     []domain.CartItem `json:"items"`
	Total     domain.Money      `json:"total"`
	ItemCount int               `json:"item_count"`
}

func newCartResponse(c domain.Cart) CartResponse {
	items := c.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	return CartResponse{
		Items:     items,
		Total:     c.TotalAmount(),
		ItemCount: c.ItemCount(),
	}
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newCartResponse(sess.Cart.Snapshot())})
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	item := domain.CartItem{
		ProductID:    req.ProductID,
		ProductName:  req.ProductName,
		ProductImage: req.ProductImage,
		Price:        req.Price,
		Quantity:     req.Quantity,
		SKU:          req.SKU,
	}
	if err := sess.Cart.AddItem(r.Context(), item); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newCartResponse(sess.Cart.Snapshot())})
}

// UpdateQuantity handles PUT /api/v1/cart/items/{productId}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := sess.Cart.UpdateQuantity(r.Context(), productID, *req.Quantity); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newCartResponse(sess.Cart.Snapshot())})
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	if err := sess.Cart.RemoveItem(r.Context(), productID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newCartResponse(sess.Cart.Snapshot())})
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	if err := sess.Cart.ClearCart(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newCartResponse(sess.Cart.Snapshot())})
}

func (h *CartHandler) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteError(w, r, apperrors.InvalidInput("product id must be a positive integer"), h.logger)
		return 0, false
	}
	return id, true
}
