package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/pkg/httputil"
	"github.com/utafrali/EcommerceGo/pkg/pagination"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/client"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/domain"
)

// CatalogService reads the public product catalog.
type CatalogService interface {
	ListProducts(ctx context.Context, q client.ProductQuery) (*client.Page[domain.Product], error)
	GetProduct(ctx context.Context, slug string) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListBrands(ctx context.Context) ([]domain.Brand, error)
}

// CatalogHandler serves catalog pages. Backend failures degrade to empty
// results flagged with "empty" instead of failing the page.
type CatalogHandler struct {
	catalog CatalogService
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(catalog CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// ProductListResponse is a page of products.
type ProductListResponse struct {
	pagination.Result[domain.Product]
	Empty bool `json:"empty"`
}

// ProductResponse wraps a single product.
type ProductResponse struct {
	Product *domain.Product `json:"product"`
	Empty   bool            `json:"empty"`
}

// ItemsResponse wraps an unpaginated collection.
type ItemsResponse[T any] struct {
	Items []T  `json:"items"`
	Empty bool `json:"empty"`
}

func newItemsResponse[T any](items []T, degraded bool) ItemsResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ItemsResponse[T]{Items: items, Empty: degraded}
}

// ListProducts handles GET /api/v1/catalog/products
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	query := r.URL.Query()
	q := client.ProductQuery{
		Params:   params,
		Category: query.Get("category"),
		Brand:    query.Get("brand"),
		Search:   query.Get("search"),
		Sort:     query.Get("sort"),
	}

	page, err := h.catalog.ListProducts(r.Context(), q)
	if err != nil {
		h.degraded(r, "list products", err)
		noStore(w)
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ProductListResponse{
			Result: pagination.NewResult([]domain.Product{}, 0, params),
			Empty:  true,
		}})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ProductListResponse{Result: page.Result()}})
}

// GetProduct handles GET /api/v1/catalog/products/{slug}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	product, err := h.catalog.GetProduct(r.Context(), slug)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		h.degraded(r, "get product", err)
		noStore(w)
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ProductResponse{Empty: true}})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ProductResponse{Product: product}})
}

// ListCategories handles GET /api/v1/catalog/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		h.degraded(r, "list categories", err)
		noStore(w)
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newItemsResponse(categories, err != nil)})
}

// ListBrands handles GET /api/v1/catalog/brands
func (h *CatalogHandler) ListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.catalog.ListBrands(r.Context())
	if err != nil {
		h.degraded(r, "list brands", err)
		noStore(w)
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newItemsResponse(brands, err != nil)})
}

func (h *CatalogHandler) degraded(r *http.Request, op string, err error) {
	h.logger.WarnContext(r.Context(), "catalog read failed, serving empty result",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}
