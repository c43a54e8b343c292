package client

import (
	"context"
	"strconv"

	"github.com/utafrali/EcommerceGo/pkg/pagination"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/domain"
)

// OrderClient reads the orders of the authenticated customer.
type OrderClient struct {
	base
}

// NewOrderClient creates an order client for the API at baseURL.
func NewOrderClient(doer HTTPDoer, baseURL string) *OrderClient {
	return &OrderClient{base: newBase(doer, baseURL, "order")}
}

// ListOrders returns one page of the token holder's orders.
func (c *OrderClient) ListOrders(ctx context.Context, token string, params pagination.Params) (*Page[domain.Order], error) {
	var resp listEnvelope[domain.Order]
	if err := c.get(ctx, "/orders", params.Query(), token, &resp); err != nil {
		return nil, err
	}
	return &Page[domain.Order]{Items: resp.Data, Meta: resp.Meta}, nil
}

// GetOrder returns a single order of the token holder.
func (c *OrderClient) GetOrder(ctx context.Context, token string, id int64) (*domain.Order, error) {
	var resp envelope[domain.Order]
	if err := c.get(ctx, "/orders/"+strconv.FormatInt(id, 10), nil, token, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
