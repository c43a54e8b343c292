package client

import (
	"context"
	"net/url"

	"github.com/utafrali/EcommerceGo/pkg/pagination"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/domain"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/relay"
)

// ProductQuery filters a product listing.
type ProductQuery struct {
	pagination.Params
	Category string
	Brand    string
	Search   string
	Sort     string
}

func (q ProductQuery) values() url.Values {
	v := q.Params.Query()
	for key, val := range map[string]string{
		"category": q.Category,
		"brand":    q.Brand,
		"search":   q.Search,
		"sort":     q.Sort,
	} {
		if val != "" {
			v.Set(key, val)
		}
	}
	return v
}

// CatalogClient reads products, categories and brands. Image references in
// the results are rewritten to go through the image relay.
type CatalogClient struct {
	base
	imagePrefix string
}

// NewCatalogClient creates a catalog client. imagePrefix is the path the
// image relay is mounted under.
func NewCatalogClient(doer HTTPDoer, baseURL, imagePrefix string) *CatalogClient {
	return &CatalogClient{base: newBase(doer, baseURL, "catalog"), imagePrefix: imagePrefix}
}

// ListProducts returns one page of products.
func (c *CatalogClient) ListProducts(ctx context.Context, q ProductQuery) (*Page[domain.Product], error) {
	var resp listEnvelope[domain.Product]
	if err := c.get(ctx, "/products", q.values(), "", &resp); err != nil {
		return nil, err
	}
	for i := range resp.Data {
		c.rewriteProduct(&resp.Data[i])
	}
	return &Page[domain.Product]{Items: resp.Data, Meta: resp.Meta}, nil
}

// GetProduct returns a product by slug or id.
func (c *CatalogClient) GetProduct(ctx context.Context, slug string) (*domain.Product, error) {
	var resp envelope[domain.Product]
	if err := c.get(ctx, "/products/"+url.PathEscape(slug), nil, "", &resp); err != nil {
		return nil, err
	}
	c.rewriteProduct(&resp.Data)
	return &resp.Data, nil
}

// ListCategories returns all categories.
func (c *CatalogClient) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var resp envelope[[]domain.Category]
	if err := c.get(ctx, "/categories", nil, "", &resp); err != nil {
		return nil, err
	}
	for i := range resp.Data {
		resp.Data[i].Image = relay.RewriteURL(c.imagePrefix, resp.Data[i].Image)
	}
	return resp.Data, nil
}

// ListBrands returns all brands.
func (c *CatalogClient) ListBrands(ctx context.Context) ([]domain.Brand, error) {
	var resp envelope[[]domain.Brand]
	if err := c.get(ctx, "/brands", nil, "", &resp); err != nil {
		return nil, err
	}
	for i := range resp.Data {
		resp.Data[i].Logo = relay.RewriteURL(c.imagePrefix, resp.Data[i].Logo)
	}
	return resp.Data, nil
}

func (c *CatalogClient) rewriteProduct(p *domain.Product) {
	p.Image = relay.RewriteURL(c.imagePrefix, p.Image)
	for i := range p.Images {
		p.Images[i] = relay.RewriteURL(c.imagePrefix, p.Images[i])
	}
}
