package domain

// Product is a catalog entry as served by the backend API.
type Product struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description,omitempty"`
	SKU         string   `json:"sku"`
	Price       Money    `json:"price"`
	SalePrice   *Money   `json:"sale_price,omitempty"`
	Stock       int      `json:"stock"`
	Image       string   `json:"image,omitempty"`
	Images      []string `json:"images,omitempty"`
	CategoryID  *int64   `json:"category_id,omitempty"`
	BrandID     *int64   `json:"brand_id,omitempty"`
	IsActive    bool     `json:"is_active"`
}

// EffectivePrice returns the sale price when one is set and lower.
func (p *Product) EffectivePrice() Money {
	if p.SalePrice != nil && *p.SalePrice < p.Price {
		return *p.SalePrice
	}
	return p.Price
}

// Category groups products.
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Image string `json:"image,omitempty"`
}

// Brand is a product manufacturer.
type Brand struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Logo string `json:"logo,omitempty"`
}
