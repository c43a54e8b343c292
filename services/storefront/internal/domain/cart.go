package domain

// CartItem represents a single product line in a browser cart.
type CartItem struct {
	ProductID    int64   `json:"product_id"`
	ProductName  string  `json:"product_name"`
	ProductImage *string `json:"product_image,omitempty"`
	Price        Money   `json:"price"`
	Quantity     int     `json:"quantity"`
	SKU          string  `json:"sku"`
}

// Cart is an ordered list of items with at most one entry per product.
type Cart struct {
	Items []CartItem `json:"items"`
}

// TotalAmount calculates the total price of all items in the cart.
func (c *Cart) TotalAmount() Money {
	var total Money
	for _, item := range c.Items {
		total += item.Price.Times(item.Quantity)
	}
	return total
}

// ItemCount returns the total number of units in the cart.
func (c *Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// FindItemIndex returns the index of the item for productID, or -1.
func (c *Cart) FindItemIndex(productID int64) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy safe to hand to callers.
func (c *Cart) Clone() Cart {
	items := make([]CartItem, len(c.Items))
	for i, item := range c.Items {
		if item.ProductImage != nil {
			img := *item.ProductImage
			item.ProductImage = &img
		}
		items[i] = item
	}
	return Cart{Items: items}
}

// Normalize drops rows with a non-positive quantity and merges duplicate
// product ids into the first occurrence, preserving insertion order. It is
// applied to carts read back from storage written by older clients.
func (c *Cart) Normalize() {
	out := make([]CartItem, 0, len(c.Items))
	seen := make(map[int64]int, len(c.Items))
	for _, item := range c.Items {
		if item.Quantity <= 0 {
			continue
		}
		if idx, ok := seen[item.ProductID]; ok {
			out[idx].Quantity += item.Quantity
			continue
		}
		seen[item.ProductID] = len(out)
		out = append(out, item)
	}
	c.Items = out
}
