package domain

import "time"

// Order is a placed order as listed in the customer account.
type Order struct {
	ID          int64       `json:"id"`
	OrderNumber string      `json:"order_number"`
	Status      string      `json:"status"`
	Subtotal    Money       `json:"subtotal"`
	Tax         Money       `json:"tax"`
	Shipping    Money       `json:"shipping"`
	Total       Money       `json:"total"`
	Items       []OrderItem `json:"items,omitempty"`
	CreatedAt   *time.Time  `json:"created_at,omitempty"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       Money  `json:"price"`
}
