package domain

import "math"

// Settings are the store-wide commercial settings exposed by the backend.
type Settings struct {
	TaxRate               float64 `json:"tax_rate"`
	ShippingCost          Money   `json:"shipping_cost"`
	FreeShippingThreshold Money   `json:"free_shipping_threshold"`
	Currency              string  `json:"currency"`
}

// CheckoutSummary is the price breakdown shown before placing an order.
type CheckoutSummary struct {
	Subtotal  Money  `json:"subtotal"`
	Tax       Money  `json:"tax"`
	Shipping  Money  `json:"shipping"`
	Total     Money  `json:"total"`
	ItemCount int    `json:"item_count"`
	Currency  string `json:"currency"`
}

// Summarize computes the checkout breakdown for cart under settings. Tax is
// a percentage of the subtotal rounded half away from zero. Shipping is free
// when the threshold is positive and reached; an empty cart ships free.
func Summarize(cart Cart, s Settings) CheckoutSummary {
	subtotal := cart.TotalAmount()
	tax := Money(math.Round(float64(subtotal) * s.TaxRate / 100))

	shipping := s.ShippingCost
	switch {
	case len(cart.Items) == 0:
		shipping = 0
	case s.FreeShippingThreshold > 0 && subtotal >= s.FreeShippingThreshold:
		shipping = 0
	}

	return CheckoutSummary{
		Subtotal:  subtotal,
		Tax:       tax,
		Shipping:  shipping,
		Total:     subtotal + tax + shipping,
		ItemCount: cart.ItemCount(),
		Currency:  s.Currency,
	}
}
