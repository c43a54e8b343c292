package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want Money
	}{
		{in: "10", want: 1000},
		{in: "10.99", want: 1099},
		{in: "19.99", want: 1999},
		{in: "0.1", want: 10},
		{in: "0", want: 0},
		{in: "1e2", want: 10000},
		{in: "0.005", want: 1},
		{in: "0.004", want: 0},
		{in: "-1.005", want: -101},
		{in: " 2.50 ", want: 250},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMoney_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "1/3", "NaN", "1_000", "12345678901234567890123456789012345", "1e30"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseMoney(in)
			assert.Error(t, err)
		})
	}
}

func TestMoney_JSON(t *testing.T) {
	var item CartItem
	require.NoError(t, json.Unmarshal([]byte(`{"product_id":1,"price":10.99,"quantity":2}`), &item))
	assert.Equal(t, Money(1099), item.Price)

	require.NoError(t, json.Unmarshal([]byte(`{"product_id":1,"price":"19.99","quantity":1}`), &item))
	assert.Equal(t, Money(1999), item.Price)

	raw, err := json.Marshal(CartItem{ProductID: 1, Price: 1099, Quantity: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"product_id":1,"product_name":"","price":10.99,"quantity":2,"sku":""}`, string(raw))
	assert.Contains(t, string(raw), `"price":10.99`)
}

func TestMoney_JSONNullAndInvalid(t *testing.T) {
	var p Product
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"price":null,"sale_price":null}`), &p))
	assert.Zero(t, p.Price)
	assert.Nil(t, p.SalePrice)

	assert.Error(t, json.Unmarshal([]byte(`{"price":"cheap"}`), &p))
	assert.Error(t, json.Unmarshal([]byte(`{"price":true}`), &p))
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "0.00", Money(0).String())
	assert.Equal(t, "35.00", Money(3500).String())
	assert.Equal(t, "0.05", Money(5).String())
	assert.Equal(t, "-12.34", Money(-1234).String())
}

func TestTotalAmount_DecimalPrices(t *testing.T) {
	var cart Cart
	require.NoError(t, json.Unmarshal([]byte(`{"items":[{"product_id":1,"price":10,"quantity":2},{"product_id":2,"price":5,"quantity":3}]}`), &cart))

	assert.Equal(t, Money(3500), cart.TotalAmount())
	assert.Equal(t, "35.00", cart.TotalAmount().String())
}
