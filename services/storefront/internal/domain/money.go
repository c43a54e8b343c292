package domain

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// maxMoneyLen bounds the textual amount accepted from the wire.
const maxMoneyLen = 32

var hundred = big.NewInt(100)

// Money is an amount in minor currency units. On the JSON wire it is a
// decimal in major units: 19.99 decodes to 1999 and encodes back as 19.99.
// Quoted decimals ("19.99") are accepted as well.
type Money int64

// Times returns the amount multiplied by qty.
func (m Money) Times(qty int) Money {
	return m * Money(qty)
}

// String formats the amount in major units with two decimals.
func (m Money) String() string {
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON encodes the amount as a JSON number in major units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON decodes a JSON number or numeric string in major units.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	s := string(data)
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("decode amount %s: %w", s, err)
		}
		s = unquoted
	}

	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMoney converts a decimal amount in major units to Money, rounding
// to the nearest minor unit with halves away from zero.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxMoneyLen || strings.ContainsAny(s, "/_") {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	num := new(big.Int).Mul(r.Num(), hundred)
	den := r.Denom()
	q, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Abs(rem).Lsh(rem, 1).Cmp(den) >= 0 {
		if num.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}

	if !q.IsInt64() {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	return Money(q.Int64()), nil
}
