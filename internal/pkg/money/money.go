// Package money parses the loosely typed amounts gateways send.
package money

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Parse converts a JSON number, numeric string or integer into a decimal.
// ok is false for nil, empty or non-numeric input.
func Parse(v interface{}) (decimal.Decimal, bool) {
	if v == nil {
		return decimal.Zero, false
	}
	if n, ok := v.(json.Number); ok {
		v = n.String()
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return decimal.Zero, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParsePtr is Parse returning nil when the value is absent or invalid.
func ParsePtr(v interface{}) *decimal.Decimal {
	d, ok := Parse(v)
	if !ok {
		return nil
	}
	return &d
}
