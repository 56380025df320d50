package entities

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// CoerceKilograms converts an untrusted weight value to kilograms.
// Missing, empty, non-numeric and negative values become zero so that a bad
// weight can neither block nor bypass a capacity check.
func CoerceKilograms(v any) decimal.Decimal {
	var d decimal.Decimal
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		d = x
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero
		}
		d = *x
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	case float32:
		return CoerceKilograms(float64(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero
		}
		d = decimal.NewFromFloat(x)
	case json.Number:
		return CoerceKilograms(string(x))
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	default:
		return decimal.Zero
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Kilograms is a weight decoded from untrusted JSON. It accepts numbers,
// numeric strings and null; anything else decodes to zero instead of failing
// the whole payload.
type Kilograms struct {
	decimal.Decimal
}

// NewKilograms wraps an already trusted decimal value
func NewKilograms(d decimal.Decimal) Kilograms {
	return Kilograms{Decimal: CoerceKilograms(d)}
}

// UnmarshalJSON implements json.Unmarshaler
func (k *Kilograms) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		k.Decimal = decimal.Zero
		return nil
	}
	k.Decimal = CoerceKilograms(raw)
	return nil
}

// MarshalJSON writes the weight as a bare JSON number
func (k Kilograms) MarshalJSON() ([]byte, error) {
	return []byte(k.Decimal.String()), nil
}
