// Package money encodes decimal amounts as exact JSON numbers.
package money

import (
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Encode writes v as a JSON number without going through float64.
func Encode(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

// Decode reads a JSON number, or a string holding one, exactly.
func Decode(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}
