package product

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/minishop/internal/domain/money"
)

// Encode writes the product as JSON.
func (p Product) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { money.Encode(e, p.Price) })
		e.Field("image", func(e *jx.Encoder) { e.Str(p.Image) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
	})
}

// Decode reads a product written by Encode.
func (p *Product) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Int64()
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = money.Decode(d)
		case "image":
			p.Image, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

// ParseList decodes a JSON array of products. Ids must be unique and
// prices non-negative.
func ParseList(data []byte) ([]Product, error) {
	var (
		products []Product
		seen     = make(map[int64]struct{})
	)
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var p Product
		if err := p.Decode(d); err != nil {
			return errors.Wrapf(err, "product %d", len(products))
		}
		if _, ok := seen[p.ID]; ok {
			return errors.Errorf("duplicate product id %d", p.ID)
		}
		if p.Price.IsNegative() {
			return errors.Errorf("product %d has negative price", p.ID)
		}
		seen[p.ID] = struct{}{}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parse products")
	}
	return products, nil
}
