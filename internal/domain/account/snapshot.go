package account

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/minishop/internal/domain/money"
)

// SnapshotVersion is the layout version written by MarshalSnapshot.
//
// Version 0 is the layout produced by the web client's storage middleware.
// It has the same shape as version 1 and decodes the same way.
const SnapshotVersion = 1

var (
	// ErrNoSnapshot is returned by a Store when nothing is saved under a key.
	ErrNoSnapshot = errors.New("snapshot not found")
	// ErrUnsupportedVersion is returned when a snapshot was written by a
	// newer layout than this build understands.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

// Store persists encoded snapshots by key.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// Snapshot is the persisted state of a Ledger.
type Snapshot struct {
	Version  int
	User     *Identity
	Orders   []Order
	LoggedIn bool
}

// MarshalSnapshot encodes s as
// {"state":{"user":...,"orders":[...],"isLoggedIn":...},"version":N}.
func MarshalSnapshot(s Snapshot) []byte {
	var e jx.Encoder
	s.Encode(&e)
	return e.Bytes()
}

// UnmarshalSnapshot decodes a snapshot written by MarshalSnapshot or by an
// older layout.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := s.Decode(jx.DecodeBytes(data)); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Encode writes the snapshot as JSON.
func (s Snapshot) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("state", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("user", func(e *jx.Encoder) {
					if s.User == nil {
						e.Null()
						return
					}
					s.User.Encode(e)
				})
				e.Field("orders", func(e *jx.Encoder) {
					e.Arr(func(e *jx.Encoder) {
						for _, o := range s.Orders {
							o.Encode(e)
						}
					})
				})
				e.Field("isLoggedIn", func(e *jx.Encoder) {
					e.Bool(s.LoggedIn)
				})
			})
		})
		e.Field("version", func(e *jx.Encoder) {
			e.Int(s.Version)
		})
	})
}

// Decode reads a snapshot. Unknown fields are skipped.
func (s *Snapshot) Decode(d *jx.Decoder) error {
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "state":
			return s.decodeState(d)
		case "version":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "version")
			}
			s.Version = v
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return errors.Wrap(err, "decode snapshot")
	}
	if s.Version < 0 || s.Version > SnapshotVersion {
		return errors.Wrapf(ErrUnsupportedVersion, "version %d", s.Version)
	}
	return nil
}

func (s *Snapshot) decodeState(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "user":
			if d.Next() == jx.Null {
				s.User = nil
				return d.Null()
			}
			var u Identity
			if err := u.Decode(d); err != nil {
				return errors.Wrap(err, "user")
			}
			s.User = &u
			return nil
		case "orders":
			s.Orders = s.Orders[:0]
			return d.Arr(func(d *jx.Decoder) error {
				var o Order
				if err := o.Decode(d); err != nil {
					return errors.Wrapf(err, "order %d", len(s.Orders))
				}
				s.Orders = append(s.Orders, o)
				return nil
			})
		case "isLoggedIn":
			v, err := d.Bool()
			if err != nil {
				return errors.Wrap(err, "isLoggedIn")
			}
			s.LoggedIn = v
			return nil
		default:
			return d.Skip()
		}
	})
}

// Encode writes the identity as {"id","name","email"}.
func (i Identity) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(i.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(i.Name) })
		e.Field("email", func(e *jx.Encoder) { e.Str(i.Email) })
	})
}

// Decode reads an identity. Any credential field present is ignored.
func (i *Identity) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			i.ID, err = d.Str()
		case "name":
			i.Name, err = d.Str()
		case "email":
			i.Email, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
}

// Encode writes the order in the persisted layout.
func (o Order) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("date", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339Nano)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range o.Items {
					item.Encode(e)
				}
			})
		})
		e.Field("total", func(e *jx.Encoder) { money.Encode(e, o.Total) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
	})
}

// Decode reads an order written by Encode.
func (o *Order) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			o.ID = v
			return err
		case "date":
			v, err := d.Str()
			if err != nil {
				return err
			}
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return errors.Wrap(err, "date")
			}
			o.CreatedAt = t
			return nil
		case "items":
			o.Items = o.Items[:0]
			return d.Arr(func(d *jx.Decoder) error {
				var item OrderItem
				if err := item.Decode(d); err != nil {
					return err
				}
				o.Items = append(o.Items, item)
				return nil
			})
		case "total":
			v, err := money.Decode(d)
			if err != nil {
				return errors.Wrap(err, "total")
			}
			o.Total = v
			return nil
		case "status":
			v, err := d.Str()
			if err != nil {
				return err
			}
			if !Status(v).Valid() {
				return errors.Errorf("unknown order status %q", v)
			}
			o.Status = Status(v)
			return nil
		default:
			return d.Skip()
		}
	})
}

// Encode writes the item as {"id","name","price","quantity"}.
func (i OrderItem) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(i.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(i.Name) })
		e.Field("price", func(e *jx.Encoder) { money.Encode(e, i.Price) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(i.Quantity) })
	})
}

// Decode reads an item written by Encode.
func (i *OrderItem) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			i.ProductID, err = d.Int64()
		case "name":
			i.Name, err = d.Str()
		case "price":
			i.Price, err = money.Decode(d)
		case "quantity":
			i.Quantity, err = d.Int()
		default:
			return d.Skip()
		}
		return err
	})
}
