package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Order is an immutable record of a purchase.
type Order struct {
	ID        string
	CreatedAt time.Time
	Status    Status
	Total     decimal.Decimal
	Items     []OrderItem
}

// OrderItem is a frozen copy of a cart line at checkout time, independent of
// later catalog changes.
type OrderItem struct {
	ProductID int64
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

// OrderInput is what a caller supplies to AddOrder; the ledger assigns the
// id and creation time.
type OrderInput struct {
	Items  []OrderItem
	Total  decimal.Decimal
	Status Status
}
