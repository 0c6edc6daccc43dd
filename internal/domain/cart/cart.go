// Package cart implements the shopping cart ledger: the products a shopper
// has selected, one line per product, in insertion order.
package cart

import (
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xenking/minishop/internal/domain/product"
)

// Line pairs a product, as it looked when it was added, with a quantity.
// Quantity is always at least 1.
type Line struct {
	Product  product.Product
	Quantity int
}

// Subtotal returns unit price multiplied by quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Ledger holds the cart lines of the current session.
//
// Every operation builds a new line slice and swaps it in under the lock, so
// readers holding a slice from Lines never observe a partial update.
type Ledger struct {
	mu    sync.RWMutex
	lines []Line
}

// NewLedger returns an empty cart.
func NewLedger() *Ledger {
	return &Ledger{}
}

// AddItem increments the quantity of the line for p, or appends a new line
// with quantity 1.
func (l *Ledger) AddItem(p product.Product) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := slices.Clone(l.lines)
	if i := l.index(p.ID); i >= 0 {
		next[i].Quantity++
	} else {
		next = append(next, Line{Product: p, Quantity: 1})
	}
	l.lines = next
}

// RemoveItem deletes the line for the given product id. Removing a product
// that is not in the cart is a no-op.
func (l *Ledger) RemoveItem(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.remove(id)
}

// UpdateQuantity sets the quantity of the line for id. A quantity of zero or
// less removes the line. Updating a product that is not in the cart is a
// no-op: the line is not created.
func (l *Ledger) UpdateQuantity(id int64, quantity int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if quantity <= 0 {
		l.remove(id)
		return
	}

	i := l.index(id)
	if i < 0 {
		return
	}
	next := slices.Clone(l.lines)
	next[i].Quantity = quantity
	l.lines = next
}

// Clear empties the cart.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines = nil
}

// Take empties the cart and returns the lines it held. Concurrent callers
// never receive the same lines.
func (l *Ledger) Take() []Line {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines := l.lines
	l.lines = nil
	return lines
}

// PutBack returns lines obtained from Take to the cart. They go ahead of
// lines added since, and quantities of the same product are merged.
func (l *Ledger) PutBack(lines []Line) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := slices.Clone(lines)
	for _, line := range l.lines {
		i := slices.IndexFunc(next, func(n Line) bool {
			return n.Product.ID == line.Product.ID
		})
		if i >= 0 {
			next[i].Quantity += line.Quantity
			continue
		}
		next = append(next, line)
	}
	l.lines = next
}

// Total returns the sum of price times quantity over all lines.
func (l *Ledger) Total() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return Total(l.lines)
}

// Total sums the subtotals of lines. It lets callers price a slice obtained
// from Lines without a second read of the ledger.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Lines returns a copy of the cart lines in insertion order.
func (l *Ledger) Lines() []Line {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return slices.Clone(l.lines)
}

// Line returns the line for the given product id.
func (l *Ledger) Line(id int64) (Line, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if i := l.index(id); i >= 0 {
		return l.lines[i], true
	}
	return Line{}, false
}

// Count returns the total number of units across all lines.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return Count(l.lines)
}

// Count sums the quantities of lines.
func Count(lines []Line) int {
	var n int
	for _, line := range lines {
		n += line.Quantity
	}
	return n
}

// Len returns the number of distinct products in the cart.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.lines)
}

func (l *Ledger) remove(id int64) {
	if l.index(id) < 0 {
		return
	}
	l.lines = slices.DeleteFunc(slices.Clone(l.lines), func(line Line) bool {
		return line.Product.ID == id
	})
}

func (l *Ledger) index(id int64) int {
	return slices.IndexFunc(l.lines, func(line Line) bool {
		return line.Product.ID == id
	})
}
