// Package cart holds the pre-checkout basket of a single customer session.
package cart

import (
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Size is the selected size variant of a line. Its price replaces the base price.
type Size struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Item is what the customer adds to the cart.
type Item struct {
	ProductID      string          `json:"productId"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int             `json:"quantity"`
	Size           *Size           `json:"size,omitempty"`
	Extras         []string        `json:"extras,omitempty"`
	ExtraSurcharge decimal.Decimal `json:"extraSurcharge"`
}

// Line is an item in the cart, identified by product, size and extras.
type Line struct {
	ID string `json:"lineId"`
	Item
}

// UnitPrice is the size price (or base price) plus one surcharge per extra.
func (l Line) UnitPrice() decimal.Decimal {
	price := l.Price
	if l.Size != nil {
		price = l.Size.Price
	}
	return price.Add(l.ExtraSurcharge.Mul(decimal.NewFromInt(int64(len(l.Extras)))))
}

// Total is unit price multiplied by quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Totals are derived from the lines on every read.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Cart is an in-memory basket. The zero value is not usable, use New.
type Cart struct {
	mu      sync.Mutex
	lines   []*Line
	taxRate decimal.Decimal
}

// New creates an empty cart that applies taxRate to its subtotal.
func New(taxRate decimal.Decimal) *Cart {
	return &Cart{taxRate: taxRate}
}

// LineID derives the identity of a line. Extras are order-insensitive.
func LineID(productID string, size *Size, extras []string) string {
	sorted := normaliseExtras(extras)

	sizeName := ""
	if size != nil {
		sizeName = size.Name
	}
	return productID + "|" + sizeName + "|" + strings.Join(sorted, ",")
}

// AddItem merges item into a matching line or appends a new one.
// A quantity below one is treated as one.
func (c *Cart) AddItem(item Item) Line {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item.Quantity < 1 {
		item.Quantity = 1
	}
	item.Extras = normaliseExtras(item.Extras)

	id := LineID(item.ProductID, item.Size, item.Extras)
	for _, l := range c.lines {
		if l.ID == id {
			l.Quantity += item.Quantity
			return *l
		}
	}

	line := &Line{ID: id, Item: item}
	c.lines = append(c.lines, line)
	return *line
}

// UpdateQuantity sets the quantity of a line. It returns false and leaves the
// cart unchanged when quantity is not positive or the line does not exist.
func (c *Cart) UpdateQuantity(lineID string, quantity int) bool {
	if quantity <= 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range c.lines {
		if l.ID == lineID {
			l.Quantity = quantity
			return true
		}
	}
	return false
}

// RemoveItem deletes a line. Unknown ids are ignored.
func (c *Cart) RemoveItem(lineID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, l := range c.lines {
		if l.ID == lineID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Line, len(c.lines))
	for i, l := range c.lines {
		out[i] = *l
		out[i].Extras = append([]string(nil), l.Extras...)
	}
	return out
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c.Len() == 0
}

// TaxRate returns the rate applied by Tax.
func (c *Cart) TaxRate() decimal.Decimal {
	return c.taxRate
}

// Subtotal sums unit price times quantity over all lines.
func (c *Cart) Subtotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Tax applies the cart's tax rate to the subtotal.
func (c *Cart) Tax() decimal.Decimal {
	return c.Subtotal().Mul(c.taxRate)
}

// Total is subtotal plus tax.
func (c *Cart) Total() decimal.Decimal {
	return c.Totals().Total
}

// Totals computes subtotal, tax and total from a single read of the lines.
func (c *Cart) Totals() Totals {
	subtotal := c.Subtotal()
	tax := subtotal.Mul(c.taxRate)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

func normaliseExtras(extras []string) []string {
	if len(extras) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(extras))
	out := make([]string, 0, len(extras))
	for _, e := range extras {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
