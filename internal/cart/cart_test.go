package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taxRate = decimal.RequireFromString("0.18")

func burger(qty int, extras ...string) Item {
	return Item{
		ProductID: "burger",
		Name:      "Burger",
		Price:     decimal.NewFromInt(2000),
		Quantity:  qty,
		Extras:    extras,
	}
}

func TestCart_AddItem_MergesMatchingLines(t *testing.T) {
	c := New(taxRate)

	c.AddItem(burger(1, "cheese", "bacon"))
	c.AddItem(burger(2, "bacon", "cheese"))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, []string{"bacon", "cheese"}, lines[0].Extras)
}

func TestCart_AddItem_DistinctLines(t *testing.T) {
	tests := []struct {
		name  string
		first Item
		other Item
	}{
		{
			name:  "Different extras",
			first: burger(1, "cheese"),
			other: burger(1, "bacon"),
		},
		{
			name:  "Different size",
			first: burger(1),
			other: func() Item {
				i := burger(1)
				i.Size = &Size{Name: "XL", Price: decimal.NewFromInt(2500)}
				return i
			}(),
		},
		{
			name:  "Different product",
			first: burger(1),
			other: Item{ProductID: "fries", Name: "Fries", Price: decimal.NewFromInt(800), Quantity: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(taxRate)
			c.AddItem(tt.first)
			c.AddItem(tt.other)
			assert.Equal(t, 2, c.Len())
		})
	}
}

func TestCart_AddItem_MinimumQuantity(t *testing.T) {
	c := New(taxRate)
	line := c.AddItem(burger(0))
	assert.Equal(t, 1, line.Quantity)
}

func TestCart_UpdateQuantity(t *testing.T) {
	c := New(taxRate)
	line := c.AddItem(burger(2))

	tests := []struct {
		name     string
		quantity int
		ok       bool
		expected int
	}{
		{name: "Zero is rejected", quantity: 0, ok: false, expected: 2},
		{name: "Negative is rejected", quantity: -3, ok: false, expected: 2},
		{name: "Positive is applied", quantity: 5, ok: true, expected: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok := c.UpdateQuantity(line.ID, tt.quantity)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, c.Lines()[0].Quantity)
		})
	}

	assert.False(t, c.UpdateQuantity("missing", 3))
}

func TestCart_RemoveAndClear(t *testing.T) {
	c := New(taxRate)
	a := c.AddItem(burger(1))
	c.AddItem(burger(1, "cheese"))

	c.RemoveItem(a.ID)
	c.RemoveItem("missing")
	require.Equal(t, 1, c.Len())
	assert.Equal(t, []string{"cheese"}, c.Lines()[0].Extras)

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.True(t, c.Total().IsZero())
}

func TestCart_Totals(t *testing.T) {
	c := New(taxRate)

	xl := burger(2, "cheese")
	xl.Size = &Size{Name: "XL", Price: decimal.NewFromInt(2500)}
	xl.ExtraSurcharge = decimal.NewFromInt(250)
	c.AddItem(xl)
	c.AddItem(Item{ProductID: "bissap", Name: "Bissap", Price: decimal.NewFromInt(500), Quantity: 3})

	// (2500 + 250) * 2 + 500 * 3
	expectedSubtotal := decimal.NewFromInt(7000)
	totals := c.Totals()

	assert.True(t, expectedSubtotal.Equal(totals.Subtotal), "subtotal %s", totals.Subtotal)
	assert.True(t, decimal.NewFromInt(1260).Equal(totals.Tax), "tax %s", totals.Tax)
	assert.True(t, decimal.NewFromInt(8260).Equal(totals.Total), "total %s", totals.Total)
	assert.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.Tax)))
}

func TestCart_SubtotalMatchesLinesAfterEveryMutation(t *testing.T) {
	c := New(taxRate)

	check := func() {
		sum := decimal.Zero
		for _, l := range c.Lines() {
			sum = sum.Add(l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		assert.True(t, sum.Equal(c.Subtotal()))
		assert.True(t, c.Total().Equal(c.Subtotal().Add(c.Tax())))
	}

	a := c.AddItem(burger(1))
	check()
	c.AddItem(burger(2, "cheese"))
	check()
	c.UpdateQuantity(a.ID, 4)
	check()
	c.RemoveItem(a.ID)
	check()
	c.Clear()
	check()
}

func TestLineID_OrderInsensitiveExtras(t *testing.T) {
	assert.Equal(t,
		LineID("burger", nil, []string{"cheese", "bacon"}),
		LineID("burger", nil, []string{"bacon", "cheese"}),
	)
	assert.NotEqual(t,
		LineID("burger", nil, nil),
		LineID("burger", &Size{Name: "XL"}, nil),
	)
}
