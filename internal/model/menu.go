package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SizeOption is a size variant that overrides the base price.
type SizeOption struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// MenuItem represents a dish or drink on the menu.
type MenuItem struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Category    string          `json:"category" db:"category"`
	Image       string          `json:"image" db:"image"`
	Sizes       []SizeOption    `json:"sizes" db:"sizes"`
	Extras      []string        `json:"extras" db:"extras"`
	ExtraPrice  decimal.Decimal `json:"extraPrice" db:"extra_price"`
	Available   bool            `json:"available" db:"available"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// Size returns the size option matching id or name.
func (m *MenuItem) Size(key string) (SizeOption, bool) {
	for _, s := range m.Sizes {
		if s.ID == key || s.Name == key {
			return s, true
		}
	}
	return SizeOption{}, false
}

// HasExtra reports whether extra is offered for this item.
func (m *MenuItem) HasExtra(extra string) bool {
	for _, e := range m.Extras {
		if e == extra {
			return true
		}
	}
	return false
}
