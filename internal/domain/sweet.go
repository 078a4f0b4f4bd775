package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sweet represents a purchasable item in the catalog
type Sweet struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Category  string    `json:"category" db:"category"`
	Price     float64   `json:"price" db:"price"`
	Quantity  *int      `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"-" db:"created_at"`
	UpdatedAt time.Time `json:"-" db:"updated_at"`
}

// Stock returns the units available for purchase. A missing quantity counts as zero.
func (s *Sweet) Stock() int {
	if s.Quantity == nil {
		return 0
	}
	return *s.Quantity
}

// SetStock replaces the quantity with n.
func (s *Sweet) SetStock(n int) {
	s.Quantity = &n
}

// NameContains reports whether the name contains fragment, ignoring case.
func (s *Sweet) NameContains(fragment string) bool {
	if s.Name == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s.Name), strings.ToLower(fragment))
}

// InCategory reports whether the category equals category, ignoring case.
func (s *Sweet) InCategory(category string) bool {
	if s.Category == "" {
		return false
	}
	return strings.EqualFold(s.Category, category)
}

// IntPtr is a convenience for building optional quantities.
func IntPtr(n int) *int {
	return &n
}
