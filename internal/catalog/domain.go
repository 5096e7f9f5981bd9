// Package catalog reads menu items owned by the menu administration surface.
package catalog

import (
	"context"

	"github.com/google/uuid"
)

// MenuItem is the catalog view used when an order line is added.
type MenuItem struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Price    float64   `json:"price"`
	Station  string    `json:"station"`
	TaxRate  *float64  `json:"tax_rate,omitempty"`
	IsActive bool      `json:"is_active"`
}

// Repository loads menu items from storage.
type Repository interface {
	GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error)
	ListMenuItems(ctx context.Context, activeOnly bool) ([]MenuItem, error)
}
