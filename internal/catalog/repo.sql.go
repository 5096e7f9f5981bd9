package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oomaallah/hotelops/internal/shared"
)

// PGRepository reads menu_items with pgx.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const menuColumns = `id, name, category, price, station, tax_rate, is_active`

// GetMenuItem returns one menu item.
func (r *PGRepository) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id=$1`, id)
	item, err := scanMenuItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return MenuItem{}, fmt.Errorf("%w: menu item %s", shared.ErrNotFound, id)
	}
	return item, err
}

// ListMenuItems lists the menu ordered by category and name.
func (r *PGRepository) ListMenuItems(ctx context.Context, activeOnly bool) ([]MenuItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+menuColumns+` FROM menu_items
WHERE ($1::boolean = FALSE OR is_active) ORDER BY category, name`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanMenuItem(row pgx.Row) (MenuItem, error) {
	var item MenuItem
	err := row.Scan(&item.ID, &item.Name, &item.Category, &item.Price, &item.Station, &item.TaxRate, &item.IsActive)
	return item, err
}
