package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sweet-shop/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrSweetNotFound     = errors.New("sweet not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValueOutOfRange   = errors.New("value out of range")
)

// SweetRepository defines the interface for sweet data access
type SweetRepository interface {
	Create(ctx context.Context, sweet *domain.Sweet) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Sweet, error)
	List(ctx context.Context) ([]*domain.Sweet, error)
	FindByNameContaining(ctx context.Context, fragment string) ([]*domain.Sweet, error)
	FindByCategory(ctx context.Context, category string) ([]*domain.Sweet, error)
	FindByPriceBetween(ctx context.Context, minPrice, maxPrice float64) ([]*domain.Sweet, error)
	Update(ctx context.Context, sweet *domain.Sweet) error
	Delete(ctx context.Context, id uuid.UUID) error
	AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (*domain.Sweet, error)
}

const sweetColumns = `id, name, category, price, quantity, created_at, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type sweetRepository struct {
	db *sql.DB
}

// NewSweetRepository creates a new instance of SweetRepository
func NewSweetRepository(db *sql.DB) SweetRepository {
	return &sweetRepository{db: db}
}

// Create assigns a fresh id, overwriting whatever the caller put there
func (r *sweetRepository) Create(ctx context.Context, sweet *domain.Sweet) error {
	query := `
		INSERT INTO sweets (id, name, category, price, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	now := time.Now().UTC()
	id := uuid.New()

	_, err := r.db.ExecContext(ctx, query,
		id,
		sweet.Name,
		sweet.Category,
		sweet.Price,
		nullableInt(sweet.Quantity),
		now,
		now,
	)
	if isOutOfRange(err) {
		return ErrValueOutOfRange
	}
	if err != nil {
		return fmt.Errorf("failed to create sweet: %w", err)
	}

	sweet.ID = id
	sweet.CreatedAt = now
	sweet.UpdatedAt = now
	return nil
}

// FindByID retrieves a sweet by ID
func (r *sweetRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sweet, error) {
	query := `SELECT ` + sweetColumns + ` FROM sweets WHERE id = $1`

	sweet, err := scanSweet(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSweetNotFound
		}
		return nil, fmt.Errorf("failed to find sweet by ID: %w", err)
	}
	return sweet, nil
}

// List returns every sweet in insertion order
func (r *sweetRepository) List(ctx context.Context) ([]*domain.Sweet, error) {
	return r.query(ctx, "list sweets", `SELECT `+sweetColumns+` FROM sweets ORDER BY created_at, id`)
}

// FindByNameContaining matches fragment anywhere in the name, ignoring case.
// LIKE wildcards in fragment are matched literally.
func (r *sweetRepository) FindByNameContaining(ctx context.Context, fragment string) ([]*domain.Sweet, error) {
	query := `
		SELECT ` + sweetColumns + `
		FROM sweets
		WHERE name ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY created_at, id
	`
	return r.query(ctx, "search sweets by name", query, likeEscaper.Replace(fragment))
}

// FindByCategory matches the category exactly, ignoring case
func (r *sweetRepository) FindByCategory(ctx context.Context, category string) ([]*domain.Sweet, error) {
	query := `
		SELECT ` + sweetColumns + `
		FROM sweets
		WHERE LOWER(category) = LOWER($1)
		ORDER BY created_at, id
	`
	return r.query(ctx, "search sweets by category", query, category)
}

// FindByPriceBetween returns sweets priced within [minPrice, maxPrice]
func (r *sweetRepository) FindByPriceBetween(ctx context.Context, minPrice, maxPrice float64) ([]*domain.Sweet, error) {
	query := `
		SELECT ` + sweetColumns + `
		FROM sweets
		WHERE price BETWEEN $1 AND $2
		ORDER BY created_at, id
	`
	return r.query(ctx, "search sweets by price", query, minPrice, maxPrice)
}

// Update overwrites every mutable field of an existing sweet
func (r *sweetRepository) Update(ctx context.Context, sweet *domain.Sweet) error {
	query := `
		UPDATE sweets
		SET name = $2, category = $3, price = $4, quantity = $5, updated_at = $6
		WHERE id = $1
	`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		sweet.ID,
		sweet.Name,
		sweet.Category,
		sweet.Price,
		nullableInt(sweet.Quantity),
		now,
	)
	if isOutOfRange(err) {
		return ErrValueOutOfRange
	}
	if err != nil {
		return fmt.Errorf("failed to update sweet: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrSweetNotFound
	}

	sweet.UpdatedAt = now
	return nil
}

// Delete removes a sweet permanently
func (r *sweetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sweets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sweet: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrSweetNotFound
	}

	return nil
}

// AdjustQuantity adds delta to the stock in one statement. A missing quantity
// counts as zero. The update only applies when the result stays non-negative,
// so concurrent purchases can never oversell.
func (r *sweetRepository) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (*domain.Sweet, error) {
	query := `
		UPDATE sweets
		SET quantity = COALESCE(quantity, 0) + $2, updated_at = NOW()
		WHERE id = $1 AND COALESCE(quantity, 0) + $2 >= 0
		RETURNING ` + sweetColumns

	sweet, err := scanSweet(r.db.QueryRowContext(ctx, query, id, delta))
	if err == nil {
		return sweet, nil
	}
	if isOutOfRange(err) {
		return nil, ErrValueOutOfRange
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to adjust sweet quantity: %w", err)
	}

	// Nothing matched: either the row is gone or the stock would go negative
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sweets WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check sweet existence: %w", err)
	}
	if !exists {
		return nil, ErrSweetNotFound
	}
	return nil, ErrInsufficientStock
}

func (r *sweetRepository) query(ctx context.Context, op, query string, args ...interface{}) ([]*domain.Sweet, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	sweets := []*domain.Sweet{}
	for rows.Next() {
		sweet, err := scanSweet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sweet: %w", err)
		}
		sweets = append(sweets, sweet)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sweets: %w", err)
	}

	return sweets, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSweet(row rowScanner) (*domain.Sweet, error) {
	sweet := &domain.Sweet{}
	var quantity sql.NullInt64

	err := row.Scan(
		&sweet.ID,
		&sweet.Name,
		&sweet.Category,
		&sweet.Price,
		&quantity,
		&sweet.CreatedAt,
		&sweet.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if quantity.Valid {
		sweet.SetStock(int(quantity.Int64))
	}
	return sweet, nil
}

func nullableInt(n *int) interface{} {
	if n == nil {
		return nil
	}
	return int64(*n)
}
