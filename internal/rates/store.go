package rates

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrStoreUnavailable indicates the override store dependency is not configured.
var ErrStoreUnavailable = errors.New("rates: store unavailable")

// ErrNotFound indicates no override exists for the requested pair.
var ErrNotFound = errors.New("rates: override not found")

// Override is a stored per-product, per-country rate.
type Override struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Country     string          `json:"country"`
	Rate        decimal.Decimal `json:"rate"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Store provides database accessors for tax rate overrides.
type Store interface {
	GetRate(ctx context.Context, productID int64, country string) (decimal.Decimal, error)
	GetProductRates(ctx context.Context, productID int64) (map[string]decimal.Decimal, error)
	UpsertRate(ctx context.Context, productID int64, country string, rate decimal.Decimal) error
	DeleteRate(ctx context.Context, productID int64, country string) error
	DeleteProductRates(ctx context.Context, productID int64) error
	DeleteAllRates(ctx context.Context) error
	ListOverrides(ctx context.Context, limit, offset int) ([]Override, int64, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

// GetRate fetches the override for one product/country pair. Returns
// ErrNotFound when no row exists.
func (s *pgStore) GetRate(ctx context.Context, productID int64, country string) (decimal.Decimal, error) {
	if s == nil || s.pool == nil {
		return decimal.Zero, ErrStoreUnavailable
	}
	var rate decimal.Decimal
	err := s.pool.QueryRow(ctx, `SELECT rate FROM tax_rate_overrides WHERE product_id = $1 AND country = $2`,
		productID, normalizeCountry(country)).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, err
	}
	return rate, nil
}

// GetProductRates fetches all overrides for one product keyed by country.
func (s *pgStore) GetProductRates(ctx context.Context, productID int64) (map[string]decimal.Decimal, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT country, rate FROM tax_rate_overrides WHERE product_id = $1 ORDER BY country`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]decimal.Decimal)
	for rows.Next() {
		var (
			country string
			rate    decimal.Decimal
		)
		if err := rows.Scan(&country, &rate); err != nil {
			return nil, err
		}
		result[country] = rate
	}
	return result, rows.Err()
}

// UpsertRate inserts or replaces the override for a product/country pair.
func (s *pgStore) UpsertRate(ctx context.Context, productID int64, country string, rate decimal.Decimal) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO tax_rate_overrides (product_id, country, rate)
VALUES ($1, $2, $3)
ON CONFLICT (product_id, country) DO UPDATE SET rate = EXCLUDED.rate, updated_at = now()`,
		productID, normalizeCountry(country), rate)
	return err
}

// DeleteRate removes a single pair. Returns ErrNotFound when nothing matched.
func (s *pgStore) DeleteRate(ctx context.Context, productID int64, country string) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM tax_rate_overrides WHERE product_id = $1 AND country = $2`,
		productID, normalizeCountry(country))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProductRates removes all overrides belonging to one product.
func (s *pgStore) DeleteProductRates(ctx context.Context, productID int64) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM tax_rate_overrides WHERE product_id = $1`, productID)
	return err
}

// DeleteAllRates wipes the override table.
func (s *pgStore) DeleteAllRates(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM tax_rate_overrides`)
	return err
}

// ListOverrides returns overrides joined with product names, paginated, plus
// the total row count.
func (s *pgStore) ListOverrides(ctx context.Context, limit, offset int) ([]Override, int64, error) {
	if s == nil || s.pool == nil {
		return nil, 0, ErrStoreUnavailable
	}
	limit = clampPositive(limit, 1, 500)
	if offset < 0 {
		offset = 0
	}
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tax_rate_overrides`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `SELECT o.product_id, COALESCE(p.name, ''), o.country, o.rate, o.updated_at
FROM tax_rate_overrides o
LEFT JOIN products p ON p.id = o.product_id
ORDER BY o.product_id, o.country
LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	overrides := make([]Override, 0, limit)
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.ProductID, &o.ProductName, &o.Country, &o.Rate, &o.UpdatedAt); err != nil {
			return nil, 0, err
		}
		overrides = append(overrides, o)
	}
	return overrides, total, rows.Err()
}

func normalizeCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}

func clampPositive(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
