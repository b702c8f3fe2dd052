package platformtax

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrStoreUnavailable indicates the platform rate store dependency is not configured.
var ErrStoreUnavailable = errors.New("platformtax: store unavailable")

// Store serves the platform's standard per-country rates. These are the
// fallback when no product override applies; a country without a configured
// rate is taxed at zero.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// DefaultRate returns the standard rate for a country, or zero when none is
// configured.
func (s *Store) DefaultRate(ctx context.Context, country string) (decimal.Decimal, error) {
	if s == nil || s.pool == nil {
		return decimal.Zero, ErrStoreUnavailable
	}
	var rate decimal.Decimal
	err := s.pool.QueryRow(ctx, `SELECT rate FROM platform_tax_rates WHERE country = $1`,
		strings.ToUpper(strings.TrimSpace(country))).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return rate, nil
}

// SetRate inserts or replaces the standard rate for a country.
func (s *Store) SetRate(ctx context.Context, country string, rate decimal.Decimal) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO platform_tax_rates (country, rate)
VALUES ($1, $2)
ON CONFLICT (country) DO UPDATE SET rate = EXCLUDED.rate, updated_at = now()`,
		strings.ToUpper(strings.TrimSpace(country)), rate)
	return err
}

// ListRates returns every configured country rate.
func (s *Store) ListRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT country, rate FROM platform_tax_rates ORDER BY country`)
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
