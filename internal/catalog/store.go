package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrStoreUnavailable indicates the catalog store dependency is not configured.
var ErrStoreUnavailable = errors.New("catalog: store unavailable")

// ErrNotFound indicates the requested product does not exist.
var ErrNotFound = errors.New("catalog: product not found")

// Kind distinguishes standalone products from bundles.
type Kind string

const (
	KindSingle Kind = "single"
	KindBundle Kind = "bundle"
)

// Product is a sellable catalog entry. Bundles carry the ids of their members.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Kind        Kind            `json:"kind"`
	BundleItems []int64         `json:"bundleItems,omitempty"`
}

// IsBundle reports whether the product contains members.
func (p Product) IsBundle() bool {
	return p.Kind == KindBundle
}

// Store provides read access to the product catalog.
type Store interface {
	GetProduct(ctx context.Context, productID int64) (Product, error)
	ProductName(ctx context.Context, productID int64) (string, bool, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

// GetProduct fetches one product including bundle membership.
func (s *pgStore) GetProduct(ctx context.Context, productID int64) (Product, error) {
	if s == nil || s.pool == nil {
		return Product{}, ErrStoreUnavailable
	}
	var p Product
	err := s.pool.QueryRow(ctx, `SELECT id, name, price, kind FROM products WHERE id = $1`, productID).
		Scan(&p.ID, &p.Name, &p.Price, &p.Kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	if p.Kind != KindBundle {
		return p, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT product_id FROM bundle_items WHERE bundle_id = $1 ORDER BY position`, productID)
	if err != nil {
		return Product{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var memberID int64
		if err := rows.Scan(&memberID); err != nil {
			return Product{}, err
		}
		p.BundleItems = append(p.BundleItems, memberID)
	}
	return p, rows.Err()
}

// ProductName reports the product's name and whether it exists.
func (s *pgStore) ProductName(ctx context.Context, productID int64) (string, bool, error) {
	if s == nil || s.pool == nil {
		return "", false, ErrStoreUnavailable
	}
	var name string
	err := s.pool.QueryRow(ctx, `SELECT name FROM products WHERE id = $1`, productID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return name, true, nil
}
