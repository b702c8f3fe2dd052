package order

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-vat/internal/tax"
)

// ErrStoreUnavailable indicates the order store dependency is not configured.
var ErrStoreUnavailable = errors.New("order: store unavailable")

// ErrNotFound indicates the requested order does not exist.
var ErrNotFound = errors.New("order: not found")

// Order is a finalized purchase with its tax breakdown. Summary is nil for
// orders persisted before summaries were stored; readers recompute it from
// the item rates.
type Order struct {
	ID          uuid.UUID       `json:"id"`
	Country     string          `json:"country"`
	DisplayMode tax.DisplayMode `json:"displayMode"`
	TotalTax    decimal.Decimal `json:"totalTax"`
	AnyOverride bool            `json:"anyOverride"`
	Summary     tax.Summary     `json:"summary,omitempty"`
	Items       []tax.ItemTax   `json:"items"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Store provides database accessors for finalized orders.
type Store interface {
	InsertOrder(ctx context.Context, o Order) (uuid.UUID, error)
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	SaveSummary(ctx context.Context, id uuid.UUID, summary tax.Summary) error
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

// InsertOrder persists an order and its items in one transaction and returns
// the generated identifier.
func (s *pgStore) InsertOrder(ctx context.Context, o Order) (uuid.UUID, error) {
	if s == nil || s.pool == nil {
		return uuid.Nil, ErrStoreUnavailable
	}
	summaryJSON, err := json.Marshal(o.Summary)
	if err != nil {
		return uuid.Nil, err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id uuid.UUID
	err = tx.QueryRow(ctx, `INSERT INTO orders (country, display_mode, total_tax, any_override, tax_summary)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		o.Country, string(o.DisplayMode), o.TotalTax, o.AnyOverride, summaryJSON).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	for _, item := range o.Items {
		var parentID any
		if item.ParentID != 0 {
			parentID = item.ParentID
		}
		_, err = tx.Exec(ctx, `INSERT INTO order_items (order_id, product_id, parent_id, price, rate, tax, is_override)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, item.ProductID, parentID, item.Price, item.Rate, item.Tax, item.IsOverride)
		if err != nil {
			return uuid.Nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// GetOrder fetches an order with its items.
func (s *pgStore) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	if s == nil || s.pool == nil {
		return Order{}, ErrStoreUnavailable
	}
	var (
		o           Order
		displayMode string
		summaryJSON []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT id, country, display_mode, total_tax, any_override, tax_summary, created_at
FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.Country, &displayMode, &o.TotalTax, &o.AnyOverride, &summaryJSON, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	o.DisplayMode = tax.ParseDisplayMode(displayMode)
	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &o.Summary); err != nil {
			return Order{}, err
		}
	}

	rows, err := s.pool.Query(ctx, `SELECT product_id, COALESCE(parent_id, 0), price, rate, tax, is_override
FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item tax.ItemTax
		if err := rows.Scan(&item.ProductID, &item.ParentID, &item.Price, &item.Rate, &item.Tax, &item.IsOverride); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

// SaveSummary backfills a recomputed summary onto an order that predates
// summary storage.
func (s *pgStore) SaveSummary(ctx context.Context, id uuid.UUID, summary tax.Summary) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `UPDATE orders SET tax_summary = $2 WHERE id = $1 AND tax_summary IS NULL`, id, summaryJSON)
	return err
}
