package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrStoreUnavailable indicates the billing store dependency is not configured.
var ErrStoreUnavailable = errors.New("billing: store unavailable")

// ErrNotFound indicates the requested subscription does not exist.
var ErrNotFound = errors.New("billing: subscription not found")

// Subscription is a recurring purchase. Rate is captured at signup and reused
// for every renewal, so override edits never change what an existing
// subscriber pays.
type Subscription struct {
	ID        uuid.UUID       `json:"id"`
	ProductID int64           `json:"productId"`
	Country   string          `json:"country"`
	Price     decimal.Decimal `json:"price"`
	Rate      decimal.Decimal `json:"rate"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Renewal is one processed billing cycle.
type Renewal struct {
	ID             uuid.UUID       `json:"id"`
	SubscriptionID uuid.UUID       `json:"subscriptionId"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Store provides database accessors for subscriptions and renewals.
type Store interface {
	InsertSubscription(ctx context.Context, sub Subscription) (uuid.UUID, error)
	GetSubscription(ctx context.Context, id uuid.UUID) (Subscription, error)
	InsertRenewal(ctx context.Context, renewal Renewal) (uuid.UUID, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

func (s *pgStore) InsertSubscription(ctx context.Context, sub Subscription) (uuid.UUID, error) {
	if s == nil || s.pool == nil {
		return uuid.Nil, ErrStoreUnavailable
	}
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `INSERT INTO subscriptions (product_id, country, price, rate, status)
VALUES ($1, $2, $3, $4, 'active') RETURNING id`,
		sub.ProductID, sub.Country, sub.Price, sub.Rate).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *pgStore) GetSubscription(ctx context.Context, id uuid.UUID) (Subscription, error) {
	if s == nil || s.pool == nil {
		return Subscription{}, ErrStoreUnavailable
	}
	var sub Subscription
	err := s.pool.QueryRow(ctx, `SELECT id, product_id, country, price, rate, status, created_at
FROM subscriptions WHERE id = $1`, id).
		Scan(&sub.ID, &sub.ProductID, &sub.Country, &sub.Price, &sub.Rate, &sub.Status, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, ErrNotFound
		}
		return Subscription{}, err
	}
	return sub, nil
}

func (s *pgStore) InsertRenewal(ctx context.Context, renewal Renewal) (uuid.UUID, error) {
	if s == nil || s.pool == nil {
		return uuid.Nil, ErrStoreUnavailable
	}
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `INSERT INTO subscription_renewals (subscription_id, tax, total)
VALUES ($1, $2, $3) RETURNING id`,
		renewal.SubscriptionID, renewal.Tax, renewal.Total).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
