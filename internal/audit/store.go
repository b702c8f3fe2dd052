package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable indicates the audit store dependency is not configured.
var ErrStoreUnavailable = errors.New("audit: store unavailable")

// Entry is one recorded admin action.
type Entry struct {
	ID           uuid.UUID `json:"id"`
	ActorKind    string    `json:"actorKind"`
	ActorID      *string   `json:"actorId,omitempty"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resourceType"`
	ResourceID   *string   `json:"resourceId,omitempty"`
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	Status       int       `json:"status"`
	IP           *string   `json:"ip,omitempty"`
	RequestID    *string   `json:"requestId,omitempty"`
	Metadata     []byte    `json:"metadata,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store provides database accessors for audit logs.
type Store interface {
	InsertAuditLog(ctx context.Context, entry Entry) (uuid.UUID, error)
	ListAuditLogs(ctx context.Context, limit, offset int) ([]Entry, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

func (s *pgStore) InsertAuditLog(ctx context.Context, entry Entry) (uuid.UUID, error) {
	if s == nil || s.pool == nil {
		return uuid.Nil, ErrStoreUnavailable
	}
	var metadata any
	if len(entry.Metadata) > 0 {
		metadata = entry.Metadata
	}
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `INSERT INTO audit_logs (actor_kind, actor_id, action, resource_type, resource_id, method, path, status, ip, request_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		entry.ActorKind, entry.ActorID, entry.Action, entry.ResourceType, entry.ResourceID,
		entry.Method, entry.Path, entry.Status, entry.IP, entry.RequestID, metadata).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *pgStore) ListAuditLogs(ctx context.Context, limit, offset int) ([]Entry, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT id, actor_kind, actor_id, action, resource_type, resource_id, method, path, status, ip, request_id, metadata, created_at
FROM audit_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.ActorKind, &entry.ActorID, &entry.Action, &entry.ResourceType,
			&entry.ResourceID, &entry.Method, &entry.Path, &entry.Status, &entry.IP, &entry.RequestID,
			&entry.Metadata, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
