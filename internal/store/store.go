package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domsnap/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned when no snapshot matches a lookup.
var ErrNotFound = errors.New("snapshot not found")

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS snapshots (
    id            UUID PRIMARY KEY,
    url           TEXT NOT NULL,
    captured_at   TIMESTAMPTZ NOT NULL,
    combined_tree TEXT NOT NULL,
    xpath_map     JSONB NOT NULL,
    url_map       JSONB NOT NULL,
    per_frame     JSONB
);
CREATE INDEX IF NOT EXISTS snapshots_url_captured_at ON snapshots (url, captured_at DESC);
`

const insertSQL = `
INSERT INTO snapshots (id, url, captured_at, combined_tree, xpath_map, url_map, per_frame)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING;
`

const latestByURLSQL = `
SELECT id, url, combined_tree, xpath_map, url_map, per_frame
FROM snapshots
WHERE url = $1
ORDER BY captured_at DESC
LIMIT 1;
`

// SnapshotStore persists hybrid snapshots in PostgreSQL.
type SnapshotStore struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*SnapshotStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SnapshotStore{
		pool: pool,
		log:  logger.Named("store"),
		now:  time.Now,
	}, nil
}

// EnsureSchema creates the snapshots table when missing.
func (s *SnapshotStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save stores snap. Snapshots are immutable; saving the same id twice is a no-op.
func (s *SnapshotStore) Save(ctx context.Context, snap *schemas.HybridSnapshot) error {
	if snap.ID == "" {
		return errors.New("snapshot has no id")
	}
	xpaths, err := json.Marshal(nonNil(snap.CombinedXPathMap))
	if err != nil {
		return fmt.Errorf("failed to encode xpath map: %w", err)
	}
	urls, err := json.Marshal(nonNil(snap.CombinedURLMap))
	if err != nil {
		return fmt.Errorf("failed to encode url map: %w", err)
	}
	var perFrame []byte
	if len(snap.PerFrame) > 0 {
		if perFrame, err = json.Marshal(snap.PerFrame); err != nil {
			return fmt.Errorf("failed to encode per-frame data: %w", err)
		}
	}

	tag, err := s.pool.Exec(ctx, insertSQL,
		snap.ID, snap.URL, s.now().UTC(), snap.CombinedTree, xpaths, urls, perFrame)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot %s: %w", snap.ID, err)
	}
	if tag.RowsAffected() == 0 {
		s.log.Debug("Snapshot already stored.", zap.String("snapshot_id", snap.ID))
	}
	return nil
}

// LatestByURL returns the most recently captured snapshot of url.
func (s *SnapshotStore) LatestByURL(ctx context.Context, url string) (*schemas.HybridSnapshot, error) {
	var (
		snap                   schemas.HybridSnapshot
		xpaths, urls, perFrame []byte
	)
	err := s.pool.QueryRow(ctx, latestByURLSQL, url).
		Scan(&snap.ID, &snap.URL, &snap.CombinedTree, &xpaths, &urls, &perFrame)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot for %s: %w", url, err)
	}

	if err := json.Unmarshal(xpaths, &snap.CombinedXPathMap); err != nil {
		return nil, fmt.Errorf("failed to decode xpath map: %w", err)
	}
	if err := json.Unmarshal(urls, &snap.CombinedURLMap); err != nil {
		return nil, fmt.Errorf("failed to decode url map: %w", err)
	}
	if len(perFrame) > 0 {
		if err := json.Unmarshal(perFrame, &snap.PerFrame); err != nil {
			return nil, fmt.Errorf("failed to decode per-frame data: %w", err)
		}
	}
	return &snap, nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
