package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domsnap/api/schemas"
	"github.com/xkilldash9x/domsnap/internal/browser"
	"github.com/xkilldash9x/domsnap/internal/browser/snapshot"
	"github.com/xkilldash9x/domsnap/internal/observability"
	"github.com/xkilldash9x/domsnap/internal/store"
)

// CaptureRequest selects what a single capture does.
type CaptureRequest struct {
	URL     string
	Options snapshot.Options
	// Simple skips frame discovery and snapshots only the top document.
	Simple bool
}

// Capturer turns a URL into a snapshot.
type Capturer interface {
	Capture(ctx context.Context, req CaptureRequest) (*schemas.HybridSnapshot, error)
	Close(ctx context.Context) error
}

// SnapshotStore is the persistence the CLI writes snapshots to.
type SnapshotStore interface {
	Save(ctx context.Context, snap *schemas.HybridSnapshot) error
	LatestByURL(ctx context.Context, url string) (*schemas.HybridSnapshot, error)
}

type browserCapturer struct {
	manager  *browser.Manager
	composer *snapshot.Composer
	logger   *zap.Logger
}

func newBrowserCapturer(ctx context.Context, a *app) (Capturer, error) {
	snapCfg := a.cfg.Snapshot()
	return &browserCapturer{
		manager:  browser.NewManager(ctx, a.cfg.Browser(), snapCfg.CallTimeout, a.logger),
		composer: snapshot.NewComposer(a.logger, snapCfg.MaxPruneDepth),
		logger:   a.logger,
	}, nil
}

func (c *browserCapturer) Capture(ctx context.Context, req CaptureRequest) (*schemas.HybridSnapshot, error) {
	logger := observability.WithCapture(c.logger, uuid.NewString(), req.URL)
	start := time.Now()

	tab, err := c.manager.OpenTab(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	defer tab.Close()

	var snap *schemas.HybridSnapshot
	if req.Simple {
		snap, err = c.composer.CaptureSimple(ctx, tab.Client(), req.Options)
	} else {
		snap, err = c.composer.Capture(ctx, tab.Client(), req.Options)
	}
	if err != nil {
		logger.Warn("Capture failed.", zap.Error(err))
		return nil, fmt.Errorf("capturing %s: %w", req.URL, err)
	}
	// The page may have redirected; keep the address that was asked for.
	snap.URL = req.URL
	logger.Info("Snapshot captured.",
		zap.String("snapshot_id", snap.ID),
		zap.Duration("duration", time.Since(start)))
	return snap, nil
}

func (c *browserCapturer) Close(ctx context.Context) error {
	return c.manager.Shutdown(ctx)
}

// openPostgresStore returns a nil store when no database is configured.
func openPostgresStore(ctx context.Context, a *app) (SnapshotStore, func(), error) {
	url := a.cfg.Database().URL
	if url == "" {
		return nil, func() {}, nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s, err := store.New(ctx, pool, a.logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}
