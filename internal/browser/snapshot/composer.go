// Package snapshot composes per-frame DOM indexes and accessibility outlines
// into one HybridSnapshot covering every frame of a page.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domsnap/api/schemas"
	"github.com/xkilldash9x/domsnap/internal/browser/a11y"
	"github.com/xkilldash9x/domsnap/internal/browser/cdpclient"
	"github.com/xkilldash9x/domsnap/internal/browser/dom"
	"github.com/xkilldash9x/domsnap/internal/browser/frames"
)

// SimpleFrameID labels the only frame of a CaptureSimple snapshot.
const SimpleFrameID = "main"

// Options tune one capture.
type Options struct {
	PierceShadow    bool
	IncludePerFrame bool
}

// DefaultOptions pierces shadow roots and omits the per-frame breakdown.
func DefaultOptions() Options {
	return Options{PierceShadow: true}
}

// Composer captures HybridSnapshots. It holds no per-page state; every
// capture starts from scratch.
type Composer struct {
	logger    *zap.Logger
	indexer   *dom.Indexer
	resolver  *frames.Resolver
	processor *a11y.Processor
}

// NewComposer wires the indexer, frame resolver and accessibility processor.
func NewComposer(logger *zap.Logger, maxPruneDepth int) *Composer {
	return &Composer{
		logger:    logger.Named("snapshot"),
		indexer:   dom.NewIndexer(logger),
		resolver:  frames.NewResolver(logger),
		processor: a11y.NewProcessor(logger, maxPruneDepth),
	}
}

type frameResult struct {
	domMap  *dom.DomMap
	outline Outline
	urls    map[schemas.EncodedID]string
}

// sessions routes frames to the client serving them.
type sessions struct {
	root    cdpclient.Client
	clients map[cdp.FrameID]cdpclient.Client
	keys    map[cdp.FrameID]string
}

func (s *sessions) clientFor(fid cdp.FrameID) cdpclient.Client {
	if c, ok := s.clients[fid]; ok {
		return c
	}
	return s.root
}

func (s *sessions) keyFor(fid cdp.FrameID) string {
	if k, ok := s.keys[fid]; ok {
		return k
	}
	return cdpclient.RootSession
}

func (c *Composer) routeSessions(ctx context.Context, client cdpclient.Client, fc *frames.Context) (*sessions, error) {
	s := &sessions{
		root:    client,
		clients: make(map[cdp.FrameID]cdpclient.Client),
		keys:    make(map[cdp.FrameID]string),
	}
	router, ok := client.(cdpclient.SessionRouter)
	if !ok {
		return s, nil
	}
	for _, fid := range fc.Frames {
		if fc.IsRoot(fid) {
			continue
		}
		sc, key, err := router.SessionFor(ctx, fid)
		if err != nil {
			if ctx.Err() != nil {
				return nil, cdpclient.Protocol("Target.attachToTarget", ctx.Err())
			}
			c.logger.Debug("No dedicated session for frame; using the page session.",
				zap.String("frame_id", string(fid)), zap.Error(err))
			continue
		}
		s.clients[fid] = sc
		s.keys[fid] = key
	}
	return s, nil
}

// Capture takes a snapshot of every frame reachable from client's page.
// Any failure fails the whole capture.
func (c *Composer) Capture(ctx context.Context, client cdpclient.Client, opts Options) (*schemas.HybridSnapshot, error) {
	start := time.Now()

	fc, err := c.resolver.Discover(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("discovering frames: %w", err)
	}

	sess, err := c.routeSessions(ctx, client, fc)
	if err != nil {
		return nil, err
	}
	owners := frames.NewOwnerCache(c.logger, fc, sess.clientFor)

	indexes := make(map[string]*dom.SessionIndex)
	results := make(map[cdp.FrameID]*frameResult, len(fc.Frames))

	for _, fid := range fc.Frames {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("capture cancelled: %w", err)
		}

		fclient := sess.clientFor(fid)
		key := sess.keyFor(fid)

		idx, ok := indexes[key]
		if !ok {
			idx, err = c.indexer.BuildSessionIndex(ctx, fclient, opts.PierceShadow)
			if err != nil {
				return nil, fmt.Errorf("indexing session %s for frame %s: %w", key, fid, err)
			}
			indexes[key] = idx
		}

		docRoot := idx.RootBackend
		if parent := fc.ParentOf[fid]; parent != "" && sess.keyFor(parent) == key {
			owner, err := owners.FrameOwner(ctx, fid)
			if err != nil && ctx.Err() != nil {
				return nil, err
			}
			if err == nil {
				docRoot = idx.DocumentRootFor(owner)
			}
		}

		enc := fc.Encoder(fid)
		domMap := dom.Extract(idx, docRoot, enc)

		res, err := c.processor.CaptureOutline(ctx, fclient, fid, domMap, enc)
		if err != nil {
			return nil, fmt.Errorf("capturing outline of frame %s: %w", fid, err)
		}
		results[fid] = &frameResult{domMap: domMap, outline: Outline{Lines: res.Lines}, urls: res.URLMap}
	}

	domMaps := make(map[cdp.FrameID]*dom.DomMap, len(results))
	for fid, r := range results {
		domMaps[fid] = r.domMap
	}
	prefixes, err := c.resolver.ComputePrefixes(ctx, owners, fc, domMaps)
	if err != nil {
		return nil, fmt.Errorf("computing frame prefixes: %w", err)
	}

	snap := merge(fc, results, prefixes, opts.IncludePerFrame)
	snap.ID = uuid.NewString()
	snap.URL = fc.URLs[fc.RootID]

	c.logger.Info("Captured hybrid snapshot.",
		zap.String("snapshot_id", snap.ID),
		zap.Int("frames", len(fc.Frames)),
		zap.Int("sessions", len(indexes)),
		zap.Int("nodes", len(snap.CombinedXPathMap)),
		zap.Duration("duration", time.Since(start)))
	return snap, nil
}

func merge(fc *frames.Context, results map[cdp.FrameID]*frameResult, prefixes *frames.Prefixes, perFrame bool) *schemas.HybridSnapshot {
	snap := &schemas.HybridSnapshot{
		CombinedXPathMap: make(map[string]string),
		CombinedURLMap:   make(map[string]string),
	}

	for _, fid := range fc.Frames {
		r := results[fid]
		abs := prefixes.Absolute[fid]
		for id, xp := range r.domMap.XPaths {
			if abs == "" || abs == "/" {
				snap.CombinedXPathMap[id.String()] = xp
			} else {
				snap.CombinedXPathMap[id.String()] = dom.PrefixXPath(abs, xp)
			}
		}
		for id, u := range r.urls {
			snap.CombinedURLMap[id.String()] = u
		}
	}

	children := make(map[schemas.EncodedID]Outline)
	for _, fid := range fc.Frames {
		if owner, ok := prefixes.OwnerEncodedID[fid]; ok {
			children[owner] = results[fid].outline
		}
	}
	snap.CombinedTree = results[fc.RootID].outline.Splice(children).String()

	if perFrame {
		for _, fid := range fc.Frames {
			snap.PerFrame = append(snap.PerFrame, frameSnapshot(string(fid), results[fid]))
		}
	}
	return snap
}

func frameSnapshot(frameID string, r *frameResult) schemas.FrameSnapshot {
	fs := schemas.FrameSnapshot{
		FrameID:  frameID,
		Outline:  r.outline.String(),
		XPathMap: make(map[string]string, len(r.domMap.XPaths)),
		URLMap:   make(map[string]string, len(r.urls)),
	}
	for id, xp := range r.domMap.XPaths {
		fs.XPathMap[id.String()] = xp
	}
	for id, u := range r.urls {
		fs.URLMap[id.String()] = u
	}
	return fs
}

// CaptureSimple snapshots only the session's top document, without frame
// discovery. Every node is keyed with frame ordinal 0.
func (c *Composer) CaptureSimple(ctx context.Context, client cdpclient.Client, opts Options) (*schemas.HybridSnapshot, error) {
	idx, err := c.indexer.BuildSessionIndex(ctx, client, opts.PierceShadow)
	if err != nil {
		return nil, fmt.Errorf("indexing document: %w", err)
	}

	enc := schemas.FrameOrdinal(0).Encoder()
	domMap := dom.Extract(idx, idx.RootBackend, enc)

	res, err := c.processor.CaptureOutline(ctx, client, "", domMap, enc)
	if err != nil {
		return nil, fmt.Errorf("capturing outline: %w", err)
	}

	r := &frameResult{domMap: domMap, outline: Outline{Lines: res.Lines}, urls: res.URLMap}
	fs := frameSnapshot(SimpleFrameID, r)
	return &schemas.HybridSnapshot{
		ID:               uuid.NewString(),
		CombinedTree:     fs.Outline,
		CombinedXPathMap: fs.XPathMap,
		CombinedURLMap:   fs.URLMap,
		PerFrame:         []schemas.FrameSnapshot{fs},
	}, nil
}
