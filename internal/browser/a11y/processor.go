package a11y

import (
	"context"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domsnap/api/schemas"
	"github.com/xkilldash9x/domsnap/internal/browser/cdpclient"
	"github.com/xkilldash9x/domsnap/internal/browser/dom"
)

// Result is one frame's outline.
type Result struct {
	Lines   []Line
	Outline string
	URLMap  map[schemas.EncodedID]string
}

// Processor captures and renders accessibility outlines.
type Processor struct {
	logger        *zap.Logger
	maxPruneDepth int
}

// NewProcessor creates a Processor. maxPruneDepth <= 0 selects
// DefaultMaxPruneDepth.
func NewProcessor(logger *zap.Logger, maxPruneDepth int) *Processor {
	if maxPruneDepth <= 0 {
		maxPruneDepth = DefaultMaxPruneDepth
	}
	return &Processor{logger: logger.Named("a11y"), maxPruneDepth: maxPruneDepth}
}

// CaptureOutline fetches the accessibility tree of frameID (the session's
// main frame when empty) and renders it against domMap.
func (p *Processor) CaptureOutline(ctx context.Context, client cdpclient.Client, frameID cdp.FrameID, domMap *dom.DomMap, encode schemas.Encoder) (*Result, error) {
	p.enable(ctx, client)

	nodes, err := p.fetch(ctx, client, frameID)
	if err != nil {
		return nil, err
	}

	urls := make(map[schemas.EncodedID]string)
	for _, n := range nodes {
		if n == nil || n.BackendDOMNodeID <= 0 {
			continue
		}
		if u := ExtractURL(n); u != "" {
			urls[encode(n.BackendDOMNodeID)] = u
		}
	}

	lines := RenderLines(p.Outline(Decorate(nodes, domMap, encode), domMap))
	return &Result{Lines: lines, Outline: JoinLines(lines), URLMap: urls}, nil
}

// Outline builds and prunes the forest of decorated nodes.
func (p *Processor) Outline(decorated []*Node, domMap *dom.DomMap) []*Node {
	var out []*Node
	for _, root := range BuildTree(decorated) {
		if pruned := Prune(root, domMap, p.maxPruneDepth); pruned != nil {
			out = append(out, pruned)
		}
	}
	return out
}

func (p *Processor) enable(ctx context.Context, client cdpclient.Client) {
	if err := client.EnableAccessibility(ctx); err != nil {
		p.logger.Debug("Accessibility.enable failed; continuing.", zap.Error(err))
	}
	if err := client.EnableRuntime(ctx); err != nil {
		p.logger.Debug("Runtime.enable failed; continuing.", zap.Error(err))
	}
	if err := client.EnableDOM(ctx); err != nil {
		p.logger.Debug("DOM.enable failed; continuing.", zap.Error(err))
	}
}

// fetch retries a frame-scoped query once without scoping when the frame id
// is stale or owned by another target.
func (p *Processor) fetch(ctx context.Context, client cdpclient.Client, frameID cdp.FrameID) ([]*accessibility.Node, error) {
	const method = "Accessibility.getFullAXTree"

	nodes, err := client.GetFullAXTree(ctx, frameID)
	if err == nil {
		return nodes, nil
	}
	if ctx.Err() != nil || !cdpclient.IsFrameScope(err) {
		return nil, cdpclient.Protocol(method, err)
	}
	if frameID == "" {
		return nil, &cdpclient.FrameScopeError{Method: method, Err: err}
	}

	p.logger.Debug("Frame-scoped accessibility query failed; retrying unscoped.",
		zap.String("frame_id", string(frameID)), zap.Error(err))

	nodes, err = client.GetFullAXTree(ctx, "")
	if err != nil {
		return nil, cdpclient.Protocol(method, err)
	}
	return nodes, nil
}
