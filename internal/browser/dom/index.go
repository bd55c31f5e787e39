package dom

import (
	"context"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domsnap/internal/browser/cdpclient"
)

// Depth sequences tried when Chrome's serializer hits its recursion limit.
var (
	DocumentDepthAttempts = []int64{-1, 256, 128, 64, 32, 16, 8, 4, 2, 1}
	DescribeDepthAttempts = []int64{-1, 64, 32, 16, 8, 4, 2, 1}
)

// SessionIndex is the flat view of every node reachable in one CDP session,
// keyed by backend node id. XPaths live in the session's coordinate space:
// a same-process framed document reuses its owner element's path.
type SessionIndex struct {
	RootBackend cdp.BackendNodeID

	AbsoluteXPath map[cdp.BackendNodeID]string
	Tag           map[cdp.BackendNodeID]string
	Scrollable    map[cdp.BackendNodeID]bool
	// DocumentRoot maps a node to the root of the document it belongs to.
	DocumentRoot map[cdp.BackendNodeID]cdp.BackendNodeID
	// ContentDocumentRoot maps a frame owner element to its content document.
	ContentDocumentRoot map[cdp.BackendNodeID]cdp.BackendNodeID
}

// Indexer builds SessionIndexes.
type Indexer struct {
	logger *zap.Logger
}

// NewIndexer creates an Indexer logging through logger.
func NewIndexer(logger *zap.Logger) *Indexer {
	return &Indexer{logger: logger.Named("dom_indexer")}
}

type indexEntry struct {
	node    *cdp.Node
	xpath   string
	docRoot cdp.BackendNodeID
}

// BuildSessionIndex fetches the session's whole DOM (falling back to bounded
// depths and hydration when needed) and indexes it.
func (ix *Indexer) BuildSessionIndex(ctx context.Context, client cdpclient.Client, pierce bool) (*SessionIndex, error) {
	if err := client.EnableDOM(ctx); err != nil {
		ix.logger.Debug("DOM.enable failed; continuing.", zap.Error(err))
	}

	root, err := ix.FetchDocument(ctx, client, pierce)
	if err != nil {
		return nil, err
	}
	return IndexTree(root), nil
}

// IndexTree indexes an already fully realized document tree.
func IndexTree(root *cdp.Node) *SessionIndex {
	idx := &SessionIndex{
		RootBackend:         root.BackendNodeID,
		AbsoluteXPath:       make(map[cdp.BackendNodeID]string),
		Tag:                 make(map[cdp.BackendNodeID]string),
		Scrollable:          make(map[cdp.BackendNodeID]bool),
		DocumentRoot:        make(map[cdp.BackendNodeID]cdp.BackendNodeID),
		ContentDocumentRoot: make(map[cdp.BackendNodeID]cdp.BackendNodeID),
	}

	stack := []indexEntry{{node: root, xpath: "/", docRoot: root.BackendNodeID}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := e.node

		// A doctype has no XPath of its own.
		if be := n.BackendNodeID; be > 0 && n.NodeType != cdp.NodeTypeDocumentType {
			xp := e.xpath
			if xp == "" {
				xp = "/"
			}
			idx.AbsoluteXPath[be] = xp
			idx.Tag[be] = strings.ToLower(n.NodeName)
			if n.IsScrollable {
				idx.Scrollable[be] = true
			}
			idx.DocumentRoot[be] = e.docRoot
		}

		if len(n.Children) > 0 {
			steps := ChildSteps(n.Children)
			for i := len(n.Children) - 1; i >= 0; i-- {
				stack = append(stack, indexEntry{
					node:    n.Children[i],
					xpath:   JoinXPath(e.xpath, steps[i]),
					docRoot: e.docRoot,
				})
			}
		}

		for _, sr := range n.ShadowRoots {
			stack = append(stack, indexEntry{node: sr, xpath: JoinXPath(e.xpath, ShadowHop), docRoot: e.docRoot})
		}

		if cd := n.ContentDocument; cd != nil && cd.BackendNodeID > 0 {
			idx.ContentDocumentRoot[n.BackendNodeID] = cd.BackendNodeID
			stack = append(stack, indexEntry{node: cd, xpath: e.xpath, docRoot: cd.BackendNodeID})
		}
	}
	return idx
}

// FetchDocument retrieves the document, stepping down DocumentDepthAttempts
// while Chrome reports the stack limit. A bounded result is hydrated before
// it is returned.
func (ix *Indexer) FetchDocument(ctx context.Context, client cdpclient.Client, pierce bool) (*cdp.Node, error) {
	var lastErr error
	var lastDepth int64

	for _, depth := range DocumentDepthAttempts {
		if err := ctx.Err(); err != nil {
			return nil, cdpclient.Protocol("DOM.getDocument", err)
		}

		root, err := client.GetDocument(ctx, depth, pierce)
		if err != nil {
			if cdpclient.IsStackLimit(err) {
				ix.logger.Debug("DOM.getDocument hit the stack limit; retrying shallower.", zap.Int64("depth", depth))
				lastErr, lastDepth = err, depth
				continue
			}
			return nil, cdpclient.Protocol("DOM.getDocument", err)
		}

		if depth != -1 {
			expanded, err := ix.Hydrate(ctx, client, root, pierce)
			if err != nil {
				return nil, err
			}
			ix.logger.Debug("Hydrated bounded document.", zap.Int64("depth", depth), zap.Int("expanded_nodes", expanded))
		}
		return root, nil
	}

	return nil, &cdpclient.DepthExceededError{Method: "DOM.getDocument", LastDepth: lastDepth, Err: lastErr}
}

// ShouldExpand reports whether n declares more children than were realized.
func ShouldExpand(n *cdp.Node) bool {
	return n.ChildNodeCount > int64(len(n.Children))
}

// MergeNodes grafts what DOM.describeNode returned onto target.
func MergeNodes(target, source *cdp.Node) {
	if source.ChildNodeCount != 0 {
		target.ChildNodeCount = source.ChildNodeCount
	}
	if source.Children != nil {
		target.Children = source.Children
	}
	if source.ShadowRoots != nil {
		target.ShadowRoots = source.ShadowRoots
	}
	if source.ContentDocument != nil {
		target.ContentDocument = source.ContentDocument
	}
}

func traversalTargets(n *cdp.Node) []*cdp.Node {
	targets := make([]*cdp.Node, 0, len(n.Children)+len(n.ShadowRoots)+1)
	targets = append(targets, n.Children...)
	targets = append(targets, n.ShadowRoots...)
	if n.ContentDocument != nil {
		targets = append(targets, n.ContentDocument)
	}
	return targets
}

// Hydrate walks root and re-describes every truncated node, grafting the
// result in place. Each node is expanded at most once. It returns how many
// nodes were expanded.
func (ix *Indexer) Hydrate(ctx context.Context, client cdpclient.Client, root *cdp.Node, pierce bool) (int, error) {
	seenNodes := make(map[cdp.NodeID]bool)
	seenBackends := make(map[cdp.BackendNodeID]bool)
	expanded := 0

	stack := []*cdp.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ref := cdpclient.NodeRef{NodeID: n.NodeID, BackendID: n.BackendNodeID}
		switch {
		case ref.NodeID > 0 && seenNodes[ref.NodeID]:
			continue
		case ref.NodeID <= 0 && ref.BackendID > 0 && seenBackends[ref.BackendID]:
			continue
		case ref.NodeID > 0:
			seenNodes[ref.NodeID] = true
		case ref.BackendID > 0:
			seenBackends[ref.BackendID] = true
		}

		if ShouldExpand(n) && ref.Valid() {
			described, err := ix.describeWithFallback(ctx, client, ref, pierce)
			if err != nil {
				return expanded, err
			}
			MergeNodes(n, described)
			if ref.NodeID <= 0 && described.NodeID > 0 {
				n.NodeID = described.NodeID
				seenNodes[described.NodeID] = true
			}
			expanded++
		}

		stack = append(stack, traversalTargets(n)...)
	}
	return expanded, nil
}

func (ix *Indexer) describeWithFallback(ctx context.Context, client cdpclient.Client, ref cdpclient.NodeRef, pierce bool) (*cdp.Node, error) {
	var lastErr error
	var lastDepth int64

	for _, depth := range DescribeDepthAttempts {
		if err := ctx.Err(); err != nil {
			return nil, cdpclient.Protocol("DOM.describeNode", err)
		}

		described, err := client.DescribeNode(ctx, ref, depth, pierce)
		if err == nil {
			return described, nil
		}
		if !cdpclient.IsStackLimit(err) {
			return nil, cdpclient.Protocol("DOM.describeNode", err)
		}
		lastErr, lastDepth = err, depth
	}

	return nil, &cdpclient.DepthExceededError{Method: "DOM.describeNode", Node: ref, LastDepth: lastDepth, Err: lastErr}
}
