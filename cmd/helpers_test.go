package cmd

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/xkilldash9x/domsnap/api/schemas"
)

// fakeCapturer serves canned trees, one per call, repeating the last one.
type fakeCapturer struct {
	mu     sync.Mutex
	trees  []string
	err    error
	calls  int
	reqs   []CaptureRequest
	closed bool
}

func (f *fakeCapturer) Capture(ctx context.Context, req CaptureRequest) (*schemas.HybridSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	tree := "[0-1] RootWebArea"
	if len(f.trees) > 0 {
		tree = f.trees[min(f.calls, len(f.trees)-1)]
	}
	f.calls++
	return &schemas.HybridSnapshot{
		ID:               fmt.Sprintf("snap-%d", f.calls),
		URL:              req.URL,
		CombinedTree:     tree,
		CombinedXPathMap: map[string]string{"0-1": "/"},
		CombinedURLMap:   map[string]string{},
	}, nil
}

func (f *fakeCapturer) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// newTestApp wires the fake capturer and an optional store into a fresh app.
func newTestApp(c Capturer, st SnapshotStore) *app {
	a := newApp()
	a.newCapturer = func(context.Context, *app) (Capturer, error) { return c, nil }
	a.openStore = func(context.Context, *app) (SnapshotStore, func(), error) {
		return st, func() {}, nil
	}
	return a
}

func runCommand(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
