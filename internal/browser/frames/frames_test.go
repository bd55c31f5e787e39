package frames_test

import (
	"context"
	"errors"
	"testing"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/domsnap/api/schemas"
	"github.com/xkilldash9x/domsnap/internal/browser/cdpclient"
	"github.com/xkilldash9x/domsnap/internal/browser/cdpclient/cdptest"
	"github.com/xkilldash9x/domsnap/internal/browser/dom"
	"github.com/xkilldash9x/domsnap/internal/browser/frames"
)

// main
// ├── a
// │   └── a1
// └── b
func nestedFake() *cdptest.Fake {
	fake := cdptest.NewFake(cdptest.FromHTML(`<p>x</p>`, cdptest.NewIDSource()))
	fake.AddChildFrame("main", "a")
	fake.AddChildFrame("a", "a1")
	fake.AddChildFrame("main", "b")
	return fake
}

type ownerMap map[cdp.FrameID]cdp.BackendNodeID

func (m ownerMap) FrameOwner(_ context.Context, id cdp.FrameID) (cdp.BackendNodeID, error) {
	be, ok := m[id]
	if !ok {
		return 0, errors.New("Frame with the given id was not found.")
	}
	return be, nil
}

func TestDiscover_PreorderOrdinals(t *testing.T) {
	r := frames.NewResolver(zaptest.NewLogger(t))

	fc, err := r.Discover(context.Background(), nestedFake())
	require.NoError(t, err)

	assert.Equal(t, cdp.FrameID("main"), fc.RootID)
	assert.Equal(t, []cdp.FrameID{"main", "a", "a1", "b"}, fc.Frames)
	assert.Equal(t, cdp.FrameID(""), fc.ParentOf["main"])
	assert.Equal(t, cdp.FrameID("a"), fc.ParentOf["a1"])
	assert.Equal(t, []cdp.FrameID{"a", "b"}, fc.Children("main"))
	assert.True(t, fc.IsRoot("main"))

	ord, ok := fc.Ordinal("a1")
	require.True(t, ok)
	assert.Equal(t, schemas.FrameOrdinal(2), ord)
	assert.Equal(t, "3-17", fc.Encoder("b")(17).String())

	_, ok = fc.Ordinal("nope")
	assert.False(t, ok)
}

func TestDiscover_Errors(t *testing.T) {
	r := frames.NewResolver(zaptest.NewLogger(t))

	fake := cdptest.NewFake(nil)
	fake.FrameTree = &page.FrameTree{}
	_, err := r.Discover(context.Background(), fake)
	var protoErr *cdpclient.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, "Page.getFrameTree", protoErr.Method)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Discover(ctx, nestedFake())
	assert.ErrorIs(t, err, context.Canceled)
}

func domMap(entries map[schemas.EncodedID]string) *dom.DomMap {
	m := dom.NewDomMap()
	for k, v := range entries {
		m.XPaths[k] = v
	}
	return m
}

func TestComputePrefixes(t *testing.T) {
	r := frames.NewResolver(zaptest.NewLogger(t))
	fc, err := r.Discover(context.Background(), nestedFake())
	require.NoError(t, err)

	maps := map[cdp.FrameID]*dom.DomMap{
		"main": domMap(map[schemas.EncodedID]string{
			schemas.NewEncodedID(0, 10): "/html[1]/body[1]/iframe[1]",
			schemas.NewEncodedID(0, 11): "/html[1]/body[1]/div[1]//iframe[1]",
		}),
		"a": domMap(map[schemas.EncodedID]string{
			schemas.NewEncodedID(1, 20): "/html[1]/body[1]/iframe[2]",
		}),
	}
	owners := ownerMap{"a": 10, "a1": 20, "b": 11}

	got, err := r.ComputePrefixes(context.Background(), owners, fc, maps)
	require.NoError(t, err)

	assert.Equal(t, map[cdp.FrameID]string{
		"main": "",
		"a":    "/html[1]/body[1]/iframe[1]",
		"a1":   "/html[1]/body[1]/iframe[1]/html[1]/body[1]/iframe[2]",
		"b":    "/html[1]/body[1]/div[1]//iframe[1]",
	}, got.Absolute)
	assert.Equal(t, map[cdp.FrameID]schemas.EncodedID{
		"a":  schemas.NewEncodedID(0, 10),
		"a1": schemas.NewEncodedID(1, 20),
		"b":  schemas.NewEncodedID(0, 11),
	}, got.OwnerEncodedID)
}

func TestComputePrefixes_InheritsOnOwnerFailure(t *testing.T) {
	r := frames.NewResolver(zaptest.NewLogger(t))
	fc, err := r.Discover(context.Background(), nestedFake())
	require.NoError(t, err)

	maps := map[cdp.FrameID]*dom.DomMap{
		"main": domMap(map[schemas.EncodedID]string{
			schemas.NewEncodedID(0, 10): "/html[1]/body[1]/iframe[1]",
		}),
	}
	// a1's owner fails, b's owner is not in main's map.
	owners := ownerMap{"a": 10, "b": 99}

	got, err := r.ComputePrefixes(context.Background(), owners, fc, maps)
	require.NoError(t, err)

	assert.Equal(t, "/html[1]/body[1]/iframe[1]", got.Absolute["a1"])
	assert.Equal(t, "", got.Absolute["b"])
	_, ok := got.OwnerEncodedID["a1"]
	assert.False(t, ok)
	assert.Equal(t, schemas.NewEncodedID(0, 99), got.OwnerEncodedID["b"])
}

func TestOwnerCache_AsksParentSessionOnce(t *testing.T) {
	root := nestedFake()
	root.Owners["a"] = 10
	root.Owners["b"] = 11

	child := cdptest.NewFake(cdptest.FromHTML(`<p>y</p>`, cdptest.NewIDSource()))
	child.Owners["a1"] = 20

	r := frames.NewResolver(zaptest.NewLogger(t))
	fc, err := r.Discover(context.Background(), root)
	require.NoError(t, err)

	clientFor := func(id cdp.FrameID) cdpclient.Client {
		if id == "a" || id == "a1" {
			return child
		}
		return root
	}
	cache := frames.NewOwnerCache(zaptest.NewLogger(t), fc, clientFor)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		be, err := cache.FrameOwner(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, cdp.BackendNodeID(10), be)
	}
	be, err := cache.FrameOwner(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, cdp.BackendNodeID(20), be)

	assert.Equal(t, []string{"Page.getFrameTree", "DOM.getFrameOwner a"}, root.Calls())
	assert.Equal(t, []string{"DOM.getFrameOwner a1"}, child.Calls())

	_, err = cache.FrameOwner(ctx, "missing")
	var scopeErr *cdpclient.FrameScopeError
	require.ErrorAs(t, err, &scopeErr)
	assert.Equal(t, cdp.FrameID("missing"), scopeErr.FrameID)
	assert.True(t, cdpclient.IsFrameScope(err))
}

// cancellingOwners cancels the capture mid-walk and reports no owner.
type cancellingOwners struct{ cancel context.CancelFunc }

func (c cancellingOwners) FrameOwner(context.Context, cdp.FrameID) (cdp.BackendNodeID, error) {
	c.cancel()
	return 0, nil
}

func TestComputePrefixes_CancelledWithoutOwnerError(t *testing.T) {
	root := nestedFake()
	r := frames.NewResolver(zaptest.NewLogger(t))
	fc, err := r.Discover(context.Background(), root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prefixes, err := r.ComputePrefixes(ctx, cancellingOwners{cancel: cancel}, fc, map[cdp.FrameID]*dom.DomMap{})
	assert.Nil(t, prefixes)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputePrefixes_Cancelled(t *testing.T) {
	root := nestedFake()
	r := frames.NewResolver(zaptest.NewLogger(t))
	fc, err := r.Discover(context.Background(), root)
	require.NoError(t, err)

	cache := frames.NewOwnerCache(zaptest.NewLogger(t), fc, func(cdp.FrameID) cdpclient.Client { return root })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.ComputePrefixes(ctx, cache, fc, map[cdp.FrameID]*dom.DomMap{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
