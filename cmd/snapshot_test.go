package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/domsnap/api/schemas"
	"github.com/xkilldash9x/domsnap/internal/mocks"
)

func TestSnapshotCmd_WritesFilesAndStores(t *testing.T) {
	outDir := t.TempDir()
	c := &fakeCapturer{trees: []string{"[0-1] RootWebArea\n  [0-2] button: Go"}}
	st := new(mocks.MockSnapshotStore)
	st.On("Save", mock.Anything, mock.AnythingOfType("*schemas.HybridSnapshot")).Return(nil).Twice()

	out, err := runCommand(t, newTestApp(c, st),
		"snapshot", "--out", outDir, "--print", "example.com", "http://localhost:8080/a")
	require.NoError(t, err)

	st.AssertExpectations(t)
	assert.True(t, c.closed)
	assert.Contains(t, out, "https://example.com\t")
	assert.Contains(t, out, "http://localhost:8080/a\t")
	assert.Contains(t, out, "[0-2] button: Go")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	require.Len(t, names, 2)
	assert.Regexp(t, `^example\.com-snap-\d\.json$`, names[0])
	assert.Regexp(t, `^localhost_8080-snap-\d\.json$`, names[1])

	snap, err := readSnapshot(filepath.Join(outDir, names[0]))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", snap.URL)
	assert.Equal(t, "/", snap.CombinedXPathMap["0-1"])
}

func TestSnapshotCmd_FlagsReachCapture(t *testing.T) {
	c := &fakeCapturer{}
	_, err := runCommand(t, newTestApp(c, nil),
		"snapshot", "--out", t.TempDir(), "--per-frame", "--no-pierce", "--simple", "https://example.com")
	require.NoError(t, err)

	require.Len(t, c.reqs, 1)
	req := c.reqs[0]
	assert.Equal(t, "https://example.com", req.URL)
	assert.True(t, req.Simple)
	assert.True(t, req.Options.IncludePerFrame)
	assert.False(t, req.Options.PierceShadow)
}

func TestSnapshotCmd_CaptureFailure(t *testing.T) {
	outDir := t.TempDir()
	c := &fakeCapturer{err: errors.New("navigation timed out")}
	_, err := runCommand(t, newTestApp(c, nil), "snapshot", "--out", outDir, "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "navigation timed out")
	assert.True(t, c.closed)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSnapshotCmd_StoreFailure(t *testing.T) {
	st := new(mocks.MockSnapshotStore)
	st.On("Save", mock.Anything, mock.Anything).Return(errors.New("db down"))

	_, err := runCommand(t, newTestApp(&fakeCapturer{}, st), "snapshot", "--out", t.TempDir(), "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestSnapshotCmd_RequiresURL(t *testing.T) {
	_, err := runCommand(t, newTestApp(&fakeCapturer{}, nil), "snapshot")
	require.Error(t, err)
}

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"example.com":            "https://example.com",
		"http://example.com/x":   "http://example.com/x",
		"about:blank":            "about:blank",
		"data:text/html,<p>":     "data:text/html,<p>",
		"localhost:3000/login":   "https://localhost:3000/login",
		"file:///tmp/index.html": "file:///tmp/index.html",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeURL(in), in)
	}
}

func TestSnapshotFileName(t *testing.T) {
	assert.Equal(t, "a.test_8443-x1.json",
		snapshotFileName(&schemas.HybridSnapshot{ID: "x1", URL: "https://a.test:8443/p?q=1"}))
	assert.Equal(t, "page-x2.json",
		snapshotFileName(&schemas.HybridSnapshot{ID: "x2", URL: "about:blank"}))
}
