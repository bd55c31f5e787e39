package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/domsnap/api/schemas"
	"github.com/xkilldash9x/domsnap/internal/mocks"
	"github.com/xkilldash9x/domsnap/internal/store"
)

func writeTree(t *testing.T, dir, id, tree string) string {
	t.Helper()
	path, err := writeSnapshot(dir, &schemas.HybridSnapshot{ID: id, URL: "https://example.com", CombinedTree: tree})
	require.NoError(t, err)
	return path
}

func TestDiffCmd_Files(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeTree(t, dir, "old", "[0-1] RootWebArea\n  [0-2] button: A")
	newPath := writeTree(t, dir, "new", "[0-1] RootWebArea\n  [0-2] button: A\n  [0-3] link: B\n    [0-4] StaticText: B")

	out, err := runCommand(t, newTestApp(&fakeCapturer{}, nil), "diff", oldPath, newPath)
	require.NoError(t, err)
	assert.Equal(t, "[0-3] link: B\n  [0-4] StaticText: B\n", out)
}

func TestDiffCmd_NoChanges(t *testing.T) {
	dir := t.TempDir()
	p := writeTree(t, dir, "same", "[0-1] RootWebArea")

	out, err := runCommand(t, newTestApp(&fakeCapturer{}, nil), "diff", p, p)
	require.NoError(t, err)
	assert.Equal(t, "no changes\n", out)
}

func TestDiffCmd_MissingFile(t *testing.T) {
	p := writeTree(t, t.TempDir(), "x", "[0-1] RootWebArea")
	_, err := runCommand(t, newTestApp(&fakeCapturer{}, nil), "diff", "/nonexistent/old.json", p)
	require.Error(t, err)
}

func TestDiffCmd_Latest(t *testing.T) {
	p := writeTree(t, t.TempDir(), "new", "[0-1] RootWebArea\n  [0-5] heading: Hi")
	st := new(mocks.MockSnapshotStore)
	st.On("LatestByURL", mock.Anything, "https://example.com").
		Return(&schemas.HybridSnapshot{CombinedTree: "[0-1] RootWebArea"}, nil)

	out, err := runCommand(t, newTestApp(&fakeCapturer{}, st), "diff", "--latest", "example.com", p)
	require.NoError(t, err)
	assert.Equal(t, "[0-5] heading: Hi\n", out)
	st.AssertExpectations(t)
}

func TestDiffCmd_LatestNotFound(t *testing.T) {
	p := writeTree(t, t.TempDir(), "new", "[0-1] RootWebArea")
	st := new(mocks.MockSnapshotStore)
	st.On("LatestByURL", mock.Anything, "https://example.com").Return(nil, store.ErrNotFound)

	_, err := runCommand(t, newTestApp(&fakeCapturer{}, st), "diff", "--latest", "https://example.com", p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stored snapshot")
}

func TestDiffCmd_LatestWithoutDatabase(t *testing.T) {
	p := writeTree(t, t.TempDir(), "new", "[0-1] RootWebArea")
	_, err := runCommand(t, newTestApp(&fakeCapturer{}, nil), "diff", "--latest", "example.com", p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
}
