package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := runCommand(t, newTestApp(&fakeCapturer{}, nil), "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "domsnap version dev")
}

func TestRootCmd_VersionCommand(t *testing.T) {
	out, err := runCommand(t, newTestApp(&fakeCapturer{}, nil), "version")
	require.NoError(t, err)
	assert.Equal(t, "domsnap version dev\n", out)
}

func TestRootCmd_NoArgs(t *testing.T) {
	out, err := runCommand(t, newTestApp(&fakeCapturer{}, nil))
	require.NoError(t, err)
	assert.Contains(t, out, "domsnap captures hybrid DOM and accessibility snapshots")
	for _, sub := range []string{"snapshot", "diff", "watch", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCmd_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "domsnap.yaml")
	outDir := filepath.Join(dir, "snaps")
	content := "snapshot:\n  output_dir: " + outDir + "\n  include_per_frame: true\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	c := &fakeCapturer{}
	a := newTestApp(c, nil)
	_, err := runCommand(t, a, "--config", cfgPath, "snapshot", "https://example.com")
	require.NoError(t, err)

	assert.Equal(t, outDir, a.cfg.Snapshot().OutputDir)
	require.Len(t, c.reqs, 1)
	assert.True(t, c.reqs[0].Options.IncludePerFrame)
	assert.True(t, c.reqs[0].Options.PierceShadow)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("browser:\n  concurrency: 0\n"), 0o644))

	c := &fakeCapturer{}
	_, err := runCommand(t, newTestApp(c, nil), "--config", cfgPath, "snapshot", "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency")
	assert.Empty(t, c.reqs)
}
