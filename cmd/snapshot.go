package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/domsnap/api/schemas"
	"github.com/xkilldash9x/domsnap/internal/browser/snapshot"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const shutdownTimeout = 15 * time.Second

type snapshotFlags struct {
	out      string
	perFrame bool
	noPierce bool
	simple   bool
	print    bool
	remote   string
	headful  bool
}

func newSnapshotCmd(a *app) *cobra.Command {
	var f snapshotFlags
	cmd := &cobra.Command{
		Use:   "snapshot <url>...",
		Short: "Capture hybrid snapshots of one or more pages",
		Long: `Captures the merged DOM and accessibility outline of every URL, writes one
JSON file per page to the output directory and, when a database is configured,
stores it there too.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(cmd, a)
			return runSnapshot(cmd, a, args, f)
		},
	}
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output directory (overrides snapshot.output_dir)")
	cmd.Flags().BoolVar(&f.perFrame, "per-frame", false, "include the per-frame breakdown")
	cmd.Flags().BoolVar(&f.noPierce, "no-pierce", false, "do not descend into shadow roots")
	cmd.Flags().BoolVar(&f.simple, "simple", false, "snapshot only the top document, skipping iframes")
	cmd.Flags().BoolVarP(&f.print, "print", "p", false, "also print each combined tree to stdout")
	cmd.Flags().StringVar(&f.remote, "remote", "", "attach to a running browser at this DevTools websocket URL")
	cmd.Flags().BoolVar(&f.headful, "headful", false, "show the browser window")
	return cmd
}

// apply pushes explicitly set flags into the loaded configuration.
func (f snapshotFlags) apply(cmd *cobra.Command, a *app) {
	flags := cmd.Flags()
	if flags.Changed("out") {
		a.cfg.SetSnapshotOutputDir(f.out)
	}
	if flags.Changed("per-frame") {
		a.cfg.SetSnapshotIncludePerFrame(f.perFrame)
	}
	if flags.Changed("no-pierce") {
		a.cfg.SetSnapshotPierceShadow(!f.noPierce)
	}
	if flags.Changed("remote") {
		a.cfg.SetBrowserRemoteURL(f.remote)
	}
	if flags.Changed("headful") {
		a.cfg.SetBrowserHeadless(!f.headful)
	}
}

func captureOptions(a *app) snapshot.Options {
	sc := a.cfg.Snapshot()
	return snapshot.Options{PierceShadow: sc.PierceShadow, IncludePerFrame: sc.IncludePerFrame}
}

func runSnapshot(cmd *cobra.Command, a *app, urls []string, f snapshotFlags) error {
	ctx := cmd.Context()

	outDir, err := homedir.Expand(a.cfg.Snapshot().OutputDir)
	if err != nil {
		return fmt.Errorf("resolving output directory: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	st, closeStore, err := a.openStore(ctx, a)
	if err != nil {
		return err
	}
	defer closeStore()

	capturer, err := a.newCapturer(ctx, a)
	if err != nil {
		return err
	}
	defer closeCapturer(a, capturer)

	snaps := make([]*schemas.HybridSnapshot, len(urls))
	paths := make([]string, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.cfg.Browser().Concurrency, 1))
	for i, target := range urls {
		i, target := i, normalizeURL(target)
		g.Go(func() error {
			snap, err := capturer.Capture(gctx, CaptureRequest{URL: target, Options: captureOptions(a), Simple: f.simple})
			if err != nil {
				return err
			}
			path, err := writeSnapshot(outDir, snap)
			if err != nil {
				return err
			}
			if st != nil {
				if err := st.Save(gctx, snap); err != nil {
					return fmt.Errorf("storing snapshot of %s: %w", target, err)
				}
			}
			snaps[i], paths[i] = snap, path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, snap := range snaps {
		fmt.Fprintf(out, "%s\t%s\n", snap.URL, paths[i])
		if f.print {
			fmt.Fprintln(out, snap.CombinedTree)
		}
	}
	return nil
}

func closeCapturer(a *app, c Capturer) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		a.logger.Warn("Error while closing the browser.", zap.Error(err))
	}
}

// normalizeURL defaults scheme-less targets to https.
func normalizeURL(raw string) string {
	if strings.Contains(raw, "://") || strings.HasPrefix(raw, "about:") || strings.HasPrefix(raw, "data:") {
		return raw
	}
	return "https://" + raw
}

func snapshotFileName(snap *schemas.HybridSnapshot) string {
	host := "page"
	if u, err := url.Parse(snap.URL); err == nil && u.Host != "" {
		host = strings.NewReplacer(":", "_", "/", "_").Replace(u.Host)
	}
	return host + "-" + snap.ID + ".json"
}

func writeSnapshot(dir string, snap *schemas.HybridSnapshot) (string, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	path := filepath.Join(dir, snapshotFileName(snap))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	return path, nil
}

func readSnapshot(path string) (*schemas.HybridSnapshot, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap schemas.HybridSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", path, err)
	}
	return &snap, nil
}
