package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/domsnap/internal/browser/snapshot"
	"github.com/xkilldash9x/domsnap/internal/store"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		interval time.Duration
		count    int
		simple   bool
	)
	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Re-capture a page periodically and print what changed",
		Long: `Captures the page every interval and prints the outline lines that were not
present in the previous capture. When a database is configured every capture is
stored, and the latest stored snapshot seeds the first comparison.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("interval") {
				interval = a.cfg.Snapshot().WatchInterval
			}
			if interval <= 0 {
				return fmt.Errorf("interval must be positive, got %s", interval)
			}
			return runWatch(cmd, a, normalizeURL(args[0]), interval, count, simple)
		},
	}
	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "time between captures (default snapshot.watch_interval)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "stop after this many captures (0 runs until interrupted)")
	cmd.Flags().BoolVar(&simple, "simple", false, "snapshot only the top document, skipping iframes")
	return cmd
}

func runWatch(cmd *cobra.Command, a *app, target string, interval time.Duration, count int, simple bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

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

	var prev string
	havePrev := false
	if st != nil {
		latest, err := st.LatestByURL(ctx, target)
		switch {
		case err == nil:
			prev, havePrev = latest.CombinedTree, true
		case !errors.Is(err, store.ErrNotFound):
			a.logger.Warn("Could not load the previous snapshot.", zap.Error(err))
		}
	}

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	for n := 0; count <= 0 || n < count; n++ {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		snap, err := capturer.Capture(ctx, CaptureRequest{URL: target, Options: captureOptions(a), Simple: simple})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.logger.Warn("Capture failed, will retry.", zap.String("url", target), zap.Error(err))
			continue
		}

		stamp := time.Now().Format(time.RFC3339)
		switch {
		case !havePrev:
			fmt.Fprintf(out, "[%s] %s: baseline %s\n", stamp, target, snap.ID)
		default:
			if diff := snapshot.DiffCombinedTrees(prev, snap.CombinedTree); diff != "" {
				fmt.Fprintf(out, "[%s] %s: changed\n%s\n", stamp, target, diff)
			} else {
				fmt.Fprintf(out, "[%s] %s: no changes\n", stamp, target)
			}
		}
		prev, havePrev = snap.CombinedTree, true

		if st != nil {
			if err := st.Save(ctx, snap); err != nil {
				a.logger.Warn("Failed to store snapshot.", zap.String("snapshot_id", snap.ID), zap.Error(err))
			}
		}
	}
	return nil
}
