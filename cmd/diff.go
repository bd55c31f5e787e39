package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/domsnap/internal/browser/snapshot"
	"github.com/xkilldash9x/domsnap/internal/store"
)

func newDiffCmd(a *app) *cobra.Command {
	var latest bool
	cmd := &cobra.Command{
		Use:   "diff <old.json> <new.json>",
		Short: "Print the outline lines that are new in a later snapshot",
		Long: `Compares the combined trees of two snapshot files and prints the lines of the
newer one that do not appear in the older one.

With --latest the first argument is a URL; its most recently stored snapshot
is used as the old side.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			next, err := readSnapshot(args[1])
			if err != nil {
				return err
			}

			var prevTree string
			if latest {
				st, closeStore, err := a.openStore(ctx, a)
				if err != nil {
					return err
				}
				defer closeStore()
				if st == nil {
					return errors.New("--latest needs database.url to be configured")
				}
				prev, err := st.LatestByURL(ctx, normalizeURL(args[0]))
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no stored snapshot for %s", args[0])
				}
				if err != nil {
					return err
				}
				prevTree = prev.CombinedTree
			} else {
				prev, err := readSnapshot(args[0])
				if err != nil {
					return err
				}
				prevTree = prev.CombinedTree
			}

			diff := snapshot.DiffCombinedTrees(prevTree, next.CombinedTree)
			if strings.TrimSpace(diff) == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no changes")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), diff)
			return nil
		},
	}
	cmd.Flags().BoolVar(&latest, "latest", false, "compare against the latest stored snapshot of the URL given first")
	return cmd
}
