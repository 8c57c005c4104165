package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tabvault/tabvault/internal/store"
)

func newFlushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush [collection-id]",
		Short: "Recompute stored tab and folder counts",
		Long: "Recounts the persisted tab and folder totals of one collection, or of\n" +
			"every collection when no id is given. Useful after manual database edits.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlush(cmd, args)
		},
	}
}

func runFlush(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := buildLogger()

	st := store.Open(loadedCfg.Database.Path, logger)
	defer st.Close()

	if len(args) == 1 {
		id := args[0]

		c, err := st.GetCollection(ctx, id)
		if err != nil {
			return fmt.Errorf("loading collection %s: %w", id, err)
		}

		if c == nil {
			return fmt.Errorf("collection %s: %w", id, store.ErrNotFound)
		}

		if err := st.RecountCollectionTotals(ctx, id); err != nil {
			return fmt.Errorf("recounting collection %s: %w", id, err)
		}

		statusf("Recounted %s\n", id)

		return nil
	}

	collections, err := st.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}

	for _, c := range collections {
		if err := st.RecountCollectionTotals(ctx, c.ID); err != nil {
			return fmt.Errorf("recounting collection %s: %w", c.ID, err)
		}
	}

	statusf("Recounted %d collections\n", len(collections))

	return nil
}
