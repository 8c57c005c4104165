package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabvault/tabvault/internal/store"
)

// collectionRow is the JSON output schema for one row of the collections command.
type collectionRow struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	IsActive    bool     `json:"is_active"`
	Tags        []string `json:"tags,omitempty"`
	TabCount    int64    `json:"tab_count"`
	FolderCount int64    `json:"folder_count"`
	CreatedAt   string   `json:"created_at"`
}

func newCollectionsCmd() *cobra.Command {
	var (
		flagTag    string
		flagActive bool
	)

	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCollections(cmd, flagTag, flagActive)
		},
	}

	cmd.Flags().StringVar(&flagTag, "tag", "", "only collections carrying this tag")
	cmd.Flags().BoolVar(&flagActive, "active", false, "only collections bound to a live window")

	return cmd
}

func runCollections(cmd *cobra.Command, tag string, activeOnly bool) error {
	ctx := cmd.Context()
	logger := buildLogger()

	st := store.Open(loadedCfg.Database.Path, logger)
	defer st.Close()

	var (
		collections []*store.Collection
		err         error
	)

	switch {
	case tag != "":
		collections, err = st.CollectionsByTag(ctx, tag)
	case activeOnly:
		collections, err = st.CollectionsByActive(ctx, true)
	default:
		collections, err = st.ListCollections(ctx)
	}

	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}

	rows := make([]collectionRow, 0, len(collections))
	for _, c := range collections {
		rows = append(rows, collectionRow{
			ID:          c.ID,
			Name:        c.Name,
			IsActive:    c.IsActive,
			Tags:        c.Tags,
			TabCount:    c.TabCount,
			FolderCount: c.FolderCount,
			CreatedAt:   formatTime(time.Unix(0, c.CreatedAt)),
		})
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		statusf("No collections.\n")

		return nil
	}

	fmt.Printf("%-38s %-25s %-6s %5s %7s  %-20s %s\n",
		"ID", "NAME", "STATE", "TABS", "FOLDERS", "TAGS", "CREATED")

	for _, r := range rows {
		state := "saved"
		if r.IsActive {
			state = "active"
		}

		fmt.Printf("%-38s %-25s %-6s %5d %7d  %-20s %s\n",
			r.ID, truncate(r.Name, 25), state, r.TabCount, r.FolderCount,
			truncate(strings.Join(r.Tags, ","), 20), r.CreatedAt)
	}

	return nil
}
