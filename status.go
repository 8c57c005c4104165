package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabvault/tabvault/internal/store"
)

// statusCollection is the JSON output schema for one row of the status command.
type statusCollection struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	WindowID        int64  `json:"window_id"`
	TrackingEnabled bool   `json:"tracking_enabled"`
	DebounceMs      int64  `json:"debounce_ms"`
	TabCount        int64  `json:"tab_count"`
	FolderCount     int64  `json:"folder_count"`
	LastAccessed    string `json:"last_accessed"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync status of active collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd)
		},
	}
}

func runStatus(cmd *cobra.Command) error {
	ctx := cmd.Context()
	logger := buildLogger()

	st := store.Open(loadedCfg.Database.Path, logger)
	defer st.Close()

	active, err := st.CollectionsByActive(ctx, true)
	if err != nil {
		return fmt.Errorf("listing active collections: %w", err)
	}

	rows := make([]statusCollection, 0, len(active))

	for _, c := range active {
		row := statusCollection{
			ID:              c.ID,
			Name:            c.Name,
			TrackingEnabled: c.TrackingEnabled,
			DebounceMs:      c.SyncDebounceMs,
			TabCount:        c.TabCount,
			FolderCount:     c.FolderCount,
			LastAccessed:    formatNanoTime(c.LastAccessed),
		}

		if c.WindowID != nil {
			row.WindowID = *c.WindowID
		}

		rows = append(rows, row)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		statusf("No active collections.\n")

		return nil
	}

	fmt.Printf("%-38s %-25s %8s %9s %5s %7s  %s\n",
		"ID", "NAME", "WINDOW", "TRACKING", "TABS", "FOLDERS", "LAST ACCESSED")

	for _, r := range rows {
		tracking := "on"
		if !r.TrackingEnabled {
			tracking = "off"
		}

		fmt.Printf("%-38s %-25s %8d %9s %5d %7d  %s\n",
			r.ID, truncate(r.Name, 25), r.WindowID, tracking,
			r.TabCount, r.FolderCount, r.LastAccessed)
	}

	return nil
}

// formatNanoTime renders a Unix-nanosecond timestamp for display. Zero means
// the event has never happened.
func formatNanoTime(ns int64) string {
	if ns == 0 {
		return "never"
	}

	return formatTime(time.Unix(0, ns))
}
