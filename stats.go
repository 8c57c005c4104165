package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tabvault/tabvault/internal/store"
)

// statsOutput is the JSON output schema for the stats command.
type statsOutput struct {
	ActiveCollections int64            `json:"active_collections"`
	SavedCollections  int64            `json:"saved_collections"`
	Folders           int64            `json:"folders"`
	Tabs              int64            `json:"tabs"`
	TasksByStatus     map[string]int64 `json:"tasks_by_status"`
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate storage counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd)
		},
	}
}

func runStats(cmd *cobra.Command) error {
	ctx := cmd.Context()
	logger := buildLogger()

	st := store.Open(loadedCfg.Database.Path, logger)
	defer st.Close()

	stats, err := st.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}

	out := statsOutput{
		ActiveCollections: stats.ActiveCollections,
		SavedCollections:  stats.SavedCollections,
		Folders:           stats.Folders,
		Tabs:              stats.Tabs,
		TasksByStatus:     stats.TasksByStatus,
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	fmt.Printf("Collections: %d active, %d saved\n",
		out.ActiveCollections, out.SavedCollections)
	fmt.Printf("Folders:     %d\n", out.Folders)
	fmt.Printf("Tabs:        %d\n", out.Tabs)

	for _, status := range []string{store.TaskStatusOpen, store.TaskStatusDone} {
		if n, ok := out.TasksByStatus[status]; ok {
			fmt.Printf("Tasks %-6s %d\n", status+":", n)
		}
	}

	return nil
}
