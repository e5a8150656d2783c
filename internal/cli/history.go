/*
PURPOSE:
  Defines the 'history' subcommand.
  Lists runs recorded in the history database, or prints one in full.

REQUIREMENTS:
  User-specified:
  - Compare runs across sessions.

  Implementation-discovered:
  - Needs output.history_db (or --history-db) to be set.

ARCHITECTURE INTEGRATION:
  - Calls: internal/history.Store
  - Uses: internal/output.Console

ERROR HANDLING:
  - Returns error if no database is configured or the run ID is unknown.

IMPLEMENTATION RULES:
  - Read-only: never writes to the database.

USAGE:
  vllm-bench history --limit 10
  vllm-bench history show <run-id>

SELF-HEALING INSTRUCTIONS:
  - If columns are missing, check the schema in internal/history/store.go.

RELATED FILES:
  - internal/history/store.go

MAINTENANCE:
  - Update when the stored columns change.
*/

package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/daryltucker/vllm-bench/internal/history"
	"github.com/daryltucker/vllm-bench/internal/output"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded benchmark runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTARTED\tLABEL\tMODEL\tREQ\tCONC\tWALL\tMEAN\tMEDIAN\tRPS\tSUCCESS")
		for _, e := range entries {
			label := e.Label
			if e.Aborted {
				label += " (aborted)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%.2f\t%.1f%%\n",
				e.ID, e.StartedAt.Format("2006-01-02 15:04:05"), label, e.Model,
				e.Requested, e.Concurrency,
				output.FormatDuration(e.WallTime), output.FormatDuration(e.MeanLatency),
				output.FormatDuration(e.Median), e.Throughput, e.SuccessRate*100)
		}
		return tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print one recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := store.Get(cmd.Context(), args[0])
		if errors.Is(err, history.ErrNotFound) {
			return fmt.Errorf("no run with id %s", args[0])
		}
		if err != nil {
			return err
		}
		output.NewConsole(os.Stdout).PrintResult(res)
		return nil
	},
}

func openHistory() (*history.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Output.HistoryDB == "" {
		return nil, errors.New("no history database configured (set output.history_db or --history-db)")
	}
	return history.Open(cfg.Output.HistoryDB)
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)

	historyCmd.PersistentFlags().StringVar(&historyDBOverride, "history-db", "", "SQLite file with recorded runs (overrides config)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Number of runs to list (0 = all)")
}
