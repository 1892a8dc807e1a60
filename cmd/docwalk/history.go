// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs",
	Long: `History lists the most recent runs from the ledger, newest first.
Use "history prune" to drop old runs.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the most recent runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to show")
	historyCmd.Flags().Bool("json", false, "output as JSON")
	historyPruneCmd.Flags().Int("keep", 50, "number of runs to keep")

	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	l, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := l.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-5s  %-20s  %-10s  %9s  %9s  %6s  %s\n",
		"ID", "Started", "Duration", "Processed", "Extracted", "Failed", "Root")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))
	for _, r := range runs {
		fmt.Fprintf(os.Stdout, "%-5d  %-20s  %-10s  %9d  %9d  %6d  %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Duration().Round(time.Second),
			r.Processed, r.Extracted, r.Failed, r.Root)
	}
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	l, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	keep, _ := cmd.Flags().GetInt("keep")
	n, err := l.Prune(cmd.Context(), keep)
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d run(s).\n", n)
	return nil
}
