// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docwalk/internal/ledger"
)

var failedCmd = &cobra.Command{
	Use:   "failed [root]",
	Short: "List the files whose extraction failed in the last run",
	Long: `Failed reads the run ledger and prints the files that produced empty text
in the most recent run over root. Without a root the latest run over any
root is used. Use --run to pick a specific run from "docwalk history".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFailed,
}

func init() {
	failedCmd.Flags().Bool("json", false, "output as a JSON array")
	failedCmd.Flags().Int64("run", 0, "run ID (default: latest)")
	rootCmd.AddCommand(failedCmd)
}

func runFailed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	l, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	ctx := cmd.Context()
	runID, _ := cmd.Flags().GetInt64("run")

	var run *ledger.Run
	if runID > 0 {
		run, err = l.Get(ctx, runID)
	} else {
		root := ""
		if len(args) > 0 {
			if root, err = filepath.Abs(args[0]); err != nil {
				return err
			}
		}
		run, err = l.Latest(ctx, root)
	}
	if errors.Is(err, ledger.ErrNotFound) {
		return fmt.Errorf("no recorded run found; use \"docwalk run\" first")
	}
	if err != nil {
		return err
	}

	paths := run.FailedPaths
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		if paths == nil {
			paths = []string{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(paths)
	}

	if len(paths) == 0 {
		fmt.Printf("No failed files in run %d (%s).\n", run.ID, run.Root)
		return nil
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	fmt.Fprintf(os.Stderr, "%d failed file(s) in run %d\n", len(paths), run.ID)
	return nil
}
