// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docwalk/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run [root]",
	Short: "Extract text from every document under root",
	Long: `Run walks root (default: walk.root, then the working directory), extracts
text from every candidate that is not already cached, and writes one record
per processed file.

Records go to stdout as JSON lines unless --out names a file; a .json or
.yaml extension selects that format. The run summary is printed to stderr.

Orphaned cache entries are only counted by default. Pass --reconcile delete
to remove them, or --reconcile skip to leave the cache untouched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("reconcile", string(types.ReconcileDryRun), "orphaned cache entries: dry-run, delete or skip")
	runCmd.Flags().StringP("out", "o", "-", "write records to this file (.jsonl, .json, .yaml); - for stdout")
	runCmd.Flags().String("backend", "", "primary extractor: tika, markitdown or native")
	runCmd.Flags().Bool("no-ocr", false, "disable the OCR fallback")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	applyExtractionFlags(cmd, &cfg)
	mode, _ := cmd.Flags().GetString("reconcile")
	out, _ := cmd.Flags().GetString("out")

	ctx, stop := signalContext()
	defer stop()

	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	res, runErr := p.run(ctx, types.ReconcileMode(mode))
	if res == nil {
		return runErr
	}
	if err := writeRecords(out, res.Records); err != nil {
		return err
	}
	printSummary(os.Stderr, res.Summary)
	if runErr != nil {
		return runErr
	}
	if out != "-" {
		fmt.Fprintf(os.Stderr, "Wrote %d records to %s\n", len(res.Records), out)
	}
	return nil
}

// applyExtractionFlags overrides extraction settings given on the command line.
func applyExtractionFlags(cmd *cobra.Command, cfg *types.Config) {
	if cmd.Flags().Changed("backend") {
		b, _ := cmd.Flags().GetString("backend")
		cfg.Extraction.Backend = types.ExtractionBackend(b)
	}
	if noOCR, _ := cmd.Flags().GetBool("no-ocr"); noOCR {
		cfg.Extraction.OCR = false
	}
}
