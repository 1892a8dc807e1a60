// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docwalk/internal/walker"
	"github.com/pdiddy/docwalk/internal/watch"
	"github.com/pdiddy/docwalk/pkg/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch [root]",
	Short: "Run once, then re-run whenever documents under root change",
	Long: `Watch performs a full run and then watches root for changes. Each burst
of changes, after a quiet period of --debounce, triggers another run; cached
files are not extracted again, so only new and modified documents cost an
extraction. Editing .gitignore or .docwalkignore at the root reloads the
ignore rules.

Records of every run are written to --out when it is set. Stop with Ctrl-C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("reconcile", string(types.ReconcileDryRun), "orphaned cache entries: dry-run, delete or skip")
	watchCmd.Flags().StringP("out", "o", "", "rewrite records to this file after every run")
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before a batch of changes triggers a run")
	watchCmd.Flags().String("backend", "", "primary extractor: tika, markitdown or native")
	watchCmd.Flags().Bool("no-ocr", false, "disable the OCR fallback")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	applyExtractionFlags(cmd, &cfg)
	modeFlag, _ := cmd.Flags().GetString("reconcile")
	mode := types.ReconcileMode(modeFlag)
	out, _ := cmd.Flags().GetString("out")
	debounce, _ := cmd.Flags().GetDuration("debounce")

	ctx, stop := signalContext()
	defer stop()

	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	rerun := func(ctx context.Context) error {
		res, err := p.run(ctx, mode)
		if res != nil && out != "" {
			if werr := writeRecords(out, res.Records); werr != nil {
				return werr
			}
		}
		return err
	}

	if err := rerun(ctx); err != nil {
		return err
	}

	own := []string{out}
	if l := cfg.Ledger.Path; l != "" {
		own = append(own, l, l+"-wal", l+"-shm", l+"-journal")
	}
	w, err := watch.New(p.walker.Root(), p.walker.Matcher(), debounce, logger,
		watch.WithFilter(watchFilter(p.walker, own...)))
	if err != nil {
		return err
	}
	defer w.Close()
	logger.Info("watching for changes", "root", p.walker.Root(), "debounce", debounce)

	err = w.Serve(ctx, func(ctx context.Context, batch []watch.Event) error {
		logger.Info("changes detected", "events", len(batch))
		err := rerun(ctx)
		if errors.Is(err, walker.ErrRunInProgress) {
			return nil
		}
		return err
	})
	if errors.Is(err, context.Canceled) {
		printSummaryOnExit(p)
		return nil
	}
	return err
}

// watchFilter keeps events for files a run could extract, except the
// files docwalk itself writes, which may sit under the root.
func watchFilter(w *walker.Walker, own ...string) func(path string) bool {
	skip := make(map[string]struct{}, len(own))
	for _, p := range own {
		if p == "" || p == "-" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			skip[abs] = struct{}{}
		}
	}
	return func(path string) bool {
		if _, ok := skip[filepath.Clean(path)]; ok {
			return false
		}
		return w.AllowedExtension(path)
	}
}

// printSummaryOnExit reports the last recorded run when watch stops.
func printSummaryOnExit(p *pipeline) {
	if p.ledger == nil {
		return
	}
	run, err := p.ledger.Latest(context.Background(), p.walker.Root())
	if err != nil {
		return
	}
	printSummary(os.Stderr, run.RunSummary)
}
