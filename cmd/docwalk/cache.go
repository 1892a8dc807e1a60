// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docwalk/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clean the extraction cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many entries the cache holds",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean [root]",
	Short: "Remove cache entries no current file produces",
	Long: `Clean fingerprints every candidate under root and removes cache entries
that none of them produce. Nothing is extracted. With --dry-run the orphans
are only counted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCacheClean,
}

func init() {
	cacheStatsCmd.Flags().Bool("json", false, "output as JSON")
	cacheCleanCmd.Flags().Bool("dry-run", false, "count orphaned entries without removing them")

	cacheCmd.AddCommand(cacheStatsCmd, cacheCleanCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	c, err := cache.NewOS(cfg.Walk.CacheDir)
	if err != nil {
		return err
	}
	st, err := c.Stats()
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	fmt.Printf("Cache:    %s\n", c.Dir())
	fmt.Printf("Entries:  %d\n", st.Entries)
	fmt.Printf("Empty:    %d\n", st.Empty)
	if st.TempFiles > 0 {
		fmt.Printf("Temp:     %d unfinished writes\n", st.TempFiles)
	}
	fmt.Printf("Size:     %.1f MiB\n", float64(st.Bytes)/(1<<20))
	return nil
}

func runCacheClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	ctx, stop := signalContext()
	defer stop()

	p, err := newOfflinePipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	n, err := p.walker.Clean(ctx, dryRun)
	if err != nil {
		return err
	}
	if dryRun {
		fmt.Printf("%d orphaned cache entries (dry run, nothing removed).\n", n)
	} else {
		fmt.Printf("Removed %d orphaned cache entries.\n", n)
	}
	return nil
}
