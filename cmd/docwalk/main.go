// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the docwalk CLI.
//
// docwalk walks a directory tree, extracts text from office documents and
// PDFs, and caches the result by file fingerprint so unchanged files are
// never extracted twice.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docwalk/internal/secrets"
	"github.com/pdiddy/docwalk/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// logger is configured in PersistentPreRunE.
var logger = slog.Default()

// rootCmd is the base command for the docwalk CLI.
var rootCmd = &cobra.Command{
	Use:   "docwalk",
	Short: "Extract and cache text from the documents under a directory",
	Long: `docwalk discovers documents under a root directory, extracts their text
through Apache Tika, a markitdown container, or a native PDF reader, falls
back to OCR when extraction comes back empty, and caches every result by
content fingerprint.

Subcommands: run, watch, failed, history, cache.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(secrets.DefaultDir)
		if err != nil {
			return err
		}
		loadedSecrets = s

		logger = setupLogger(viper.GetString("log.level"), viper.GetString("log.file"))
		slog.SetDefault(logger)
		if len(s) > 0 {
			logger.Debug("loaded secrets", "keys", secrets.Names(s))
		}
		if f := viper.ConfigFileUsed(); f != "" {
			logger.Debug("using config file", "path", f)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./docwalk.yaml or ~/.config/docwalk/docwalk.yaml)")
	pf.String("cache-dir", "", "directory holding cached extractions")
	pf.String("ledger", "", "run history database (empty string disables it)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-file", "", "write logs to this file instead of stderr")

	_ = viper.BindPFlag("walk.cache_dir", pf.Lookup("cache-dir"))
	_ = viper.BindPFlag("ledger.path", pf.Lookup("ledger"))
	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log.file", pf.Lookup("log-file"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("docwalk")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "docwalk"))
		}
	}

	viper.SetEnvPrefix("DOCWALK")
	viper.SetEnvKeyReplacer(envKeyReplacer())
	viper.AutomaticEnv()
	setDefaults(types.DefaultConfig())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Warning: reading config:", err)
		}
	}
}

// envKeyReplacer maps nested keys to environment names:
// walk.cache_dir becomes DOCWALK_WALK_CACHE_DIR.
func envKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// setDefaults registers every key so environment variables reach
// Unmarshal even when no config file sets them.
func setDefaults(d types.Config) {
	viper.SetDefault("walk.root", d.Walk.Root)
	viper.SetDefault("walk.cache_dir", d.Walk.CacheDir)
	viper.SetDefault("walk.extensions", d.Walk.Extensions)
	viper.SetDefault("walk.min_file_size", d.Walk.MinFileSize)
	viper.SetDefault("walk.max_file_size", d.Walk.MaxFileSize)
	viper.SetDefault("walk.exclude", d.Walk.Exclude)
	viper.SetDefault("walk.location", d.Walk.Location)
	viper.SetDefault("walk.chunk_size", d.Walk.ChunkSize)
	viper.SetDefault("walk.chunk_pause", d.Walk.ChunkPause)

	viper.SetDefault("limits.max_memory_percent", d.Limits.MaxMemoryPercent)
	viper.SetDefault("limits.max_cpu_percent", d.Limits.MaxCPUPercent)
	viper.SetDefault("limits.max_concurrent_extractions", d.Limits.MaxConcurrentExtractions)
	viper.SetDefault("limits.max_in_flight_files", d.Limits.MaxInFlightFiles)
	viper.SetDefault("limits.max_open_files", d.Limits.MaxOpenFiles)
	viper.SetDefault("limits.admit_timeout", d.Limits.AdmitTimeout)
	viper.SetDefault("limits.poll_interval", d.Limits.PollInterval)

	viper.SetDefault("extraction.backend", string(d.Extraction.Backend))
	viper.SetDefault("extraction.tika_url", d.Extraction.TikaURL)
	viper.SetDefault("extraction.timeout", d.Extraction.Timeout)
	viper.SetDefault("extraction.max_retries", d.Extraction.MaxRetries)
	viper.SetDefault("extraction.ocr", d.Extraction.OCR)
	viper.SetDefault("extraction.ocr_language", d.Extraction.OCRLanguage)
	viper.SetDefault("extraction.ocr_dpi", d.Extraction.OCRDPI)

	viper.SetDefault("ledger.path", d.Ledger.Path)

	level := d.Log.Level
	if strings.EqualFold(viper.GetString("env"), "development") {
		level = "debug"
	}
	viper.SetDefault("log.level", level)
	viper.SetDefault("log.file", d.Log.File)
}

// loadConfig decodes the merged configuration. A root given on the
// command line overrides walk.root; with neither, the working directory
// is walked.
func loadConfig(args []string) (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if len(args) > 0 {
		cfg.Walk.Root = args[0]
	}
	if cfg.Walk.Root == "" {
		cfg.Walk.Root = "."
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
