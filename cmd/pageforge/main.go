// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pageforge CLI.
//
// pageforge splits a PDF into contiguous page ranges, pushes every
// range through a chain of geometric transformations in parallel
// worker processes, and merges the results back in original page
// order.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pageforge/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// exitCode lets subcommands distinguish exit statuses beyond cobra's
// binary success/failure: run sets it to 2 for a partial run.
var exitCode int

// rootCmd is the base command for the pageforge CLI.
var rootCmd = &cobra.Command{
	Use:   "pageforge",
	Short: "Parallel page transformations for PDF documents",
	Long: `pageforge applies a chain of geometric page transformations (duplicate,
note margin, side-by-side merge, resize) to a PDF. The page range is split
into contiguous chunks, each chunk is processed in its own worker process,
and the per-chunk results are merged back in original page order.

A chunk failure never aborts its siblings: the run finishes, reports every
failed range, and exits with status 2 so an incomplete output is never
mistaken for a complete one.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./pageforge.yaml or ~/.config/pageforge/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pageforge")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pageforge"))
		}
	}

	viper.SetEnvPrefix("PAGEFORGE")
	viper.AutomaticEnv()

	viper.SetDefault("log_level", "info")
	viper.SetDefault("run.workers", runtime.NumCPU())
	viper.SetDefault("run.isolation", "process")
	viper.SetDefault("fetch.timeout", 60*time.Second)
	viper.SetDefault("fetch.user_agent", "pageforge/0.1")
	viper.SetDefault("fetch.max_retries", 5)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the diagnostics logger from flags and config.
func newLogger() zerolog.Logger {
	level := viper.GetString("log_level")
	if v, _ := rootCmd.PersistentFlags().GetBool("verbose"); v {
		level = "debug"
	}
	if q, _ := rootCmd.PersistentFlags().GetBool("quiet"); q {
		level = "error"
	}
	return logging.New(level, os.Stderr)
}

// historyPath resolves the run-history database location.
func historyPath() string {
	if p := viper.GetString("ledger.path"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".pageforge", "history.db")
	}
	return filepath.Join(home, ".pageforge", "history.db")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}
