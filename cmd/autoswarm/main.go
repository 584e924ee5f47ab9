// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"autoswarm/internal/config"
)

const version = "0.1.0"

var (
	configPath string
	verbose    bool

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "autoswarm",
		Short: "Design and run pipelines of collaborating LLM agents",
		Long: `autoswarm plans a task as a team of LLM agents connected in a
dependency graph, then runs the graph batch by batch with every agent of a
batch working concurrently over a shared context.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd.ErrOrStderr())
			if cmd.Name() == "version" {
				return nil
			}

			loaded, err := config.LoadOrDefault(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			cfg = loaded
			return nil
		},
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default .autoswarm/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(designCmd, refineCmd, batchesCmd, runCmd, modelsCmd, versionCmd)
}

// setupLogging installs the default slog handler: JSON when LOG_FORMAT=json,
// text otherwise.
func setupLogging(w io.Writer) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "autoswarm version %s\n", version)
	},
}
