// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"autoswarm/internal/config"
	"autoswarm/internal/designer"
	"autoswarm/internal/engine"
	"autoswarm/internal/llm"
	"autoswarm/internal/metrics"
	"autoswarm/internal/telemetry"
	"autoswarm/internal/tools"
	"autoswarm/pkg/dag"
	"autoswarm/pkg/store"
	"autoswarm/pkg/types"
)

var (
	outputPath  string
	modelFlag   string
	strictFlag  bool
	showContext bool
	contextOut  string
	pingFlag    bool

	designCmd = &cobra.Command{
		Use:   "design [task]",
		Short: "Plan a task as a team of agents and write the design as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDesign,
	}

	refineCmd = &cobra.Command{
		Use:   "refine [design.json] [request]",
		Short: "Rework an existing design according to a request",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runRefine,
	}

	batchesCmd = &cobra.Command{
		Use:   "batches [design.json]",
		Short: "Print the execution batches of a design",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatches,
	}

	runCmd = &cobra.Command{
		Use:   "run [design.json]",
		Short: "Execute a design. SIGINT aborts after the current batch, SIGUSR1 toggles pause",
		Args:  cobra.ExactArgs(1),
		RunE:  runExecute,
	}

	modelsCmd = &cobra.Command{
		Use:   "models",
		Short: "List known models, optionally checking the API key",
		Args:  cobra.NoArgs,
		RunE:  runModels,
	}

	toolsCmd = &cobra.Command{
		Use:   "tools",
		Short: "List built-in and MCP tools",
		Args:  cobra.NoArgs,
		RunE:  runTools,
	}

	toolsCallCmd = &cobra.Command{
		Use:   "call [name] [json-args]",
		Short: "Execute a tool with JSON arguments",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runToolCall,
	}
)

func init() {
	designCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the design to this file (default stdout)")
	designCmd.Flags().StringVar(&modelFlag, "model", "", "model for the designer")

	refineCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the design to this file (default stdout)")
	refineCmd.Flags().StringVar(&modelFlag, "model", "", "model for the designer")

	batchesCmd.Flags().BoolVar(&strictFlag, "strict", false, "fail on cycles and dangling edges")

	runCmd.Flags().StringVar(&modelFlag, "model", "", "model for every agent, overriding the design")
	runCmd.Flags().BoolVar(&strictFlag, "strict", false, "fail on cycles and dangling edges")
	runCmd.Flags().BoolVar(&showContext, "show-context", false, "print context store updates")
	runCmd.Flags().StringVar(&contextOut, "context-out", "", "write the final context store as JSON to this file")

	modelsCmd.Flags().BoolVar(&pingFlag, "ping", false, "check the API key against the provider")

	toolsCmd.AddCommand(toolsCallCmd)
	rootCmd.AddCommand(toolsCmd)
}

// newCompleter builds the configured collaborator backend.
func newCompleter(cfg *config.Config) (llm.Completer, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOpencode:
		return llm.NewOpencodeCompleter(cfg.LLM.OpencodeURL, slog.Default()), nil
	default:
		client, err := newOpenRouter(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func newOpenRouter(cfg *config.Config) (*llm.OpenRouterClient, error) {
	return llm.NewOpenRouterClient(llm.ClientConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Referer: cfg.LLM.Referer,
		Title:   cfg.LLM.Title,
		Timeout: cfg.Timeout(),
		Logger:  slog.Default(),
	})
}

// newToolRegistry registers the built-ins over st and connects every
// enabled MCP server. Unreachable servers are logged and skipped.
func newToolRegistry(ctx context.Context, st *store.Store) (*tools.Registry, error) {
	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry, st, cfg.Project.WorkingDirectory); err != nil {
		return nil, err
	}

	client := tools.NewMCPClient(registry, slog.Default())
	for _, server := range cfg.EnabledServers() {
		if _, err := client.Connect(ctx, server); err != nil {
			slog.Warn("Skipping MCP server", "server_id", server.ID, "error", err)
		}
	}
	return registry, nil
}

// externalTools are the registered tools that do not come from this process.
func externalTools(registry *tools.Registry) []tools.Tool {
	var out []tools.Tool
	for _, t := range registry.List() {
		if t.ServerID != tools.BuiltinServerID {
			out = append(out, t)
		}
	}
	return out
}

func newDesigner(cmd *cobra.Command) (*designer.Designer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	completer, err := newCompleter(cfg)
	if err != nil {
		return nil, err
	}

	model := cfg.DesignerModel()
	if modelFlag != "" {
		model = modelFlag
	}

	out := cmd.ErrOrStderr()
	return designer.New(completer, designer.Options{
		Model:       model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Logger:      slog.Default(),
		OnProgress:  func(m string) { fmt.Fprintln(out, m) },
	}), nil
}

func runDesign(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := newDesigner(cmd)
	if err != nil {
		return err
	}
	registry, err := newToolRegistry(ctx, store.New())
	if err != nil {
		return err
	}

	design, err := d.Design(ctx, strings.Join(args, " "), externalTools(registry))
	if err != nil {
		return err
	}
	return saveDesign(cmd.OutOrStdout(), outputPath, design)
}

func runRefine(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	current, err := loadDesign(args[0])
	if err != nil {
		return err
	}
	d, err := newDesigner(cmd)
	if err != nil {
		return err
	}
	registry, err := newToolRegistry(ctx, store.New())
	if err != nil {
		return err
	}

	refined, err := d.Refine(ctx, current, strings.Join(args[1:], " "), externalTools(registry))
	if err != nil {
		return err
	}
	return saveDesign(cmd.OutOrStdout(), outputPath, refined)
}

func runBatches(cmd *cobra.Command, args []string) error {
	design, err := loadDesign(args[0])
	if err != nil {
		return err
	}
	if err := design.Validate(); err != nil {
		return err
	}

	topo := design.Topology
	var batches [][]string
	if strictFlag || cfg.Engine.StrictBatching {
		batches, err = dag.BuildBatchesStrict(topo.Nodes, topo.Edges)
		if err != nil {
			return err
		}
	} else {
		batches = dag.BuildBatches(topo.Nodes, topo.Edges)
	}

	nodes := topo.NodeMap()
	out := cmd.OutOrStdout()
	for i, batch := range batches {
		names := make([]string, len(batch))
		for j, id := range batch {
			names[j] = fmt.Sprintf("%s (%s)", nodes[id].Name, id)
		}
		fmt.Fprintf(out, "Batch %d: %s\n", i+1, strings.Join(names, ", "))
	}

	if len(topo.ParallelGroups) > 0 {
		if err := dag.Verify(topo.Nodes, topo.Edges, topo.ParallelGroups); err != nil {
			fmt.Fprintf(out, "\nStored parallel groups are stale: %v\n", err)
		}
	}
	return nil
}

func runExecute(cmd *cobra.Command, args []string) error {
	design, err := loadDesign(args[0])
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	completer, err := newCompleter(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.Telemetry.Enabled {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.TracingConfig(version))
		if err != nil {
			return err
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				slog.Warn("Tracer shutdown failed", "error", err)
			}
		}()
	}

	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(reg)
	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "addr", addr, "error", err)
			}
		}()
		defer srv.Close()
	}

	out := cmd.OutOrStdout()
	eng := engine.New(completer, newConsoleListener(out, design, showContext), engine.Options{
		Model:            modelFlag,
		Temperature:      cfg.LLM.Temperature,
		MaxTokens:        cfg.LLM.MaxTokens,
		DisableStreaming: !cfg.StreamEnabled(),
		StrictBatching:   strictFlag || cfg.Engine.StrictBatching,
		Logger:           slog.Default(),
		Metrics:          recorder,
	})

	stopSignals := handleSignals(out, eng, cancel)
	defer stopSignals()

	fmt.Fprintf(out, "Running %q with %d agents\n", design.TaskDescription, len(design.Topology.Nodes))
	runErr := eng.Execute(ctx, design)

	printSummary(out, design, eng.NodeStates(), eng.Context())
	if contextOut != "" {
		if err := writeContext(contextOut, eng.Context()); err != nil {
			return err
		}
	}
	return runErr
}

// handleSignals maps SIGINT to Abort (a second SIGINT cancels the run) and
// SIGUSR1 to toggling pause.
func handleSignals(out io.Writer, eng *engine.Engine, cancel context.CancelFunc) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGUSR1)
	done := make(chan struct{})

	go func() {
		interrupts := 0
		for {
			select {
			case <-done:
				return
			case sig := <-sigs:
				switch sig {
				case syscall.SIGUSR1:
					if eng.Status() == types.ExecutionStatusPaused {
						fmt.Fprintln(out, "Resuming")
						eng.Resume()
					} else {
						fmt.Fprintln(out, "Pausing after the current batch")
						eng.Pause()
					}
				default:
					interrupts++
					if interrupts > 1 {
						fmt.Fprintln(out, "Cancelling")
						cancel()
						continue
					}
					fmt.Fprintln(out, "Aborting after the current batch (interrupt again to cancel)")
					eng.Abort()
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func writeContext(path string, entries map[string]types.ContextEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write context: %w", err)
	}
	return nil
}

func runModels(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, m := range llm.AvailableModels {
		marker := " "
		if m.ID == cfg.Model.Default {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-32s %s\n", marker, m.ID, m.Name)
	}

	if !pingFlag {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.LLM.Provider != config.ProviderOpenRouter {
		return fmt.Errorf("ping is only supported for the %s provider", config.ProviderOpenRouter)
	}

	client, err := newOpenRouter(cfg)
	if err != nil {
		return err
	}
	count, err := client.Ping(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nAPI key OK, %d models available\n", count)
	return nil
}

func runTools(cmd *cobra.Command, args []string) error {
	registry, err := newToolRegistry(cmd.Context(), store.New())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, t := range registry.List() {
		fmt.Fprintf(out, "%-20s %-10s %s\n", t.Name, t.ServerID, t.Description)
	}
	return nil
}

func runToolCall(cmd *cobra.Command, args []string) error {
	registry, err := newToolRegistry(cmd.Context(), store.New())
	if err != nil {
		return err
	}

	toolArgs := map[string]any{}
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
			return fmt.Errorf("tool arguments must be a JSON object: %w", err)
		}
	}

	result, err := registry.Execute(cmd.Context(), args[0], toolArgs)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
