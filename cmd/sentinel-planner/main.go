// Package main provides the sentinel-planner binary: a CLI that decomposes
// natural-language queries into executable retrieval plans.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sentinelsearch/sentinel-planner/internal/bus"
	"github.com/sentinelsearch/sentinel-planner/internal/config"
	"github.com/sentinelsearch/sentinel-planner/internal/llm"
	"github.com/sentinelsearch/sentinel-planner/internal/pkg/logger"
	"github.com/sentinelsearch/sentinel-planner/internal/planner"
	"github.com/sentinelsearch/sentinel-planner/internal/qdrant"
	"github.com/sentinelsearch/sentinel-planner/internal/schema"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sentinel-planner",
		Short: "Sentinel Planner - query decomposition for evidence retrieval",
		Long: `Sentinel Planner decomposes natural-language queries into executable
retrieval plans: sub-queries, filters, graph traversals, and result
operations, with assumptions validated against live data.

Examples:
  sentinel-planner plan "compare Alpha and Beta"
  sentinel-planner plan --mode graph_traversal "what is related to Billing?"
  sentinel-planner plan --no-model "total revenue by region"`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(planCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [query]",
		Short: "Decompose a query into an execution plan",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPlan,
	}

	cmd.Flags().String("mode", "", "execution mode (embedding_only, traditional, hybrid, graph_traversal, agentic)")
	cmd.Flags().Bool("no-model", false, "pattern-based decomposition only")
	cmd.Flags().Bool("no-validate", false, "skip live-data assumption validation")
	cmd.Flags().StringSlice("collection", nil, "restrict planning to collection IDs")
	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	mode, _ := cmd.Flags().GetString("mode")
	noModel, _ := cmd.Flags().GetBool("no-model")
	noValidate, _ := cmd.Flags().GetBool("no-validate")
	collections, _ := cmd.Flags().GetStringSlice("collection")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if noModel {
		cfg.Planner.ModelEnabled = false
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := buildService(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	plan, err := svc.Plan(ctx, planner.Request{
		Query:          strings.Join(args, " "),
		Mode:           mode,
		Scope:          schema.ScopeFilter{CollectionIDs: collections},
		SkipValidation: noValidate,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// buildService wires the full collaborator graph from config. Optional
// collaborators that fail to connect degrade to nil with a warning; only the
// qdrant store is allowed to be absent silently when unconfigured.
func buildService(cfg *config.Config, log *logger.Logger) (*planner.Service, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var adapter *qdrant.Adapter
	qc, err := qdrant.NewClient(qdrant.ClientConfig{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.UseTLS,
	})
	if err != nil {
		log.Warn("qdrant unavailable, planning without live data", "error", err)
	} else {
		closers = append(closers, func() { _ = qc.Close() })
		adapter = qdrant.NewAdapter(qc, cfg.Planner.EvidenceCollection, cfg.Planner.EntityCollection)
	}

	cache, err := planner.NewCache(cfg.Cache)
	if err != nil {
		log.Warn("plan cache unavailable", "error", err)
		cache = nil
	}
	if cache != nil {
		closers = append(closers, func() { _ = cache.Close() })
	}

	events, err := bus.New(cfg.Bus, log)
	if err != nil {
		log.Warn("event bus unavailable", "error", err)
		events = nil
	}
	if events != nil {
		closers = append(closers, func() { _ = events.Close() })
	}

	var schemas planner.SchemaProvider
	var embedder llm.Embedder
	if adapter != nil {
		schemas = schema.NewBuilder(adapter, adapter, adapter, adapter, cfg.Planner.SchemaSampleLimit, log)
	}

	opts := planner.Options{Cache: cache, Bus: events}

	if !cfg.Planner.ModelEnabled {
		if adapter != nil {
			opts.Validator = planner.NewValidator(cfg.Planner, nil, adapter, adapter, adapter, log)
		}
		return planner.NewPatternService(cfg.Planner, schemas, opts, log), cleanup, nil
	}

	client := llm.NewOllamaClient(cfg.LLM, log)
	embedder = client

	if adapter != nil {
		opts.Validator = planner.NewValidator(cfg.Planner, embedder, adapter, adapter, adapter, log)
	}

	pattern := planner.NewPatternDecomposer(cfg.Planner)
	decomposer := planner.NewModelDecomposer(cfg.Planner, cfg.LLM, client, pattern, log)
	return planner.NewService(cfg.Planner, decomposer, schemas, opts, log), cleanup, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sentinel-planner %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
