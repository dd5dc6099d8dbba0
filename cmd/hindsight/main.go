// Command hindsight runs the memory engine: either as a long-lived server
// driving its own consolidation ticker, or as a one-shot CLI for each of
// the three external operations from spec.md §6. Grounded on the teacher's
// cmd/helixagent/main.go startup sequence (load config, build logger,
// dispatch on a verb), adapted from its flag-based subcommand style.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hindsight.dev/memoryengine/internal/config"
	"hindsight.dev/memoryengine/internal/embedding"
	"hindsight.dev/memoryengine/internal/engine"
	"hindsight.dev/memoryengine/internal/llmprovider"
	"hindsight.dev/memoryengine/internal/logging"
	"hindsight.dev/memoryengine/internal/recall"
)

// Exit codes per spec.md §6/§7.
const (
	exitOK            = 0
	exitOperational   = 1
	exitConfiguration = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	config.Load()
	logger := logging.New().WithField("request_id", uuid.NewString())

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: hindsight <serve|consolidate|retain|recall|reflect> [flags]")
		return exitConfiguration
	}

	cfg, err := config.FromEnv()
	if err != nil {
		logger.WithError(err).Error("configuration error")
		return exitConfiguration
	}

	if args[0] == "serve" {
		fs := flag.NewFlagSet("serve", flag.ContinueOnError)
		interval := fs.Int("interval", cfg.ConsolidationIntervalSeconds, "consolidation interval in seconds (minimum 10)")
		if err := fs.Parse(args[1:]); err != nil {
			return exitConfiguration
		}
		if *interval < 10 {
			fmt.Fprintln(os.Stderr, "serve --interval must be at least 10 seconds")
			return exitConfiguration
		}
		cfg.ConsolidationIntervalSeconds = *interval
	}

	embedder := embedding.NewHTTPProvider(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, config.EmbeddingModelID())
	llm := llmprovider.NewClaudeProvider(cfg.LLMAPIKey)
	eng := engine.New(cfg, logger, embedder, llm)

	ctx := context.Background()
	if err := eng.Initialize(ctx); err != nil {
		logger.WithError(err).Error("failed to initialize engine")
		return exitOperational
	}
	defer func() { _ = eng.Close(ctx) }()

	switch args[0] {
	case "serve":
		return runServe(ctx, logger)
	case "consolidate":
		return runConsolidate(ctx, eng, args[1:])
	case "retain":
		return runRetain(ctx, eng, args[1:])
	case "recall":
		return runRecall(ctx, eng, args[1:])
	case "reflect":
		return runReflect(ctx, eng, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", args[0])
		return exitConfiguration
	}
}

func runServe(ctx context.Context, logger *logrus.Entry) int {
	logger.Info("hindsight serving; consolidation ticker is running in the background")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}
	return exitOK
}

func runConsolidate(ctx context.Context, eng *engine.Engine, args []string) int {
	fs := flag.NewFlagSet("consolidate", flag.ContinueOnError)
	once := fs.Bool("once", false, "run a single consolidation pass across every bank and exit")
	if err := fs.Parse(args); err != nil {
		return exitConfiguration
	}
	if !*once {
		fmt.Fprintln(os.Stderr, "consolidate currently only supports --once; the serve subcommand runs the ticker")
		return exitConfiguration
	}

	if err := eng.RunAll(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitOperational
	}
	return exitOK
}

func runRetain(ctx context.Context, eng *engine.Engine, args []string) int {
	fs := flag.NewFlagSet("retain", flag.ContinueOnError)
	bankID := fs.String("bank", "", "bank id")
	text := fs.String("text", "", "content to retain")
	if err := fs.Parse(args); err != nil {
		return exitConfiguration
	}
	if *bankID == "" || *text == "" {
		fmt.Fprintln(os.Stderr, "retain requires -bank and -text")
		return exitConfiguration
	}

	result, err := eng.Retain(ctx, *bankID, *text, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitOperational
	}
	return printJSON(result)
}

func runRecall(ctx context.Context, eng *engine.Engine, args []string) int {
	fs := flag.NewFlagSet("recall", flag.ContinueOnError)
	bankID := fs.String("bank", "", "bank id")
	query := fs.String("query", "", "search text")
	maxResults := fs.Int("max-results", 10, "maximum results to return")
	if err := fs.Parse(args); err != nil {
		return exitConfiguration
	}
	if *bankID == "" || *query == "" {
		fmt.Fprintln(os.Stderr, "recall requires -bank and -query")
		return exitConfiguration
	}

	results, err := eng.Recall(ctx, recall.Query{BankID: *bankID, Text: *query, MaxResults: *maxResults})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitOperational
	}
	return printJSON(results)
}

func runReflect(ctx context.Context, eng *engine.Engine, args []string) int {
	fs := flag.NewFlagSet("reflect", flag.ContinueOnError)
	bankID := fs.String("bank", "", "bank id")
	query := fs.String("query", "", "question to answer")
	maxIterations := fs.Int("max-iterations", 0, "override the default iteration bound (0 = default)")
	if err := fs.Parse(args); err != nil {
		return exitConfiguration
	}
	if *bankID == "" || *query == "" {
		fmt.Fprintln(os.Stderr, "reflect requires -bank and -query")
		return exitConfiguration
	}

	result, err := eng.Reflect(ctx, *bankID, *query, *maxIterations)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitOperational
	}
	return printJSON(result)
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitOperational
	}
	return exitOK
}
