// Package engine wires every component into the three caller-facing
// operations from spec.md §6 and owns the process-wide resources (pool,
// scheduler, semaphores) described in spec.md §4.10 and §5.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"hindsight.dev/memoryengine/internal/config"
	"hindsight.dev/memoryengine/internal/consolidation"
	"hindsight.dev/memoryengine/internal/embedding"
	"hindsight.dev/memoryengine/internal/llmprovider"
	"hindsight.dev/memoryengine/internal/mentalmodel"
	"hindsight.dev/memoryengine/internal/metrics"
	"hindsight.dev/memoryengine/internal/recall"
	reflectengine "hindsight.dev/memoryengine/internal/reflect"
	"hindsight.dev/memoryengine/internal/retain"
	"hindsight.dev/memoryengine/internal/scheduler"
	"hindsight.dev/memoryengine/internal/storage"
)

// Engine holds every initialized component and the two hard concurrency
// caps from spec.md §5: write-path and search-fan-out.
type Engine struct {
	cfg    config.Config
	logger *logrus.Entry

	db            *storage.DB
	embedder      embedding.Provider
	llm           llmprovider.Provider
	retainPipe    *retain.Pipeline
	recallSearch  *recall.Searcher
	reflectSvc    *reflectengine.Service
	consolidation *consolidation.Worker
	scheduler     *scheduler.ConsolidationScheduler
	metrics       *metrics.Metrics

	writeSem  *semaphore.Weighted
	searchSem *semaphore.Weighted

	started bool
}

// New constructs an Engine from already-built dependencies, letting
// cmd/hindsight and tests choose concrete providers (HTTP vs. local/mock)
// without this package importing every possible backend.
func New(cfg config.Config, logger *logrus.Entry, embedder embedding.Provider, llm llmprovider.Provider) *Engine {
	return &Engine{
		cfg:       cfg,
		logger:    logger,
		embedder:  embedding.NewBoundedProvider(embedder, cfg.EmbeddingConcurrency),
		llm:       llm,
		writeSem:  semaphore.NewWeighted(cfg.WriteConcurrency),
		searchSem: semaphore.NewWeighted(cfg.SearchConcurrency),
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
}

// reflectorAdapter satisfies mentalmodel.Reflector by unwrapping
// reflect.Result down to its answer text: the Mental Model lifecycle only
// needs the prose, not the citation/iteration bookkeeping callers of
// Engine.Reflect care about.
type reflectorAdapter struct {
	svc *reflectengine.Service
}

func (a reflectorAdapter) Reflect(ctx context.Context, bankID, query string, maxIterations int) (string, error) {
	result, err := a.svc.Reflect(ctx, bankID, query, maxIterations)
	if err != nil {
		return "", err
	}
	return result.Answer, nil
}

// Initialize opens the database pool, runs migrations, and starts exactly
// one consolidation task. Calling it twice is a no-op, per spec.md §4.10.
func (e *Engine) Initialize(ctx context.Context) error {
	if e.started {
		return nil
	}

	db, err := storage.Open(ctx, e.cfg.DatabaseURL, e.logger)
	if err != nil {
		return fmt.Errorf("engine: open storage: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return fmt.Errorf("engine: migrate: %w", err)
	}
	e.db = db

	mentalModels := mentalmodel.NewService(db, e.embedder, e.logger)
	e.retainPipe = retain.New(db, e.embedder, e.llm, e.logger)
	e.recallSearch = recall.New(db, e.embedder)
	e.reflectSvc = reflectengine.New(db, e.llm, e.recallSearch, mentalModels, e.logger)
	mentalModels.SetReflector(reflectorAdapter{svc: e.reflectSvc})
	e.consolidation = consolidation.New(db, e.embedder, e.llm, mentalModels, e.logger)

	interval := time.Duration(e.cfg.ConsolidationIntervalSeconds) * time.Second
	e.scheduler = scheduler.New(interval, e, e.logger)
	e.scheduler.Start(ctx)

	e.started = true
	return nil
}

// Close stops the consolidation task before closing the pool, so no
// in-flight consolidation pass is cut off mid-transaction by a pool
// shutdown racing it.
func (e *Engine) Close(ctx context.Context) error {
	if !e.started {
		return nil
	}
	e.scheduler.Stop(ctx)
	e.db.Close()
	e.started = false
	return nil
}

// RunAll implements scheduler.Consolidator: one consolidation pass across
// every bank, called either by the ticker or by the `consolidate --once`
// CLI subcommand.
func (e *Engine) RunAll(ctx context.Context) error {
	bankIDs, err := e.db.ListBankIDs(ctx)
	if err != nil {
		return fmt.Errorf("engine: list banks: %w", err)
	}
	for _, bankID := range bankIDs {
		if err := e.consolidation.Run(ctx, bankID); err != nil {
			e.logger.WithError(err).WithField("bank_id", bankID).Error("engine: consolidation failed for bank")
		}
	}
	return nil
}

// Retain runs C5 under the write-path concurrency cap.
func (e *Engine) Retain(ctx context.Context, bankID, content string, extraContext *string) (retain.Result, error) {
	if err := e.writeSem.Acquire(ctx, 1); err != nil {
		return retain.Result{}, fmt.Errorf("engine: acquire write slot: %w", err)
	}
	defer e.writeSem.Release(1)

	start := time.Now()
	result, err := e.retainPipe.Retain(ctx, bankID, content, extraContext)
	e.observe("retain", start, err)
	return result, err
}

// Recall runs C6 under the search fan-out concurrency cap.
func (e *Engine) Recall(ctx context.Context, q recall.Query) ([]recall.Result, error) {
	if err := e.searchSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("engine: acquire search slot: %w", err)
	}
	defer e.searchSem.Release(1)

	start := time.Now()
	result, err := e.recallSearch.Recall(ctx, q)
	e.observe("recall", start, err)
	return result, err
}

// Reflect runs C9 under the search fan-out concurrency cap — its tool
// handlers issue recall/search calls, so it shares Recall's budget rather
// than getting its own unbounded allowance.
func (e *Engine) Reflect(ctx context.Context, bankID, query string, maxIterations int) (reflectengine.Result, error) {
	if err := e.searchSem.Acquire(ctx, 1); err != nil {
		return reflectengine.Result{}, fmt.Errorf("engine: acquire search slot: %w", err)
	}
	defer e.searchSem.Release(1)

	start := time.Now()
	result, err := e.reflectSvc.Reflect(ctx, bankID, query, maxIterations)
	e.observe("reflect", start, err)
	return result, err
}

func (e *Engine) observe(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	e.metrics.OperationDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
	e.metrics.OperationTotal.WithLabelValues(operation, outcome).Inc()
}
