// Package reflect implements C9 from spec.md §4.9: a bounded, tool-using
// agent loop that answers a query against a bank's memories and cites its
// sources. Grounded on original_source/agentcore/memory/reflect.py.
package reflect

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"hindsight.dev/memoryengine/internal/apperrors"
	"hindsight.dev/memoryengine/internal/llmprovider"
	"hindsight.dev/memoryengine/internal/mentalmodel"
	"hindsight.dev/memoryengine/internal/models"
	"hindsight.dev/memoryengine/internal/recall"
	"hindsight.dev/memoryengine/internal/storage"
)

// maxIterations and wallClockTimeout mirror the original's MAX_ITERATIONS
// and the spec's 300s bound.
const (
	maxIterations    = 10
	wallClockTimeout = 300 * time.Second
)

// Result is reflect()'s external contract per spec.md §6.
type Result struct {
	Answer     string
	CitedIDs   []string
	Iterations int
}

type Service struct {
	db           *storage.DB
	llm          llmprovider.Provider
	recall       *recall.Searcher
	mentalModels *mentalmodel.Service
	reranker     recall.Reranker
	logger       *logrus.Entry
}

func New(db *storage.DB, llm llmprovider.Provider, recallSearcher *recall.Searcher, mentalModels *mentalmodel.Service, logger *logrus.Entry) *Service {
	return &Service{db: db, llm: llm, recall: recallSearcher, mentalModels: mentalModels, reranker: recall.NoopReranker{}, logger: logger}
}

// Reflect answers query against bankID's memories, running the bounded
// tool-use loop described in spec.md §4.9.
func (s *Service) Reflect(ctx context.Context, bankID, query string, maxIter int) (Result, error) {
	if bankID == "" || query == "" {
		return Result{}, fmt.Errorf("reflect: bank_id and query are required: %w", apperrors.ErrInvalidInput)
	}
	if maxIter <= 0 || maxIter > maxIterations {
		maxIter = maxIterations
	}

	ctx, cancel := context.WithTimeout(ctx, wallClockTimeout)
	defer cancel()

	bank, err := s.db.GetBank(ctx, bankID)
	if err != nil {
		return Result{}, fmt.Errorf("reflect: load bank: %w", err)
	}
	if bank == nil {
		return Result{}, fmt.Errorf("reflect: bank %s not found: %w", bankID, apperrors.ErrInvalidInput)
	}

	systemPrompt := buildSystemPrompt(bank)
	tc := &toolContext{bankID: bankID, available: map[string]bool{}}

	return s.agentLoop(ctx, systemPrompt, query, bank.Directives, tc, maxIter)
}

func buildSystemPrompt(bank *models.Bank) string {
	prompt := fmt.Sprintf("Mission: %s\nBackground: %s\n\n", bank.Mission, bank.Background)
	if d := buildDispositionPrompt(bank.Disposition); d != "" {
		prompt += d + "\n"
	}
	if d := directivesPrompt(bank.Directives); d != "" {
		prompt += d + "\n"
	}
	prompt += "Use the available tools to find evidence before answering. Call `done` with your final answer and the ids of every memory or mental model you relied on."
	return prompt
}
