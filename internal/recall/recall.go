// Package recall implements C6 from spec.md §4.6: a pure, read-only hybrid
// search over a bank's memory units. The 2-way reciprocal-rank fusion
// contract here is spec.md's explicit algorithm; the original's richer
// 4-way fusion (adding graph and temporal signals) is intentionally not
// reproduced here so Recall stays deterministic given no intervening
// writes — those extra signals instead live in internal/reflect's tool
// handlers, which may enrich but never replace this contract.
package recall

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"hindsight.dev/memoryengine/internal/apperrors"
	"hindsight.dev/memoryengine/internal/embedding"
	"hindsight.dev/memoryengine/internal/models"
	"hindsight.dev/memoryengine/internal/storage"
)

// rrfK is the reciprocal-rank-fusion constant from spec.md §4.6.
const rrfK = 60

// perListLimit bounds how many rows each underlying search contributes
// before fusion, grounded on the original's PER_TYPE_LIMIT posture of
// capping candidate lists rather than scanning every match.
const perListLimit = 50

const defaultMaxResults = 10
const maxMaxResults = 100

// defaultTokenBudget approximates the original's BUDGETS["mid"] entry: a
// conservative assembly cap so Recall never returns an unbounded amount of
// text regardless of how many candidates tie at the top of the fused
// ranking.
const defaultTokenBudget = 4000
const charsPerToken = 3

// Query is recall()'s input per spec.md §6. TimeRange is an optional extra
// filter, not part of the ranking algorithm itself — Reflect's tool
// handlers populate it from ExtractTimeRange when a query names a relative
// period ("yesterday", "last week"); plain API callers leave it nil.
type Query struct {
	BankID     string
	Text       string
	MaxResults int
	FactTypes  []models.FactType
	Tags       []string
	TimeRange  *TimeRange
}

// Result is one fused, scored memory unit.
type Result struct {
	UnitID           string
	Text             string
	FactType         models.FactType
	Tags             []string
	CreatedAt        time.Time
	SemanticRank     int
	LexicalRank      int
	FusedScore       float64
}

// Searcher runs C6's hybrid pipeline against storage.
type Searcher struct {
	db       *storage.DB
	embedder embedding.Provider
}

func New(db *storage.DB, embedder embedding.Provider) *Searcher {
	return &Searcher{db: db, embedder: embedder}
}

// Recall executes one hybrid search, per spec.md §4.6. It is pure: given no
// intervening writes to the bank, the same Query always returns the same
// ordering.
func (s *Searcher) Recall(ctx context.Context, q Query) ([]Result, error) {
	if q.BankID == "" || q.Text == "" {
		return nil, fmt.Errorf("recall: bank_id and query text are required: %w", apperrors.ErrInvalidInput)
	}
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if maxResults > maxMaxResults {
		maxResults = maxMaxResults
	}

	vectors, err := s.embedder.Embed(ctx, []string{q.Text})
	if err != nil {
		return nil, fmt.Errorf("recall: embed query: %w", err)
	}
	queryVector := vectors[0]

	var (
		semantic, lexical []rankedUnit
		semErr, lexErr    error
		wg                sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		semantic, semErr = s.semanticSearch(ctx, q, queryVector)
	}()
	go func() {
		defer wg.Done()
		lexical, lexErr = s.lexicalSearch(ctx, q)
	}()
	wg.Wait()
	if semErr != nil {
		return nil, fmt.Errorf("recall: semantic search: %w", semErr)
	}
	if lexErr != nil {
		return nil, fmt.Errorf("recall: lexical search: %w", lexErr)
	}

	fused := fuse(semantic, lexical)
	rows, err := s.hydrate(ctx, q.BankID, fused)
	if err != nil {
		return nil, err
	}

	return assemble(rows, maxResults), nil
}

type rankedUnit struct {
	unitID string
	rank   int
}

func fuse(semantic, lexical []rankedUnit) map[string]*Result {
	out := map[string]*Result{}
	apply := func(list []rankedUnit, assign func(r *Result, rank int)) {
		for _, ru := range list {
			r, ok := out[ru.unitID]
			if !ok {
				r = &Result{UnitID: ru.unitID, SemanticRank: -1, LexicalRank: -1}
				out[ru.unitID] = r
			}
			assign(r, ru.rank)
			r.FusedScore += 1.0 / float64(rrfK+ru.rank)
		}
	}
	apply(semantic, func(r *Result, rank int) { r.SemanticRank = rank })
	apply(lexical, func(r *Result, rank int) { r.LexicalRank = rank })
	return out
}

func assemble(rows map[string]*Result, maxResults int) []Result {
	out := make([]Result, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	budget := defaultTokenBudget * charsPerToken
	used := 0
	limit := maxResults
	trimmed := make([]Result, 0, limit)
	for _, r := range out {
		if len(trimmed) >= limit {
			break
		}
		used += len(r.Text)
		if used > budget && len(trimmed) > 0 {
			break
		}
		trimmed = append(trimmed, r)
	}
	return trimmed
}
