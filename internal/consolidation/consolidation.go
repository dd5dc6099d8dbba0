// Package consolidation implements C7 from spec.md §4.7: folding raw
// world/experience facts into durable observation units, grounded on
// original_source/agentcore/memory/consolidation.py.
package consolidation

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"

	"hindsight.dev/memoryengine/internal/embedding"
	"hindsight.dev/memoryengine/internal/llmprovider"
	"hindsight.dev/memoryengine/internal/mentalmodel"
	"hindsight.dev/memoryengine/internal/models"
	"hindsight.dev/memoryengine/internal/storage"
)

// batchSize is CONSOLIDATION_BATCH_SIZE in the original: fetch at most this
// many unconsolidated facts per round, oldest first.
const batchSize = 10

// observationSimilarityThreshold/maxRelatedObservations/
// maxSourceMemoriesPerObservation mirror the original's constants exactly.
const (
	observationSimilarityThreshold = 0.3
	maxRelatedObservations         = 10
	maxSourceMemoriesPerObservation = 5
)

const (
	maxMentalModelRefreshes   = 3
	maxMentalModelGenerations = 2
)

// Worker runs one consolidation pass at a time for a given bank.
type Worker struct {
	db        *storage.DB
	embedder  embedding.Provider
	llm       llmprovider.Provider
	mentalMod *mentalmodel.Service
	logger    *logrus.Entry
}

func New(db *storage.DB, embedder embedding.Provider, llm llmprovider.Provider, mentalMod *mentalmodel.Service, logger *logrus.Entry) *Worker {
	return &Worker{db: db, embedder: embedder, llm: llm, mentalMod: mentalMod, logger: logger}
}

// Run processes unconsolidated facts for bankID in batches of batchSize
// until none remain, per spec.md §4.7. A fact that fails is attempted once
// per Run; when a fetched batch holds only facts that already failed in
// this Run, the Run stops and leaves them for the next one.
func (w *Worker) Run(ctx context.Context, bankID string) error {
	bank, err := w.db.GetBank(ctx, bankID)
	if err != nil {
		return fmt.Errorf("consolidation: load bank: %w", err)
	}
	if bank == nil {
		return fmt.Errorf("consolidation: bank %s not found", bankID)
	}

	processed := 0
	touched := map[string]bool{}
	failed := map[string]bool{}
	for {
		facts, err := fetchBatch(ctx, w.db.Pool(), bankID, batchSize)
		if err != nil {
			return fmt.Errorf("consolidation: fetch batch: %w", err)
		}
		if len(facts) == 0 {
			break
		}

		progressed := false
		for _, fact := range facts {
			if failed[fact.ID] {
				continue
			}
			progressed = true
			entityIDs, err := w.processFact(ctx, bank, fact)
			if err != nil {
				failed[fact.ID] = true
				w.logger.WithError(err).WithField("fact_id", fact.ID).Error("consolidation: fact failed, continuing batch")
				if recErr := recordFailure(ctx, w.db.Pool(), bankID, fact.ID, err); recErr != nil {
					w.logger.WithError(recErr).WithField("fact_id", fact.ID).Error("consolidation: failed to record async_operations failure")
				}
			}
			for _, id := range entityIDs {
				touched[id] = true
			}
			processed++
		}
		if !progressed {
			break
		}
	}

	if processed == 0 {
		return nil
	}

	touchedIDs := make([]string, 0, len(touched))
	for id := range touched {
		touchedIDs = append(touchedIDs, id)
	}

	w.refreshMentalModels(ctx, bankID, touchedIDs)
	return nil
}

// processFact classifies and applies a single fact, stamping consolidated_at
// only once the LLM result was successfully applied (including "skip",
// which is itself a successful outcome). On error consolidated_at is left
// untouched so the next Run retries the fact, per spec.md §4.7's failure
// policy. It returns the ids of entities touched by the resulting
// create/update, for the Mental Model lifecycle's touched-set input.
func (w *Worker) processFact(ctx context.Context, bank *models.Bank, fact models.MemoryUnit) ([]string, error) {
	related, err := findRelatedObservations(ctx, w.db.Pool(), bank.ID, fact)
	if err != nil {
		return nil, fmt.Errorf("find related observations: %w", err)
	}

	act, err := w.classify(ctx, bank, fact, related)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	var obsID string
	switch act.Type {
	case actionSkip:
		// Nothing to apply, but this is still a successful outcome.
	case actionCreate:
		obsID, err = w.applyCreate(ctx, bank.ID, fact, act)
	case actionUpdate:
		obsID, err = w.applyUpdate(ctx, bank.ID, fact, act)
	default:
		err = fmt.Errorf("unknown action type %q", act.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := stampConsolidated(ctx, w.db.Pool(), fact.ID); err != nil {
		return nil, fmt.Errorf("stamp consolidated_at: %w", err)
	}

	if obsID == "" {
		return nil, nil
	}
	entityIDs, err := entityIDsForUnit(ctx, w.db.Pool(), obsID)
	if err != nil {
		w.logger.WithError(err).WithField("unit_id", obsID).Warn("consolidation: failed to load touched entities")
		return nil, nil
	}
	return entityIDs, nil
}

func fetchBatch(ctx context.Context, pool storage.Querier, bankID string, limit int) ([]models.MemoryUnit, error) {
	rows, err := pool.Query(ctx,
		`SELECT id, text, fact_type, fact_kind, embedding, who, occurred_start, occurred_end, mentioned_at, source_memory_ids, tags
		 FROM memory_units
		 WHERE bank_id = $1 AND fact_type IN ('world', 'experience') AND consolidated_at IS NULL
		 ORDER BY created_at ASC
		 LIMIT $2`,
		bankID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MemoryUnit
	for rows.Next() {
		var u models.MemoryUnit
		var vec pgvector.Vector
		if err := rows.Scan(&u.ID, &u.Text, &u.FactType, &u.FactKind, &vec, &u.Who, &u.OccurredStart, &u.OccurredEnd, &u.MentionedAt, &u.SourceMemoryIDs, &u.Tags); err != nil {
			return nil, err
		}
		u.Embedding = vec.Slice()
		out = append(out, u)
	}
	return out, rows.Err()
}

func stampConsolidated(ctx context.Context, pool storage.Querier, unitID string) error {
	_, err := pool.Exec(ctx, `UPDATE memory_units SET consolidated_at = NOW() WHERE id = $1 AND consolidated_at IS NULL`, unitID)
	return err
}

func findRelatedObservations(ctx context.Context, pool storage.Querier, bankID string, fact models.MemoryUnit) ([]models.MemoryUnit, error) {
	if len(fact.Embedding) == 0 {
		return nil, nil
	}
	rows, err := pool.Query(ctx,
		`SELECT id, text, who, source_memory_ids, proof_count, occurred_start, occurred_end, mentioned_at
		 FROM memory_units
		 WHERE bank_id = $1 AND fact_type = 'observation'
		   AND 1 - (embedding <=> $2::vector) >= $3
		 ORDER BY embedding <=> $2::vector ASC
		 LIMIT $4`,
		bankID, storage.VectorLiteral(fact.Embedding), observationSimilarityThreshold, maxRelatedObservations,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MemoryUnit
	for rows.Next() {
		var u models.MemoryUnit
		if err := rows.Scan(&u.ID, &u.Text, &u.Who, &u.SourceMemoryIDs, &u.ProofCount, &u.OccurredStart, &u.OccurredEnd, &u.MentionedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func entityIDsForUnit(ctx context.Context, pool storage.Querier, unitID string) ([]string, error) {
	rows, err := pool.Query(ctx, `SELECT entity_id FROM unit_entities WHERE unit_id = $1`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (w *Worker) refreshMentalModels(ctx context.Context, bankID string, touchedEntityIDs []string) {
	if len(touchedEntityIDs) == 0 {
		return
	}

	refreshed, err := w.mentalMod.RefreshTouched(ctx, bankID, touchedEntityIDs, maxMentalModelRefreshes)
	if err != nil {
		w.logger.WithError(err).Warn("consolidation: mental model refresh pass failed")
	} else if refreshed > 0 {
		w.logger.WithField("count", refreshed).Info("consolidation: refreshed mental models")
	}

	generated, err := w.mentalMod.GenerateCandidates(ctx, bankID, touchedEntityIDs, maxMentalModelGenerations)
	if err != nil {
		w.logger.WithError(err).Warn("consolidation: mental model generation pass failed")
	} else if generated > 0 {
		w.logger.WithField("count", generated).Info("consolidation: generated mental models")
	}

	if err := w.mentalMod.StampFreshness(ctx, bankID); err != nil {
		w.logger.WithError(err).Warn("consolidation: freshness stamp pass failed")
	}
}
