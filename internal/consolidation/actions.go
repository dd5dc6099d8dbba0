package consolidation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"hindsight.dev/memoryengine/internal/models"
	"hindsight.dev/memoryengine/internal/storage"
)

func historyJSON(h models.HistoryEntry) []byte {
	b, err := json.Marshal([]models.HistoryEntry{h})
	if err != nil {
		return []byte(`[]`)
	}
	return b
}

// applyCreate inserts a new observation from a source fact that no
// existing observation covers, per consolidation.py's
// _execute_create_action.
func (w *Worker) applyCreate(ctx context.Context, bankID string, fact models.MemoryUnit, act action) (string, error) {
	vectors, err := w.embedder.Embed(ctx, []string{act.Content})
	if err != nil {
		return "", fmt.Errorf("embed observation: %w", err)
	}

	tx, err := w.db.Pool().Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	occurredStart, occurredEnd, mentionedAt := occurrenceDefaults(fact)

	var obsID string
	err = tx.QueryRow(ctx,
		`INSERT INTO memory_units (
			bank_id, text, fact_type, who, proof_count, source_memory_ids,
			occurred_start, occurred_end, mentioned_at, embedding, tags
		 ) VALUES ($1, $2, 'observation', $3, 1, ARRAY[$4]::uuid[], $5, $6, $7, $8, $9)
		 RETURNING id`,
		bankID, act.Content, fact.Who, fact.ID, occurredStart, occurredEnd, mentionedAt,
		storage.VectorLiteral(vectors[0]), fact.Tags,
	).Scan(&obsID)
	if err != nil {
		return "", fmt.Errorf("insert observation: %w", err)
	}

	if err := inheritEntityLinks(ctx, tx, fact.ID, obsID); err != nil {
		return "", err
	}
	if err := maintainGraph(ctx, tx, bankID, fact.ID, obsID); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return obsID, nil
}

// applyUpdate folds a source fact into an existing observation, per
// consolidation.py's _execute_update_action: widen the occurrence window,
// append history, regenerate the embedding, and grow source_memory_ids
// without duplicating an id that is already present.
func (w *Worker) applyUpdate(ctx context.Context, bankID string, fact models.MemoryUnit, act action) (string, error) {
	vectors, err := w.embedder.Embed(ctx, []string{act.Content})
	if err != nil {
		return "", fmt.Errorf("embed updated observation: %w", err)
	}

	tx, err := w.db.Pool().Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	occurredStart, occurredEnd, mentionedAt := occurrenceDefaults(fact)

	history := models.HistoryEntry{At: time.Now().UTC(), Change: "consolidated fact " + fact.ID}
	_, err = tx.Exec(ctx,
		`UPDATE memory_units SET
			text = $2,
			embedding = $3,
			proof_count = CASE WHEN $4 = ANY(source_memory_ids) THEN proof_count ELSE proof_count + 1 END,
			source_memory_ids = CASE WHEN $4 = ANY(source_memory_ids) THEN source_memory_ids ELSE array_append(source_memory_ids, $4::uuid) END,
			occurred_start = LEAST(occurred_start, $5),
			occurred_end = GREATEST(occurred_end, $6),
			mentioned_at = GREATEST(mentioned_at, $7),
			history = history || $8::jsonb
		 WHERE id = $1`,
		act.Target, act.Content, storage.VectorLiteral(vectors[0]), fact.ID,
		occurredStart, occurredEnd, mentionedAt, historyJSON(history),
	)
	if err != nil {
		return "", fmt.Errorf("update observation: %w", err)
	}

	if err := inheritEntityLinks(ctx, tx, fact.ID, act.Target); err != nil {
		return "", err
	}
	if err := maintainGraph(ctx, tx, bankID, fact.ID, act.Target); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return act.Target, nil
}

func occurrenceDefaults(fact models.MemoryUnit) (time.Time, time.Time, time.Time) {
	now := time.Now().UTC()
	start, end, mentioned := now, now, now
	if fact.OccurredStart != nil {
		start = *fact.OccurredStart
	}
	if fact.OccurredEnd != nil {
		end = *fact.OccurredEnd
	}
	if !fact.MentionedAt.IsZero() {
		mentioned = fact.MentionedAt
	}
	return start, end, mentioned
}

// inheritEntityLinks copies every entity link from the source fact onto
// the observation it fed into, per consolidation.py's INSERT...SELECT...
// ON CONFLICT DO NOTHING pattern.
func inheritEntityLinks(ctx context.Context, tx pgx.Tx, sourceUnitID, targetUnitID string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO unit_entities (unit_id, entity_id)
		 SELECT $2, entity_id FROM unit_entities WHERE unit_id = $1
		 ON CONFLICT DO NOTHING`,
		sourceUnitID, targetUnitID,
	)
	if err != nil {
		return fmt.Errorf("inherit entity links: %w", err)
	}
	return nil
}

// maintainGraph is the Open-Question resolution to maintain memory_links
// and entity_cooccurrences eagerly during consolidation rather than in a
// separate pass: link the source fact to the observation it produced, link
// targetUnitID to its most recent per-entity predecessor as a temporal
// neighbor, and bump co-occurrence counts for every pair of entities the
// fact mentions.
func maintainGraph(ctx context.Context, tx pgx.Tx, bankID, sourceUnitID, targetUnitID string) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO memory_links (bank_id, from_unit, to_unit, link_type, weight)
		 VALUES ($1, $2, $3, 'semantic', 1.0)
		 ON CONFLICT (from_unit, to_unit, link_type) WHERE entity_id IS NULL DO NOTHING`,
		bankID, sourceUnitID, targetUnitID,
	); err != nil {
		return fmt.Errorf("maintain memory_links: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT entity_id FROM unit_entities WHERE unit_id = $1`, sourceUnitID)
	if err != nil {
		return fmt.Errorf("load entities for cooccurrence: %w", err)
	}
	var entityIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan entity id: %w", err)
		}
		entityIDs = append(entityIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if err := maintainTemporalLinks(ctx, tx, bankID, targetUnitID, entityIDs); err != nil {
		return err
	}

	for i := 0; i < len(entityIDs); i++ {
		for j := i + 1; j < len(entityIDs); j++ {
			id1, id2 := entityIDs[i], entityIDs[j]
			if id1 > id2 {
				id1, id2 = id2, id1
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO entity_cooccurrences (bank_id, entity_id_1, entity_id_2, count, last_cooccurred)
				 VALUES ($1, $2, $3, 1, NOW())
				 ON CONFLICT (entity_id_1, entity_id_2) DO UPDATE
				   SET count = entity_cooccurrences.count + 1, last_cooccurred = NOW()`,
				bankID, id1, id2,
			); err != nil {
				return fmt.Errorf("maintain entity_cooccurrences: %w", err)
			}
		}
	}
	return nil
}

// temporalWindowHours and temporalWeightMin mirror graph.py's
// TEMPORAL_WINDOW_HOURS/TEMPORAL_WEIGHT_MIN: weight decays linearly with the
// gap between two observations' timestamps and is floored rather than
// dropped, since spec.md §4.7 step 4 wants every consecutive pair linked
// regardless of how far apart they fall.
const (
	temporalWindowHours = 24.0
	temporalWeightMin   = 0.3
)

// temporalWeight decays linearly with the absolute gap between two
// observations' timestamps, floored at temporalWeightMin, per graph.py's
// _match_temporal_candidates formula.
func temporalWeight(gapHours float64) float64 {
	if gapHours < 0 {
		gapHours = -gapHours
	}
	weight := 1.0 - gapHours/temporalWindowHours
	if weight < temporalWeightMin {
		weight = temporalWeightMin
	}
	return weight
}

// maintainTemporalLinks links targetUnitID to, for each of its entities, the
// most recently timestamped other observation about that same entity —
// "consecutive observations about the same entity become temporal edges
// with weight decaying by gap" per spec.md §4.7 step 4. Grounded on
// graph.py's _match_temporal_candidates weight formula
// (max(WEIGHT_MIN, 1 - gap_hours/WINDOW_HOURS)), generalized from its
// time-window matching to a per-entity predecessor lookup.
func maintainTemporalLinks(ctx context.Context, tx pgx.Tx, bankID, targetUnitID string, entityIDs []string) error {
	var targetTime *time.Time
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(occurred_start, mentioned_at) FROM memory_units WHERE id = $1`,
		targetUnitID,
	).Scan(&targetTime); err != nil {
		return fmt.Errorf("load target unit time: %w", err)
	}
	if targetTime == nil {
		return nil
	}

	for _, entityID := range entityIDs {
		var (
			neighborID   string
			neighborTime time.Time
		)
		err := tx.QueryRow(ctx,
			`SELECT mu.id, COALESCE(mu.occurred_start, mu.mentioned_at) AS t
			 FROM memory_units mu
			 JOIN unit_entities ue ON ue.unit_id = mu.id
			 WHERE mu.bank_id = $1 AND mu.fact_type = 'observation' AND ue.entity_id = $2
			   AND mu.id != $3 AND COALESCE(mu.occurred_start, mu.mentioned_at) <= $4
			 ORDER BY t DESC
			 LIMIT 1`,
			bankID, entityID, targetUnitID, *targetTime,
		).Scan(&neighborID, &neighborTime)
		if err != nil {
			if err == pgx.ErrNoRows {
				continue
			}
			return fmt.Errorf("find temporal neighbor: %w", err)
		}

		weight := temporalWeight(targetTime.Sub(neighborTime).Hours())

		for _, pair := range [][2]string{{targetUnitID, neighborID}, {neighborID, targetUnitID}} {
			if _, err := tx.Exec(ctx,
				`INSERT INTO memory_links (bank_id, from_unit, to_unit, link_type, weight, entity_id)
				 VALUES ($1, $2, $3, 'temporal', $4, $5)
				 ON CONFLICT (from_unit, to_unit, link_type, entity_id) DO UPDATE SET weight = EXCLUDED.weight`,
				bankID, pair[0], pair[1], weight, entityID,
			); err != nil {
				return fmt.Errorf("maintain temporal link: %w", err)
			}
		}
	}
	return nil
}
