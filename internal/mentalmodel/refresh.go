package mentalmodel

import (
	"context"
	"fmt"

	"hindsight.dev/memoryengine/internal/storage"
)

// RefreshTouched regenerates content for up to limit mental models whose
// trigger.refresh_after_consolidation is true and whose entity_id appears
// in touchedEntityIDs — the entities a consolidation run just produced or
// updated observations for. Returns the number actually refreshed. Per
// spec.md §4.8, refresh is driven by the run's touched set, not a global
// staleness sweep.
func (s *Service) RefreshTouched(ctx context.Context, bankID string, touchedEntityIDs []string, limit int) (int, error) {
	if len(touchedEntityIDs) == 0 {
		return 0, nil
	}

	rows, err := s.db.Pool().Query(ctx,
		`SELECT id, entity_id, name, tags, source_query
		 FROM mental_models
		 WHERE bank_id = $1
		   AND (trigger->>'refresh_after_consolidation')::boolean IS TRUE
		   AND entity_id = ANY($2)
		 ORDER BY last_refreshed_at ASC NULLS FIRST
		 LIMIT $3`,
		bankID, touchedEntityIDs, limit,
	)
	if err != nil {
		return 0, fmt.Errorf("mentalmodel: find refresh targets: %w", err)
	}

	type target struct {
		id          string
		entityID    *string
		name        string
		tags        []string
		sourceQuery *string
	}
	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.id, &t.entityID, &t.name, &t.tags, &t.sourceQuery); err != nil {
			rows.Close()
			return 0, err
		}
		targets = append(targets, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	refreshed := 0
	for _, t := range targets {
		if t.entityID == nil {
			continue
		}
		observationIDs, observationTexts, err := fetchEntityObservations(ctx, s.db, bankID, *t.entityID, t.tags)
		if err != nil {
			s.logger.WithError(err).WithField("mental_model_id", t.id).Warn("mentalmodel: refresh failed to load observations")
			continue
		}
		if len(observationTexts) == 0 {
			continue
		}

		// spec.md §4.8's refresh contract: reuse the model's original
		// source_query rather than deriving a fresh one each time.
		query := defaultMentalModelQuery(t.name)
		if t.sourceQuery != nil && *t.sourceQuery != "" {
			query = *t.sourceQuery
		}
		content, err := s.reflectSummary(ctx, bankID, query)
		if err != nil || len(content) < minGeneratedContentLength {
			continue
		}
		if err := s.applyRefresh(ctx, t.id, content, observationIDs); err != nil {
			s.logger.WithError(err).WithField("mental_model_id", t.id).Warn("mentalmodel: failed to persist refresh")
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

func (s *Service) applyRefresh(ctx context.Context, id, content string, sourceObservationIDs []string) error {
	vectors, err := s.embedder.Embed(ctx, []string{content})
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	_, err = s.db.Pool().Exec(ctx,
		`UPDATE mental_models SET content = $2, embedding = $3, source_observation_ids = $4, last_refreshed_at = NOW() WHERE id = $1`,
		id, content, storage.VectorLiteral(vectors[0]), emptyIfNil(sourceObservationIDs),
	)
	return err
}

// fetchEntityObservations loads the observations backing entityID's mental
// model. When modelTags is non-empty, spec.md §4.8 requires tags-match mode
// all_strict for the refresh: every tag in modelTags must be present on the
// observation, and untagged observations are excluded entirely, so a
// tagged model never leaks data outside its declared scope.
func fetchEntityObservations(ctx context.Context, db *storage.DB, bankID, entityID string, modelTags []string) (ids, texts []string, err error) {
	sql := `SELECT mu.id, mu.text FROM memory_units mu
	        JOIN unit_entities ue ON ue.unit_id = mu.id
	        WHERE mu.bank_id = $1 AND mu.fact_type = 'observation' AND ue.entity_id = $2`
	args := []any{bankID, entityID}
	if len(modelTags) > 0 {
		sql += ` AND mu.tags @> $3`
		args = append(args, modelTags)
	}
	sql += ` ORDER BY mu.updated_at DESC LIMIT 20`

	rows, queryErr := db.Pool().Query(ctx, sql, args...)
	if queryErr != nil {
		return nil, nil, queryErr
	}
	defer rows.Close()

	for rows.Next() {
		var id, text string
		if scanErr := rows.Scan(&id, &text); scanErr != nil {
			return nil, nil, scanErr
		}
		ids = append(ids, id)
		texts = append(texts, text)
	}
	return ids, texts, rows.Err()
}
