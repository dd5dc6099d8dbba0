// Package mentalmodel implements C8 from spec.md §4.8: curated,
// per-entity summaries kept fresh as new observations accumulate.
// Grounded on original_source/agentcore/memory/mental_model.py.
package mentalmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"hindsight.dev/memoryengine/internal/apperrors"
	"hindsight.dev/memoryengine/internal/embedding"
	"hindsight.dev/memoryengine/internal/models"
	"hindsight.dev/memoryengine/internal/storage"
)

// searchSimilarityThreshold and staleThresholdDays mirror the original's
// constants.
const (
	searchSimilarityThreshold = 0.1
	staleThresholdDays        = 7
)

// nameSimilarityThreshold is the pg_trgm floor used by the app-level
// duplicate check in candidates.go's second defense layer.
const nameSimilarityThreshold = 0.8

type Service struct {
	db        *storage.DB
	embedder  embedding.Provider
	reflector Reflector
	logger    *logrus.Entry
}

func NewService(db *storage.DB, embedder embedding.Provider, logger *logrus.Entry) *Service {
	return &Service{db: db, embedder: embedder, logger: logger}
}

// SetReflector wires in the bounded Reflect loop. engine constructs
// mentalmodel.Service first (reflect.Service depends on it for
// search_mental_models) and builds reflect.Service second, so this is a
// setter rather than a constructor argument.
func (s *Service) SetReflector(r Reflector) {
	s.reflector = r
}

// Create inserts a new mental model, embedding its content. If trigger is
// nil, the default {refresh_after_consolidation: false} is used, per the
// original's create_mental_model. sourceObservationIDs and tags may be nil.
func (s *Service) Create(ctx context.Context, bankID, name string, content string, entityID *string, trigger *models.MentalModelTrigger, sourceObservationIDs, tags []string, sourceQuery *string) (string, error) {
	if bankID == "" || name == "" || content == "" {
		return "", fmt.Errorf("mentalmodel: bank_id, name, and content are required: %w", apperrors.ErrInvalidInput)
	}
	if trigger == nil {
		trigger = &models.MentalModelTrigger{RefreshAfterConsolidation: false}
	}

	vectors, err := s.embedder.Embed(ctx, []string{content})
	if err != nil {
		return "", fmt.Errorf("mentalmodel: embed: %w", err)
	}
	triggerJSON, err := json.Marshal(trigger)
	if err != nil {
		return "", fmt.Errorf("mentalmodel: marshal trigger: %w", err)
	}

	var id string
	err = s.db.Pool().QueryRow(ctx,
		`INSERT INTO mental_models (bank_id, name, content, entity_id, embedding, trigger, source_observation_ids, tags, source_query, last_refreshed_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, NOW())
		 RETURNING id`,
		bankID, name, content, entityID, storage.VectorLiteral(vectors[0]), triggerJSON, emptyIfNil(sourceObservationIDs), emptyIfNil(tags), sourceQuery,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("mentalmodel: insert: %w", err)
	}
	return id, nil
}

func emptyIfNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func (s *Service) Get(ctx context.Context, id string) (*models.MentalModel, error) {
	row := s.db.Pool().QueryRow(ctx,
		`SELECT id, bank_id, name, description, content, source_query, entity_id, tags, source_observation_ids, max_tokens, trigger, last_refreshed_at, created_at, updated_at
		 FROM mental_models WHERE id = $1`, id,
	)
	m, err := scanMentalModel(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("mentalmodel: get: %w", err)
	}
	return m, nil
}

// List returns a bank's mental models, optionally filtered to rows that
// carry every tag in tags.
func (s *Service) List(ctx context.Context, bankID string, tags []string, limit, offset int) ([]models.MentalModel, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Pool().Query(ctx,
		`SELECT id, bank_id, name, description, content, source_query, entity_id, tags, source_observation_ids, max_tokens, trigger, last_refreshed_at, created_at, updated_at
		 FROM mental_models
		 WHERE bank_id = $1 AND ($2::text[] IS NULL OR tags @> $2)
		 ORDER BY updated_at DESC
		 LIMIT $3 OFFSET $4`,
		bankID, nullableTags(tags), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("mentalmodel: list: %w", err)
	}
	defer rows.Close()

	var out []models.MentalModel
	for rows.Next() {
		m, err := scanMentalModel(rows)
		if err != nil {
			return nil, fmt.Errorf("mentalmodel: scan: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// Search finds mental models semantically relevant to query, for Reflect's
// search_mental_models tool.
func (s *Service) Search(ctx context.Context, bankID, query string, excludeIDs []string, limit int) ([]models.MentalModel, error) {
	if limit <= 0 {
		limit = 10
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("mentalmodel: embed query: %w", err)
	}

	rows, err := s.db.Pool().Query(ctx,
		`SELECT id, bank_id, name, description, content, source_query, entity_id, tags, source_observation_ids, max_tokens, trigger, last_refreshed_at, created_at, updated_at
		 FROM mental_models
		 WHERE bank_id = $1 AND ($2::uuid[] IS NULL OR NOT (id = ANY($2)))
		   AND 1 - (embedding <=> $3::vector) >= $4
		 ORDER BY embedding <=> $3::vector ASC
		 LIMIT $5`,
		bankID, nullableIDs(excludeIDs), storage.VectorLiteral(vectors[0]), searchSimilarityThreshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("mentalmodel: search: %w", err)
	}
	defer rows.Close()

	var out []models.MentalModel
	for rows.Next() {
		m, err := scanMentalModel(rows)
		if err != nil {
			return nil, fmt.Errorf("mentalmodel: scan: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanMentalModel(row scannable) (*models.MentalModel, error) {
	var (
		m           models.MentalModel
		triggerRaw  []byte
		lastRefresh *time.Time
	)
	if err := row.Scan(&m.ID, &m.BankID, &m.Name, &m.Description, &m.Content, &m.SourceQuery, &m.EntityID, &m.Tags, &m.SourceObservationIDs, &m.MaxTokens, &triggerRaw, &lastRefresh, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal(triggerRaw, &m.Trigger)
	m.LastRefreshedAt = lastRefresh
	return &m, nil
}

func nullableTags(tags []string) any {
	if len(tags) == 0 {
		return nil
	}
	return tags
}

func nullableIDs(ids []string) any {
	if len(ids) == 0 {
		return nil
	}
	return ids
}
