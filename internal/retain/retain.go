// Package retain implements C5 from spec.md §4.5: turning raw content into
// validated, deduplicated, entity-linked memory units.
package retain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"hindsight.dev/memoryengine/internal/apperrors"
	"hindsight.dev/memoryengine/internal/config"
	"hindsight.dev/memoryengine/internal/embedding"
	"hindsight.dev/memoryengine/internal/entity"
	"hindsight.dev/memoryengine/internal/llmprovider"
	"hindsight.dev/memoryengine/internal/models"
	"hindsight.dev/memoryengine/internal/storage"
)

// Result is retain()'s external contract per spec.md §6: the ids of units
// newly stored and the ids of existing units a fact deduplicated against.
type Result struct {
	Stored  []string
	Deduped []string
}

// Pipeline wires the dependencies Retain needs: storage, an embedding
// provider, and an LLM provider for fact extraction.
type Pipeline struct {
	db       *storage.DB
	embedder embedding.Provider
	llm      llmprovider.Provider
	logger   *logrus.Entry
}

func New(db *storage.DB, embedder embedding.Provider, llm llmprovider.Provider, logger *logrus.Entry) *Pipeline {
	return &Pipeline{db: db, embedder: embedder, llm: llm, logger: logger}
}

// Retain extracts facts from content, embeds and deduplicates them, links
// mentioned entities, and stores the survivors, per spec.md §4.5.
func (p *Pipeline) Retain(ctx context.Context, bankID, content string, extraContext *string) (Result, error) {
	if bankID == "" || content == "" {
		return Result{}, fmt.Errorf("retain: bank_id and content are required: %w", apperrors.ErrInvalidInput)
	}

	bank, err := p.db.GetBank(ctx, bankID)
	if err != nil {
		return Result{}, fmt.Errorf("retain: load bank: %w", err)
	}
	if bank == nil {
		return Result{}, fmt.Errorf("retain: bank %s not found: %w", bankID, apperrors.ErrInvalidInput)
	}

	userPrompt := buildExtractionPrompt(bank.Mission, content, extraContext)

	raw, err := p.llm.ExtractJSON(ctx, config.ExtractionModelID(), extractionSystemPrompt, userPrompt)
	if err != nil {
		return Result{}, fmt.Errorf("retain: extraction call: %w", err)
	}

	facts, skipped, err := parseFacts(raw)
	if err != nil {
		return Result{}, fmt.Errorf("retain: %w: %v", apperrors.ErrUpstreamUnavailable, err)
	}
	if skipped > 0 {
		p.logger.WithField("skipped", skipped).Warn("retain: discarded malformed extracted facts")
	}
	if len(facts) == 0 {
		return Result{}, nil
	}

	texts := make([]string, len(facts))
	for i, f := range facts {
		if extraContext != nil && *extraContext != "" {
			texts[i] = f.Text + "\n" + *extraContext
		} else {
			texts[i] = f.Text
		}
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("retain: embedding: %w", err)
	}

	result := Result{}
	for i, fact := range facts {
		id, duplicateOf, err := p.storeFact(ctx, bankID, fact, extraContext, vectors[i])
		if err != nil {
			return result, err
		}
		if duplicateOf != "" {
			result.Deduped = append(result.Deduped, duplicateOf)
			continue
		}
		result.Stored = append(result.Stored, id)
	}
	return result, nil
}

func (p *Pipeline) storeFact(ctx context.Context, bankID string, fact extractedFact, extraContext *string, vector []float32) (storedID, duplicateID string, err error) {
	tx, err := p.db.Pool().Begin(ctx)
	if err != nil {
		return "", "", fmt.Errorf("retain: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if dupID, found, err := findDuplicate(ctx, tx, bankID, fact, vector); err != nil {
		return "", "", err
	} else if found {
		if err := tx.Commit(ctx); err != nil {
			return "", "", fmt.Errorf("retain: commit dedup no-op: %w", err)
		}
		return "", dupID, nil
	}

	id, err := insertUnit(ctx, tx, bankID, fact, extraContext, vector)
	if err != nil {
		return "", "", err
	}

	for _, e := range fact.Entities {
		if e.Name == "" {
			continue
		}
		et := models.EntityType(e.Type)
		switch et {
		case models.EntityTypePerson, models.EntityTypeOrganization, models.EntityTypeLocation:
		default:
			et = models.EntityTypeOther
		}
		resolved, err := entity.Resolve(ctx, tx, bankID, e.Name, et)
		if err != nil {
			return "", "", fmt.Errorf("retain: resolve entity %q: %w", e.Name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO unit_entities (unit_id, entity_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			id, resolved.ID,
		); err != nil {
			return "", "", fmt.Errorf("retain: link entity: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", "", fmt.Errorf("retain: commit: %w", err)
	}
	return id, "", nil
}

func insertUnit(ctx context.Context, tx pgx.Tx, bankID string, fact extractedFact, extraContext *string, vector []float32) (string, error) {
	metadata, err := json.Marshal(map[string]any{})
	if err != nil {
		return "", fmt.Errorf("retain: marshal metadata: %w", err)
	}

	var id string
	err = tx.QueryRow(ctx,
		`INSERT INTO memory_units (
			bank_id, text, context, fact_type, fact_kind,
			what, who, when_description, where_description, why_description,
			event_date, mentioned_at, embedding, tags, metadata, proof_count, source_memory_ids
		 ) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, NOW(), $12, $13, $14, 0, ARRAY[]::uuid[]
		 ) RETURNING id`,
		bankID, fact.Text, extraContext, fact.FactType, fact.FactKind,
		fact.What, fact.Who, fact.WhenDescription, fact.WhereDescription, fact.WhyDescription,
		fact.EventDate, storage.VectorLiteral(vector), fact.Tags, metadata,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("retain: insert unit: %w", err)
	}
	return id, nil
}
