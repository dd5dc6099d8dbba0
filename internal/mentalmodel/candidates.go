package mentalmodel

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"hindsight.dev/memoryengine/internal/models"
)

// candidateObservationFloor is the original's gate for generating a mental
// model at all: an entity needs at least this many observations before a
// summary is worth writing.
const candidateObservationFloor = 5

// minGeneratedContentLength rejects a generation attempt that produced
// something too thin to be useful (the LLM declining, or echoing back a
// single short sentence).
const minGeneratedContentLength = 50

// GenerateCandidates finds up to limit entities among touchedEntityIDs (the
// entities a consolidation run just produced or updated observations for)
// that have enough observations and no existing mental model, and generates
// one for each. Returns the number successfully created. Per spec.md §4.8,
// the candidate set is derived from the observations touched in a
// consolidation run, not an unbounded scan of the whole bank.
func (s *Service) GenerateCandidates(ctx context.Context, bankID string, touchedEntityIDs []string, limit int) (int, error) {
	if len(touchedEntityIDs) == 0 {
		return 0, nil
	}
	candidates, err := findCandidateEntities(ctx, s.db.Pool(), bankID, touchedEntityIDs, limit)
	if err != nil {
		return 0, fmt.Errorf("mentalmodel: find candidates: %w", err)
	}

	created := 0
	for _, c := range candidates {
		ok, err := s.generateForEntity(ctx, bankID, c)
		if err != nil {
			s.logger.WithError(err).WithField("entity_id", c.entityID).Warn("mentalmodel: generation failed for candidate")
			continue
		}
		if ok {
			created++
		}
	}
	return created, nil
}

type candidateEntity struct {
	entityID        string
	canonicalName   string
	observationIDs  []string
	observationTags [][]string
}

// findCandidateEntities is duplicate-prevention layer 1: the LEFT JOIN
// excludes any entity that already has a mental model row. The entity set
// is restricted to touchedEntityIDs, per spec.md §4.8's "candidate set is
// derived from the observations touched in a consolidation run".
func findCandidateEntities(ctx context.Context, pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, bankID string, touchedEntityIDs []string, limit int) ([]candidateEntity, error) {
	rows, err := pool.Query(ctx,
		`SELECT e.id, e.canonical_name,
		        array_agg(mu.id) AS obs_ids, array_agg(mu.tags) AS obs_tags
		 FROM entities e
		 JOIN unit_entities ue ON ue.entity_id = e.id
		 JOIN memory_units mu ON mu.id = ue.unit_id AND mu.fact_type = 'observation'
		 LEFT JOIN mental_models mm ON mm.entity_id = e.id
		 WHERE e.bank_id = $1 AND e.id = ANY($2) AND mm.id IS NULL
		 GROUP BY e.id, e.canonical_name
		 HAVING COUNT(mu.id) >= $3
		 LIMIT $4`,
		bankID, touchedEntityIDs, candidateObservationFloor, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []candidateEntity
	for rows.Next() {
		var c candidateEntity
		if err := rows.Scan(&c.entityID, &c.canonicalName, &c.observationIDs, &c.observationTags); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Service) generateForEntity(ctx context.Context, bankID string, c candidateEntity) (bool, error) {
	query := defaultMentalModelQuery(c.canonicalName)
	content, err := s.reflectSummary(ctx, bankID, query)
	if err != nil {
		return false, fmt.Errorf("reflect: %w", err)
	}
	if len(content) < minGeneratedContentLength {
		return false, nil
	}

	// Duplicate-prevention layer 2: re-check immediately before insert,
	// in case a concurrent run created a model for this entity (or a
	// near-duplicate name) since findCandidateEntities ran.
	if dup, err := hasEntityOrSimilarNameModel(ctx, s.db.Pool(), bankID, c.entityID, c.canonicalName); err != nil {
		return false, err
	} else if dup {
		return false, nil
	}

	entityID := c.entityID
	tags := intersectTags(c.observationTags)
	_, err = s.Create(ctx, bankID, c.canonicalName, content, &entityID, &models.MentalModelTrigger{RefreshAfterConsolidation: true}, c.observationIDs, tags, &query)
	if err != nil {
		// Duplicate-prevention layer 3: the unique partial index on
		// (bank_id, entity_id) is the backstop if two workers raced past
		// layer 2; a unique violation here is an expected skip, not an
		// error to propagate.
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// intersectTags returns the tags shared by every observation, per spec.md
// §4.8's "tags inherited from the contributing observations (intersection)".
// An observation with no tags makes the intersection empty.
func intersectTags(perObservation [][]string) []string {
	if len(perObservation) == 0 {
		return nil
	}
	counts := map[string]int{}
	for _, tags := range perObservation {
		seen := map[string]bool{}
		for _, t := range tags {
			if !seen[t] {
				counts[t]++
				seen[t] = true
			}
		}
	}
	var out []string
	for tag, n := range counts {
		if n == len(perObservation) {
			out = append(out, tag)
		}
	}
	return out
}

func hasEntityOrSimilarNameModel(ctx context.Context, pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, bankID, entityID, name string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM mental_models
			WHERE bank_id = $1 AND (entity_id = $2 OR similarity(name, $3) >= $4)
		 )`,
		bankID, entityID, name, nameSimilarityThreshold,
	).Scan(&exists)
	return exists, err
}

// uniqueViolationCode is Postgres's SQLSTATE for a unique constraint
// violation, raised here by the (bank_id, entity_id) partial index.
const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// maxReflectIterations caps the bounded tool-use loop Generate/Refresh run
// through, per spec.md §4.8's "call Reflect ... up to 5 iterations" — lower
// than C9's own default cap of 10, since a mental-model summary needs less
// exploration than an arbitrary user query.
const maxReflectIterations = 5

// defaultMentalModelQuery builds the Reflect query "derived from the
// entity's canonical name" per spec.md §4.8's generation step; RefreshTouched
// reuses a model's stored source_query instead once one exists.
func defaultMentalModelQuery(entityName string) string {
	return fmt.Sprintf("Write a concise, factual mental-model summary (under 200 words) of everything known about %s. Rely only on retrieved observations and mental models; do not speculate beyond what they state.", entityName)
}

// reflectSummary runs the bounded Reflect loop and returns its answer text,
// replacing the one-shot LLM call the original generateForEntity/
// RefreshTouched made: content is now grounded in whatever evidence the
// loop actually retrieved via its tools rather than a pre-fetched text dump.
func (s *Service) reflectSummary(ctx context.Context, bankID, query string) (string, error) {
	return s.reflector.Reflect(ctx, bankID, query, maxReflectIterations)
}
