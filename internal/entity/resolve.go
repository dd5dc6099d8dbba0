// Package entity implements C4 from spec.md §4.4: resolving a mentioned
// name to a canonical entity row within a bank, creating one if no
// sufficiently similar entity exists yet.
package entity

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"hindsight.dev/memoryengine/internal/models"
)

// ScoreThreshold is spec.md §4.4's trigram similarity floor: a candidate
// must score at least this well against pg_trgm's similarity() to be
// treated as the same entity instead of a new one.
const ScoreThreshold = 0.6

// TieBreakMargin is how close two trigram candidates' scores must be
// before the supplemental most-recently-seen tie-break in tiebreak.go is
// consulted. Below this margin the top trigram score wins outright.
const TieBreakMargin = 0.03

const candidateLimit = 5

// Resolved describes the entity a mention was matched (or newly assigned)
// to.
type Resolved struct {
	ID      string
	Created bool
}

type candidate struct {
	id         string
	name       string
	similarity float64
	lastSeen   time.Time
}

// Resolve maps name to a canonical entity id within bankID, per spec.md
// §4.4: exact case-insensitive match first, then the best pg_trgm
// candidate at or above ScoreThreshold, else a freshly inserted entity.
// It must run inside the same transaction as the calling Retain/
// Consolidation write so entity creation and the unit_entities link it
// backs are atomic.
func Resolve(ctx context.Context, tx pgx.Tx, bankID, name string, entityType models.EntityType) (Resolved, error) {
	if exact, ok, err := findExact(ctx, tx, bankID, name); err != nil {
		return Resolved{}, err
	} else if ok {
		if err := touchEntity(ctx, tx, exact); err != nil {
			return Resolved{}, err
		}
		return Resolved{ID: exact}, nil
	}

	candidates, err := findTrigramCandidates(ctx, tx, bankID, name)
	if err != nil {
		return Resolved{}, err
	}
	if len(candidates) == 0 {
		id, err := insertEntity(ctx, tx, bankID, name, entityType)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{ID: id, Created: true}, nil
	}

	chosen := candidates[0]
	if len(candidates) > 1 && candidates[0].similarity-candidates[1].similarity <= TieBreakMargin {
		tied := make([]candidate, 0, len(candidates))
		for _, c := range candidates {
			if candidates[0].similarity-c.similarity <= TieBreakMargin {
				tied = append(tied, c)
			}
		}
		best, err := tieBreak(ctx, tx, bankID, tied)
		if err != nil {
			return Resolved{}, err
		}
		chosen = best
	}

	if err := touchEntity(ctx, tx, chosen.id); err != nil {
		return Resolved{}, err
	}
	return Resolved{ID: chosen.id}, nil
}

func findExact(ctx context.Context, tx pgx.Tx, bankID, name string) (string, bool, error) {
	var id string
	err := tx.QueryRow(ctx,
		`SELECT id FROM entities WHERE bank_id = $1 AND LOWER(canonical_name) = LOWER($2)`,
		bankID, name,
	).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("entity: exact match lookup: %w", err)
	}
	return id, true, nil
}

func findTrigramCandidates(ctx context.Context, tx pgx.Tx, bankID, name string) ([]candidate, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, canonical_name, similarity(canonical_name, $2) AS sim, last_seen
		 FROM entities
		 WHERE bank_id = $1 AND similarity(canonical_name, $2) >= $3
		 ORDER BY sim DESC
		 LIMIT $4`,
		bankID, name, ScoreThreshold, candidateLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("entity: trigram candidate lookup: %w", err)
	}
	defer rows.Close()

	var out []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.name, &c.similarity, &c.lastSeen); err != nil {
			return nil, fmt.Errorf("entity: scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func insertEntity(ctx context.Context, tx pgx.Tx, bankID, name string, entityType models.EntityType) (string, error) {
	var id string
	err := tx.QueryRow(ctx,
		`INSERT INTO entities (bank_id, canonical_name, entity_type, mention_count, first_seen, last_seen)
		 VALUES ($1, $2, $3, 1, NOW(), NOW())
		 RETURNING id`,
		bankID, name, entityType,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("entity: insert: %w", err)
	}
	return id, nil
}

func touchEntity(ctx context.Context, tx pgx.Tx, id string) error {
	_, err := tx.Exec(ctx,
		`UPDATE entities SET mention_count = mention_count + 1, last_seen = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("entity: touch: %w", err)
	}
	return nil
}
