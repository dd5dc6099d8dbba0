package retain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"hindsight.dev/memoryengine/internal/models"
	"hindsight.dev/memoryengine/internal/storage"
)

// eventDedupCandidates bounds how many high-similarity rows are pulled back
// for the who/what overlap check below — cosine similarity alone can't pick
// a single winner, so a handful of top matches get that second check applied
// in Go rather than trying to express it in the ORDER BY.
const eventDedupCandidates = 5

// dedupSimilarityThreshold is the cosine-similarity floor above which a new
// fact is treated as a duplicate of an existing one, grounded on
// original_source/agentcore/memory/retain.py's dedup step.
const dedupSimilarityThreshold = 0.9

// eventBucketHours is the width of the time bucket event-kind facts are
// deduplicated within, per the original: bucket_start = hour // 12 * 12.
const eventBucketHours = 12

// findDuplicate returns the id of an existing unit this fact duplicates,
// if any, per spec.md §4.5 step 5. It must run inside the caller's
// transaction so the check and the eventual insert are atomic.
func findDuplicate(ctx context.Context, tx pgx.Tx, bankID string, fact extractedFact, embedding []float32) (string, bool, error) {
	vec := storage.VectorLiteral(embedding)

	if fact.FactKind != nil && *fact.FactKind == models.FactKindEvent {
		eventDate := time.Now().UTC()
		if fact.EventDate != nil {
			eventDate = *fact.EventDate
		}
		bucketStart := eventDate.Truncate(time.Hour)
		bucketStart = bucketStart.Add(-time.Duration(bucketStart.Hour()%eventBucketHours) * time.Hour)
		bucketEnd := bucketStart.Add(eventBucketHours * time.Hour)

		// spec.md §4.5 step 5: event-kind dedup requires cosine similarity
		// >= 0.9 *and* primary who/what overlap — a high-similarity
		// embedding alone isn't enough to call two facts about different
		// people or topics duplicates.
		rows, err := tx.Query(ctx,
			`SELECT id, who, what FROM memory_units
			 WHERE bank_id = $1 AND fact_kind = 'event'
			   AND event_date >= $2 AND event_date < $3
			   AND 1 - (embedding <=> $4::vector) >= $5
			 ORDER BY 1 - (embedding <=> $4::vector) DESC
			 LIMIT $6`,
			bankID, bucketStart, bucketEnd, vec, dedupSimilarityThreshold, eventDedupCandidates,
		)
		if err != nil {
			return "", false, fmt.Errorf("retain: dedup lookup: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			var who []string
			var what *string
			if err := rows.Scan(&id, &who, &what); err != nil {
				return "", false, fmt.Errorf("retain: dedup scan: %w", err)
			}
			if primaryOverlap(fact.Who, fact.What, who, what) {
				return id, true, nil
			}
		}
		return "", false, rows.Err()
	}

	if fact.FactKind != nil && *fact.FactKind == models.FactKindConversation {
		var id string
		err := tx.QueryRow(ctx,
			`SELECT id FROM memory_units
			 WHERE bank_id = $1 AND fact_kind = 'conversation'
			   AND 1 - (embedding <=> $2::vector) >= $3
			 ORDER BY 1 - (embedding <=> $2::vector) DESC
			 LIMIT 1`,
			bankID, vec, dedupSimilarityThreshold,
		).Scan(&id)
		return scanDupResult(id, err)
	}

	return "", false, nil
}

// primaryOverlap is the "primary who/what overlap" condition spec.md §4.5
// step 5 pairs with cosine similarity for event-kind dedup: the two facts'
// first-listed who or their what must match, case-insensitively.
func primaryOverlap(who1 []string, what1 *string, who2 []string, what2 *string) bool {
	if w := primaryWho(who1); w != "" && w == primaryWho(who2) {
		return true
	}
	if w := normalizedWhat(what1); w != "" && w == normalizedWhat(what2) {
		return true
	}
	return false
}

func primaryWho(who []string) string {
	if len(who) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(who[0]))
}

func normalizedWhat(what *string) string {
	if what == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*what))
}

func scanDupResult(id string, err error) (string, bool, error) {
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("retain: dedup lookup: %w", err)
	}
	return id, true, nil
}
