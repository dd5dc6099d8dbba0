package recall

import (
	"context"
	"fmt"
	"time"

	"hindsight.dev/memoryengine/internal/models"
	"hindsight.dev/memoryengine/internal/storage"
)

func (s *Searcher) semanticSearch(ctx context.Context, q Query, queryVector []float32) ([]rankedUnit, error) {
	where, args := filterClause(q, 2)
	sql := fmt.Sprintf(`
		SELECT id FROM memory_units
		WHERE bank_id = $1 %s
		ORDER BY embedding <=> $%d::vector ASC, created_at DESC
		LIMIT %d`,
		where, len(args)+2, perListLimit,
	)
	allArgs := append([]any{q.BankID}, args...)
	allArgs = append(allArgs, storage.VectorLiteral(queryVector))

	rows, err := s.db.Pool().Query(ctx, sql, allArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRanked(rows)
}

func (s *Searcher) lexicalSearch(ctx context.Context, q Query) ([]rankedUnit, error) {
	where, args := filterClause(q, 3)
	sql := fmt.Sprintf(`
		SELECT id FROM memory_units
		WHERE bank_id = $1
		  AND search_vector @@ websearch_to_tsquery('simple', $2) %s
		ORDER BY ts_rank(search_vector, websearch_to_tsquery('simple', $2)) DESC, created_at DESC
		LIMIT %d`,
		where, perListLimit,
	)
	allArgs := append([]any{q.BankID, q.Text}, args...)

	rows, err := s.db.Pool().Query(ctx, sql, allArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRanked(rows)
}

func scanRanked(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]rankedUnit, error) {
	var out []rankedUnit
	rank := 1
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, rankedUnit{unitID: id, rank: rank})
		rank++
	}
	return out, rows.Err()
}

// filterClause builds the optional fact_type/tags filter fragment shared by
// both searches. argStart is the placeholder index the fragment's first
// argument should use.
func filterClause(q Query, argStart int) (string, []any) {
	clause := ""
	var args []any
	next := argStart

	if len(q.FactTypes) > 0 {
		types := make([]string, len(q.FactTypes))
		for i, t := range q.FactTypes {
			types[i] = string(t)
		}
		clause += fmt.Sprintf(" AND fact_type = ANY($%d)", next)
		args = append(args, types)
		next++
	}
	if len(q.Tags) > 0 {
		clause += fmt.Sprintf(" AND tags && $%d", next)
		args = append(args, q.Tags)
		next++
	}
	if q.TimeRange != nil {
		clause += fmt.Sprintf(" AND mentioned_at >= $%d AND mentioned_at < $%d", next, next+1)
		args = append(args, q.TimeRange.Start, q.TimeRange.End)
		next += 2
	}
	return clause, args
}

func (s *Searcher) hydrate(ctx context.Context, bankID string, fused map[string]*Result) (map[string]*Result, error) {
	if len(fused) == 0 {
		return fused, nil
	}
	ids := make([]string, 0, len(fused))
	for id := range fused {
		ids = append(ids, id)
	}

	rows, err := s.db.Pool().Query(ctx,
		`SELECT id, text, fact_type, tags, created_at FROM memory_units WHERE bank_id = $1 AND id = ANY($2)`,
		bankID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("recall: hydrate: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id        string
			text      string
			factType  models.FactType
			tags      []string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &text, &factType, &tags, &createdAt); err != nil {
			return nil, fmt.Errorf("recall: hydrate scan: %w", err)
		}
		if r, ok := fused[id]; ok {
			r.Text = text
			r.FactType = factType
			r.Tags = tags
			r.CreatedAt = createdAt
		}
	}
	return fused, rows.Err()
}
