package reflect

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"hindsight.dev/memoryengine/internal/storage"
)

// chunkSizeChars and chunkOverlapChars bound lazy passage splitting. A unit
// shorter than chunkSizeChars never needs chunking and expand just returns
// its text directly.
const (
	chunkSizeChars    = 1200
	chunkOverlapChars = 200
)

// expandUnitOrModel returns the full text behind a previously-seen id,
// trying memory_units first and falling back to mental_models, per
// spec.md §4.9's expand tool. For long unit text it materializes chunk
// rows on first access (Open Question resolution: chunks are lazy, not
// pre-split at Retain time) and returns the joined chunk text, so a
// second expand of the same id reuses the stored rows instead of
// re-splitting.
func (s *Service) expandUnitOrModel(ctx context.Context, bankID, id string) (string, error) {
	var text string
	err := s.db.Pool().QueryRow(ctx,
		`SELECT text FROM memory_units WHERE id = $1 AND bank_id = $2`, id, bankID,
	).Scan(&text)
	if err == nil {
		return s.expandChunked(ctx, id, text)
	}
	if err != pgx.ErrNoRows {
		return "", fmt.Errorf("reflect: expand unit: %w", err)
	}

	err = s.db.Pool().QueryRow(ctx,
		`SELECT content FROM mental_models WHERE id = $1 AND bank_id = $2`, id, bankID,
	).Scan(&text)
	if err == nil {
		return text, nil
	}
	if err != pgx.ErrNoRows {
		return "", fmt.Errorf("reflect: expand mental model: %w", err)
	}
	return "", fmt.Errorf("reflect: id %s not found in this bank", id)
}

func (s *Service) expandChunked(ctx context.Context, unitID, fullText string) (string, error) {
	if len(fullText) <= chunkSizeChars {
		return fullText, nil
	}

	existing, err := loadChunks(ctx, s.db.Pool(), unitID)
	if err != nil {
		return "", fmt.Errorf("reflect: load chunks: %w", err)
	}
	if len(existing) == 0 {
		existing, err = materializeChunks(ctx, s.db.Pool(), unitID, fullText)
		if err != nil {
			return "", fmt.Errorf("reflect: materialize chunks: %w", err)
		}
	}

	parts := make([]string, len(existing))
	for i, c := range existing {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n\n"), nil
}

func loadChunks(ctx context.Context, db storage.Querier, unitID string) ([]chunkRow, error) {
	rows, err := db.Query(ctx, `SELECT text FROM chunks WHERE unit_id = $1 ORDER BY ordinal ASC`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chunkRow
	for rows.Next() {
		var c chunkRow
		if err := rows.Scan(&c.Text); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func materializeChunks(ctx context.Context, db storage.Querier, unitID, fullText string) ([]chunkRow, error) {
	parts := splitChunks(fullText, chunkSizeChars, chunkOverlapChars)
	out := make([]chunkRow, len(parts))
	for i, p := range parts {
		if _, err := db.Exec(ctx,
			`INSERT INTO chunks (unit_id, ordinal, text) VALUES ($1, $2, $3)
			 ON CONFLICT (unit_id, ordinal) DO NOTHING`,
			unitID, i, p,
		); err != nil {
			return nil, err
		}
		out[i] = chunkRow{Text: p}
	}
	return out, nil
}

type chunkRow struct {
	Text string
}

// splitChunks breaks text into overlapping windows so a chunk boundary
// never strands a sentence without any surrounding context in its neighbor.
func splitChunks(text string, size, overlap int) []string {
	if len(text) <= size {
		return []string{text}
	}
	var parts []string
	for start := 0; start < len(text); {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[start:end])
		if end == len(text) {
			break
		}
		start = end - overlap
	}
	return parts
}
