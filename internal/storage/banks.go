package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"hindsight.dev/memoryengine/internal/models"
)

// GetBank loads a bank's persona profile. Returns (nil, nil) if the bank
// does not exist — callers decide whether that is an error.
func (d *DB) GetBank(ctx context.Context, bankID string) (*models.Bank, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, mission, background, disposition, directives, created_at, updated_at
		FROM banks WHERE id = $1::uuid`, bankID)

	var (
		b              models.Bank
		dispositionRaw []byte
		directivesRaw  []byte
	)
	if err := row.Scan(&b.ID, &b.Mission, &b.Background, &dispositionRaw, &directivesRaw, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get bank: %w", err)
	}

	b.Disposition = models.DefaultDisposition()
	_ = json.Unmarshal(dispositionRaw, &b.Disposition)
	_ = json.Unmarshal(directivesRaw, &b.Directives)

	return &b, nil
}

// CreateBank inserts a new bank and returns its generated id.
func (d *DB) CreateBank(ctx context.Context, mission, background string, disposition models.Disposition, directives []string) (string, error) {
	dispositionRaw, err := json.Marshal(disposition)
	if err != nil {
		return "", fmt.Errorf("storage: marshal disposition: %w", err)
	}
	directivesRaw, err := json.Marshal(directives)
	if err != nil {
		return "", fmt.Errorf("storage: marshal directives: %w", err)
	}

	var id string
	err = d.pool.QueryRow(ctx, `
		INSERT INTO banks (mission, background, disposition, directives)
		VALUES ($1, $2, $3::jsonb, $4::jsonb)
		RETURNING id`, mission, background, dispositionRaw, directivesRaw).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("storage: create bank: %w", err)
	}
	return id, nil
}

// ListBankIDs returns every bank id, used by the scheduler to fan a
// consolidation pass out across tenants.
func (d *DB) ListBankIDs(ctx context.Context) ([]string, error) {
	rows, err := d.pool.Query(ctx, `SELECT id FROM banks ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list banks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage: scan bank id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
