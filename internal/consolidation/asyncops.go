package consolidation

import (
	"context"
	"encoding/json"

	"hindsight.dev/memoryengine/internal/storage"
)

// recordFailure surfaces a persistent per-fact consolidation failure through
// async_operations, per spec.md §4.7/§7: "Persistent failures surface
// through async_operations with status = failed." The fact itself is left
// unconsolidated so a later Run retries it; this row is the operator-visible
// trail of the attempt that didn't make it.
func recordFailure(ctx context.Context, pool storage.Querier, bankID, factID string, cause error) error {
	payload, err := json.Marshal(map[string]any{"fact_id": factID})
	if err != nil {
		return err
	}
	errMsg := cause.Error()
	_, err = pool.Exec(ctx,
		`INSERT INTO async_operations (bank_id, operation_type, status, payload, error_message, started_at, completed_at)
		 VALUES ($1, 'consolidation', 'failed', $2, $3, NOW(), NOW())`,
		bankID, payload, errMsg,
	)
	return err
}
