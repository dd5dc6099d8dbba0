package mentalmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// StampFreshness marks every trigger.refresh_after_consolidation model in
// bankID as "fresh" if its last_refreshed_at is within staleThresholdDays,
// "stale" otherwise. This is a supplemental diagnostic (freshness.py's
// coarse marker), independent of RefreshTouched's touched-set-driven
// refresh — operators read it to see at a glance which models are overdue
// without re-deriving it from last_refreshed_at.
func (s *Service) StampFreshness(ctx context.Context, bankID string) error {
	staleCutoff := time.Now().UTC().Add(-staleThresholdDays * 24 * time.Hour)

	rows, err := s.db.Pool().Query(ctx,
		`SELECT id, trigger, last_refreshed_at FROM mental_models
		 WHERE bank_id = $1 AND (trigger->>'refresh_after_consolidation')::boolean IS TRUE`,
		bankID,
	)
	if err != nil {
		return fmt.Errorf("mentalmodel: stamp freshness query: %w", err)
	}

	type target struct {
		id      string
		trigger json.RawMessage
		last    *time.Time
	}
	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.id, &t.trigger, &t.last); err != nil {
			rows.Close()
			return err
		}
		targets = append(targets, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, t := range targets {
		freshness := "stale"
		if t.last != nil && t.last.After(staleCutoff) {
			freshness = "fresh"
		}
		if err := applyFreshness(ctx, s, t.id, t.trigger, freshness); err != nil {
			s.logger.WithError(err).WithField("mental_model_id", t.id).Warn("mentalmodel: failed to stamp freshness")
		}
	}
	return nil
}

func applyFreshness(ctx context.Context, s *Service, id string, rawTrigger json.RawMessage, freshness string) error {
	var trigger map[string]any
	if err := json.Unmarshal(rawTrigger, &trigger); err != nil || trigger == nil {
		trigger = map[string]any{}
	}
	trigger["freshness"] = freshness
	encoded, err := json.Marshal(trigger)
	if err != nil {
		return err
	}
	_, err = s.db.Pool().Exec(ctx, `UPDATE mental_models SET trigger = $2 WHERE id = $1`, id, encoded)
	return err
}
