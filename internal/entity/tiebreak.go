package entity

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// tieBreak picks among trigram candidates that landed within
// TieBreakMargin of each other. spec.md §4.4 only specifies the trigram
// algorithm; original_source/agentcore/memory/entity.py additionally
// weighs co-occurrence overlap and temporal proximity when two names are
// both plausible matches. Resolve only has the single mentioned name in
// scope (not the full batch of co-mentioned entities the original scores
// against), so this applies the original's temporal factor alone: the
// most recently mentioned candidate wins, since a name that hasn't been
// seen in a long time is the less likely referent for a fresh mention.
func tieBreak(_ context.Context, _ pgx.Tx, _ string, tied []candidate) (candidate, error) {
	best := tied[0]
	for _, c := range tied[1:] {
		if c.lastSeen.After(best.lastSeen) {
			best = c
		}
	}
	return best, nil
}
