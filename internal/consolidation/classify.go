package consolidation

import (
	"context"
	"encoding/json"
	"fmt"

	"hindsight.dev/memoryengine/internal/config"
	"hindsight.dev/memoryengine/internal/llmprovider"
	"hindsight.dev/memoryengine/internal/models"
)

type actionType string

const (
	actionCreate actionType = "create"
	actionUpdate actionType = "update"
	actionSkip   actionType = "skip"
)

// action is the LLM's classification decision for one fact, grounded on
// consolidation.py's _consolidate_with_llm. Target is the existing
// observation id for an update action.
type action struct {
	Type    actionType
	Target  string
	Content string
}

const classifySystemPrompt = `You maintain a set of durable "observation" memories that summarize
related raw facts over time. Given a new fact and a list of existing
observations that might already cover it, decide ONE action:
  "create" — no existing observation covers this, write a new one
  "update" — one existing observation should absorb this fact; give its id
             as "target" and the observation's updated full text as "content"
  "skip"   — the fact adds nothing new beyond what is already captured
Rules:
  - Extract only DURABLE knowledge (stable facts, traits, preferences), never
    ephemeral state (a one-off mood, a transient location, a passing remark).
  - Never choose "update" for an observation about different people or
    entities than the new fact; compare the "who" each one names. If they
    do not overlap, the fact cannot update that observation.
  - Never merge facts about unrelated topics into one observation, even for
    the same person.
  - If the new fact contradicts an existing observation, the updated
    content must state both using a temporal marker ("used to X; now Y"),
    never silently discard the earlier state.
Return ONLY a JSON array with exactly one object:
[{"action": "create"|"update"|"skip", "target": "<id or null>", "content": "<text or null>"}]`

func (w *Worker) classify(ctx context.Context, bank *models.Bank, fact models.MemoryUnit, related []models.MemoryUnit) (action, error) {
	if len(related) == 0 {
		return action{Type: actionCreate, Content: fact.Text}, nil
	}

	userPrompt := buildClassifyPrompt(bank, fact, related)
	raw, err := w.llm.ExtractJSON(ctx, config.ConsolidationModelID(), classifySystemPrompt, userPrompt)
	if err != nil {
		return action{}, fmt.Errorf("consolidation: classify call: %w", err)
	}

	items, err := llmprovider.ExtractJSONArray(raw)
	if err != nil || len(items) == 0 {
		// Fail safe to create rather than lose the fact, per the
		// original's bias toward never silently dropping a source memory.
		return action{Type: actionCreate, Content: fact.Text}, nil
	}

	var parsed struct {
		Action  string  `json:"action"`
		Target  *string `json:"target"`
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(items[0], &parsed); err != nil {
		return action{Type: actionCreate, Content: fact.Text}, nil
	}

	switch actionType(parsed.Action) {
	case actionCreate:
		content := fact.Text
		if parsed.Content != nil && *parsed.Content != "" {
			content = *parsed.Content
		}
		return action{Type: actionCreate, Content: content}, nil
	case actionUpdate:
		if parsed.Target == nil || *parsed.Target == "" {
			return action{Type: actionCreate, Content: fact.Text}, nil
		}
		target := relatedByID(*parsed.Target, related)
		if target == nil {
			return action{Type: actionCreate, Content: fact.Text}, nil
		}
		// An update that crosses "who" is never valid, per spec.md §4.7
		// step 3b: a fact about one person cannot absorb into an
		// observation about someone else.
		if !whoOverlaps(fact.Who, target.Who) {
			return action{Type: actionCreate, Content: fact.Text}, nil
		}
		content := fact.Text
		if parsed.Content != nil && *parsed.Content != "" {
			content = *parsed.Content
		}
		return action{Type: actionUpdate, Target: *parsed.Target, Content: content}, nil
	case actionSkip:
		return action{Type: actionSkip}, nil
	default:
		return action{Type: actionCreate, Content: fact.Text}, nil
	}
}

func relatedByID(id string, related []models.MemoryUnit) *models.MemoryUnit {
	for i := range related {
		if related[i].ID == id {
			return &related[i]
		}
	}
	return nil
}

// whoOverlaps reports whether two "who" lists share at least one name. An
// empty factWho (the fact names no one in particular) is treated as
// unrestricted and overlaps with anything, matching the original's
// permissive default when extraction didn't populate who.
func whoOverlaps(factWho, observationWho []string) bool {
	if len(factWho) == 0 {
		return true
	}
	if len(observationWho) == 0 {
		return false
	}
	seen := make(map[string]bool, len(observationWho))
	for _, w := range observationWho {
		seen[w] = true
	}
	for _, w := range factWho {
		if seen[w] {
			return true
		}
	}
	return false
}

func buildClassifyPrompt(bank *models.Bank, fact models.MemoryUnit, related []models.MemoryUnit) string {
	s := fmt.Sprintf("Bank mission: %s\n\nNew fact (who=%v):\n%s\n\nExisting observations:\n", bank.Mission, fact.Who, fact.Text)
	for _, r := range related {
		s += fmt.Sprintf("- id=%s (who=%v): %s\n", r.ID, r.Who, r.Text)
	}
	return s
}
