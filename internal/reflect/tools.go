package reflect

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hindsight.dev/memoryengine/internal/llmprovider"
	"hindsight.dev/memoryengine/internal/models"
	"hindsight.dev/memoryengine/internal/recall"
)

// toolCatalog is the fixed 5-tool catalog Reflect offers the model every
// turn, per spec.md §4.9. bank_id is never one of a tool's parameters —
// every handler closes over the bankID Reflect was called with, so a
// prompt-injected "switch to bank X" instruction inside retrieved content
// cannot redirect a tool call to another tenant's data.
func toolCatalog() []llmprovider.ToolSpec {
	return []llmprovider.ToolSpec{
		{
			Name:        "search_mental_models",
			Description: "Search this bank's curated entity summaries for ones relevant to a query.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":       map[string]any{"type": "string"},
					"max_results": map[string]any{"type": "integer", "description": "clamped to <= 20"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "search_observations",
			Description: "Search this bank's consolidated observation memories for ones relevant to a query.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":       map[string]any{"type": "string"},
					"max_results": map[string]any{"type": "integer", "description": "clamped to <= 50"},
					"tags":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "recall",
			Description: "Run a full hybrid recall search over this bank's raw memories for a query (observations excluded).",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":       map[string]any{"type": "string"},
					"max_results": map[string]any{"type": "integer", "description": "clamped to <= 100"},
					"filters":     map[string]any{"type": "object", "properties": map[string]any{"tags": map[string]any{"type": "array", "items": map[string]any{"type": "string"}}}},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "expand",
			Description: "Fetch the full text of a previously returned memory or mental model by unit_id, for when a summary needs more detail.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"unit_id": map[string]any{"type": "string"}},
				"required":   []string{"unit_id"},
			},
		},
		{
			Name:        "done",
			Description: "Call this once you can answer the query, citing only ids you retrieved with another tool this conversation.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"answer":    map[string]any{"type": "string"},
					"cited_ids": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"answer", "cited_ids"},
			},
		},
	}
}

// clampMaxResults reads max_results from a tool call's input, defaulting to
// def and clamping to the per-tool ceiling the spec.md §4.9 catalog sets.
func clampMaxResults(input map[string]any, def, max int) int {
	n := def
	if v, ok := input["max_results"].(float64); ok && v > 0 {
		n = int(v)
	}
	if n > max {
		n = max
	}
	return n
}

func stringSliceInput(input map[string]any, key string) []string {
	raw, ok := input[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// toolContext carries the per-invocation state a tool handler needs:
// bankID closed over for tenant isolation, and the running set of ids this
// conversation has legitimately seen, for citation validation.
type toolContext struct {
	bankID    string
	available map[string]bool
}

func (tc *toolContext) remember(ids ...string) {
	for _, id := range ids {
		tc.available[id] = true
	}
}

func (s *Service) dispatchTool(ctx context.Context, tc *toolContext, call llmprovider.ToolCall) (string, bool, error) {
	switch call.Name {
	case "search_mental_models":
		return s.toolSearchMentalModels(ctx, tc, call.Input)
	case "search_observations":
		return s.toolSearchObservations(ctx, tc, call.Input)
	case "recall":
		return s.toolRecall(ctx, tc, call.Input)
	case "expand":
		return s.toolExpand(ctx, tc, call.Input)
	case "done":
		return "", true, nil
	default:
		return fmt.Sprintf("unknown tool %q", call.Name), false, nil
	}
}

// maxResultsSearchMentalModels, maxResultsSearchObservations, and
// maxResultsRecall are the per-tool ceilings spec.md §4.9's catalog table
// sets ("max_results clamped to <= 20/50/100").
const (
	maxResultsSearchMentalModels = 20
	maxResultsSearchObservations = 50
	maxResultsRecall             = 100
)

func (s *Service) toolSearchMentalModels(ctx context.Context, tc *toolContext, input map[string]any) (string, bool, error) {
	query, _ := input["query"].(string)
	maxResults := clampMaxResults(input, 10, maxResultsSearchMentalModels)
	matches, err := s.mentalModels.Search(ctx, tc.bankID, query, nil, maxResults)
	if err != nil {
		return "", false, err
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	tc.remember(ids...)
	return encodeToolResult(matches), false, nil
}

func (s *Service) toolSearchObservations(ctx context.Context, tc *toolContext, input map[string]any) (string, bool, error) {
	query, _ := input["query"].(string)
	results, err := s.recall.Recall(ctx, recall.Query{
		BankID:     tc.bankID,
		Text:       query,
		MaxResults: clampMaxResults(input, 20, maxResultsSearchObservations),
		FactTypes:  []models.FactType{models.FactTypeObservation},
		Tags:       stringSliceInput(input, "tags"),
		TimeRange:  queryTimeRange(query),
	})
	if err != nil {
		return "", false, err
	}
	results, err = s.reranker.Rerank(ctx, query, results)
	if err != nil {
		return "", false, err
	}
	tc.remember(resultIDs(results)...)
	return encodeToolResult(results), false, nil
}

func (s *Service) toolRecall(ctx context.Context, tc *toolContext, input map[string]any) (string, bool, error) {
	query, _ := input["query"].(string)
	var tags []string
	if filters, ok := input["filters"].(map[string]any); ok {
		tags = stringSliceInput(filters, "tags")
	}
	results, err := s.recall.Recall(ctx, recall.Query{
		BankID:     tc.bankID,
		Text:       query,
		MaxResults: clampMaxResults(input, 30, maxResultsRecall),
		FactTypes:  []models.FactType{models.FactTypeWorld, models.FactTypeExperience},
		Tags:       tags,
		TimeRange:  queryTimeRange(query),
	})
	if err != nil {
		return "", false, err
	}
	results, err = s.reranker.Rerank(ctx, query, results)
	if err != nil {
		return "", false, err
	}
	tc.remember(resultIDs(results)...)
	return encodeToolResult(results), false, nil
}

// queryTimeRange extracts an optional relative-period filter ("yesterday",
// "last week") from a tool call's query text, per spec.md §4.9's guidance to
// let Reflect narrow recall by recency when the question implies it.
func queryTimeRange(query string) *recall.TimeRange {
	tr, ok := recall.ExtractTimeRange(query, time.Now())
	if !ok {
		return nil
	}
	return &tr
}

func (s *Service) toolExpand(ctx context.Context, tc *toolContext, input map[string]any) (string, bool, error) {
	id, _ := input["unit_id"].(string)
	if !tc.available[id] {
		return "id not previously retrieved in this conversation", false, nil
	}
	text, err := s.expandUnitOrModel(ctx, tc.bankID, id)
	if err != nil {
		return "", false, err
	}
	return text, false, nil
}

func resultIDs(results []recall.Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.UnitID
	}
	return ids
}

func encodeToolResult(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
