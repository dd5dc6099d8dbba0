// Package llmprovider implements the memory engine's two LLM call shapes
// from spec.md §4.3: deterministic JSON-array extraction and tool-use
// conversation turns. Grounded on the teacher's
// internal/llm/providers/claude/claude.go HTTP client (retry/backoff,
// message conversion, system-prompt separation) and on
// original_source/agentcore/memory/reflect.py's Converse-with-tools turn
// shape (messages history, tool_use stop reason, toolResult echo).
package llmprovider

import "context"

// Message is one turn in a tool-use conversation. Role is "user" or
// "assistant"; ToolResults carries results to echo back after a tool_use
// turn, exactly as spec.md §4.3 requires ("the provider MUST echo every
// tool result back into the next turn's context").
type Message struct {
	Role       string
	Text       string
	ToolCalls  []ToolCall
	ToolResults []ToolResult
}

// ToolSpec describes one entry of Reflect's fixed tool catalog.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult is the outcome of executing one ToolCall, echoed back to the
// model on the next turn.
type ToolResult struct {
	ToolCallID string
	Content    string
}

// ConverseResult is the outcome of one tool-use turn.
type ConverseResult struct {
	StopReason string // "tool_use" or "end_turn"
	Text       string
	ToolCalls  []ToolCall
}

// Provider is the engine's LLM provider contract.
type Provider interface {
	// ExtractJSON performs a deterministic (temperature 0.0) call that
	// must return a JSON array. Used by Retain's extraction and
	// Consolidation's classification.
	ExtractJSON(ctx context.Context, model, systemPrompt, userPrompt string) ([]byte, error)

	// Converse performs one tool-use turn. messages is the full
	// conversation history so far; tools is the fixed catalog offered this
	// turn.
	Converse(ctx context.Context, model, systemPrompt string, messages []Message, tools []ToolSpec) (*ConverseResult, error)
}
