package llmprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ClaudeProvider calls the Anthropic Messages API. Grounded on the
// teacher's internal/llm/providers/claude/claude.go: the same wire types
// (system prompt split out of the messages array, content-block responses)
// and the same exponential-backoff-on-retryable-status posture — but here
// the retry loop is the pack's own github.com/cenkalti/backoff/v5 instead
// of the teacher's hand-rolled waitWithJitter, and tool_use content blocks
// are added since Reflect (spec.md §4.9) requires them and the teacher's
// snapshot of this file predates that feature.
type ClaudeProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

func NewClaudeProvider(apiKey string) *ClaudeProvider {
	return &ClaudeProvider{
		apiKey:     apiKey,
		baseURL:    "https://api.anthropic.com/v1",
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxRetries: 3,
	}
}

type claudeMessage struct {
	Role    string          `json:"role"`
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type claudeTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	Tools       []claudeTool    `json:"tools,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type claudeResponse struct {
	StopReason string          `json:"stop_reason"`
	Content    []claudeContent `json:"content"`
}

// ExtractJSON performs a deterministic (temperature 0.0) extraction call
// and returns the raw response text for the caller to parse with
// ExtractJSONArray.
func (p *ClaudeProvider) ExtractJSON(ctx context.Context, model, systemPrompt, userPrompt string) ([]byte, error) {
	req := claudeRequest{
		Model:       model,
		System:      systemPrompt,
		Messages:    []claudeMessage{{Role: "user", Content: []claudeContent{{Type: "text", Text: userPrompt}}}},
		MaxTokens:   2048,
		Temperature: 0.0,
	}

	resp, err := p.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return []byte(firstText(resp.Content)), nil
}

// Converse performs one tool-use turn, per spec.md §4.3.
func (p *ClaudeProvider) Converse(ctx context.Context, model, systemPrompt string, messages []Message, tools []ToolSpec) (*ConverseResult, error) {
	req := claudeRequest{
		Model:       model,
		System:      systemPrompt,
		Messages:    toClaudeMessages(messages),
		Tools:       toClaudeTools(tools),
		MaxTokens:   4096,
		Temperature: 1.0,
	}

	resp, err := p.call(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &ConverseResult{StopReason: resp.StopReason, Text: firstText(resp.Content)}
	for _, c := range resp.Content {
		if c.Type == "tool_use" {
			result.ToolCalls = append(result.ToolCalls, ToolCall{ID: c.ID, Name: c.Name, Input: c.Input})
		}
	}
	return result, nil
}

func (p *ClaudeProvider) call(ctx context.Context, body claudeRequest) (*claudeResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llmprovider: marshal request: %w", err)
	}

	op := func() (*claudeResponse, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(payload))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("llmprovider: build request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", p.apiKey)
		httpReq.Header.Set("anthropic-version", "2023-06-01")

		httpResp, err := p.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("llmprovider: request failed: %w", err)
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode != http.StatusOK {
			err := fmt.Errorf("llmprovider: upstream status %d", httpResp.StatusCode)
			if isRetryableStatus(httpResp.StatusCode) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}

		var parsed claudeResponse
		if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("llmprovider: decode response: %w", err))
		}
		return &parsed, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(p.maxRetries+1)),
	)
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func firstText(content []claudeContent) string {
	for _, c := range content {
		if c.Type == "text" {
			return c.Text
		}
	}
	return ""
}

func toClaudeMessages(messages []Message) []claudeMessage {
	out := make([]claudeMessage, 0, len(messages))
	for _, m := range messages {
		var content []claudeContent
		if m.Text != "" {
			content = append(content, claudeContent{Type: "text", Text: m.Text})
		}
		for _, tc := range m.ToolCalls {
			content = append(content, claudeContent{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: tc.Input})
		}
		for _, tr := range m.ToolResults {
			content = append(content, claudeContent{Type: "tool_result", ToolUseID: tr.ToolCallID, Content: tr.Content})
		}
		out = append(out, claudeMessage{Role: m.Role, Content: content})
	}
	return out
}

func toClaudeTools(tools []ToolSpec) []claudeTool {
	out := make([]claudeTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, claudeTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return out
}
