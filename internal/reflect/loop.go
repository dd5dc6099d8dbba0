package reflect

import (
	"context"
	"fmt"
	"strings"

	"hindsight.dev/memoryengine/internal/apperrors"
	"hindsight.dev/memoryengine/internal/config"
	"hindsight.dev/memoryengine/internal/llmprovider"
)

const directiveReminder = "Your answer doesn't clearly address one or more of the bank's directives. Revise it to satisfy them, then call done again."
const citationReminder = "You haven't backed that answer with evidence retrieved this conversation. Gather real evidence with a tool before citing it, or admit you don't have enough information, then call done again."

// noConfidentAnswerText is the explicit "no confident answer" finalization
// spec.md §4.9's loop contract requires when the iteration cap is reached
// without the model calling done, rather than returning whatever partial
// text happened to be in flight (which may be empty).
const noConfidentAnswerText = "No confident answer: the reflect loop reached its iteration cap without a supported conclusion."

// nontrivialAnswerMinLength is the floor below which an answer reads as an
// admission of uncertainty rather than an unsupported claim, for guardrail
// 2's "no evidence remains and the answer is non-trivial" test.
const nontrivialAnswerMinLength = 20

// agentLoop runs the bounded tool-use conversation, per spec.md §4.9 and
// original_source/agentcore/memory/reflect.py's _agent_loop: call the
// model, execute any requested tools, echo their results back, and repeat
// until the model calls done or the iteration/time budget runs out.
func (s *Service) agentLoop(ctx context.Context, systemPrompt, query string, directives []string, tc *toolContext, maxIter int) (Result, error) {
	tools := toolCatalog()
	messages := []llmprovider.Message{{Role: "user", Text: query}}

	var lastText string
	reminded := false

	for iteration := 1; iteration <= maxIter; iteration++ {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("reflect: %w", apperrors.ErrTimeout)
		}

		resp, err := s.llm.Converse(ctx, config.ReflectModelID(), systemPrompt, messages, tools)
		if err != nil {
			return Result{}, fmt.Errorf("reflect: converse: %w", err)
		}
		messages = append(messages, llmprovider.Message{Role: "assistant", Text: resp.Text, ToolCalls: resp.ToolCalls})

		if resp.StopReason != "tool_use" || len(resp.ToolCalls) == 0 {
			lastText = resp.Text
			if needsReminder, err := checkDirectives(lastText, directives, &reminded); err != nil {
				return Result{}, err
			} else if needsReminder {
				messages = append(messages, llmprovider.Message{Role: "user", Text: directiveReminder})
				continue
			}
			return finalizeResult(lastText, nil, tc, iteration)
		}

		done, answer, citedIDs := findDoneCall(resp.ToolCalls)
		if done {
			if needsReminder, err := checkDirectives(answer, directives, &reminded); err != nil {
				return Result{}, err
			} else if needsReminder {
				messages = append(messages, llmprovider.Message{Role: "user", Text: directiveReminder})
				continue
			}
			result, hallucinated, err := s.validateCitations(answer, citedIDs, tc, iteration)
			if err != nil {
				return Result{}, err
			}
			if hallucinated {
				messages = append(messages, llmprovider.Message{Role: "user", Text: citationReminder})
				continue
			}
			return result, nil
		}

		var toolResults []llmprovider.ToolResult
		for _, call := range resp.ToolCalls {
			content, _, err := s.dispatchTool(ctx, tc, call)
			if err != nil {
				content = fmt.Sprintf("tool error: %v", err)
			}
			toolResults = append(toolResults, llmprovider.ToolResult{ToolCallID: call.ID, Content: content})
		}
		messages = append(messages, llmprovider.Message{Role: "user", ToolResults: toolResults})
	}

	return finalizeResult(noConfidentAnswerText, nil, tc, maxIter)
}

func findDoneCall(calls []llmprovider.ToolCall) (found bool, answer string, citedIDs []string) {
	for _, call := range calls {
		if call.Name == "done" {
			answer, _ = call.Input["answer"].(string)
			if raw, ok := call.Input["cited_ids"].([]any); ok {
				for _, v := range raw {
					if s, ok := v.(string); ok {
						citedIDs = append(citedIDs, s)
					}
				}
			}
			return true, answer, citedIDs
		}
	}
	return false, "", nil
}

// checkDirectives returns true exactly once (the first time an answer
// looks like it skipped a directive), so the model gets one corrective
// iteration per spec.md §4.9 rather than looping forever on a directive it
// cannot satisfy.
func checkDirectives(answer string, directives []string, reminded *bool) (bool, error) {
	if *reminded || directivesSatisfied(answer, directives) {
		return false, nil
	}
	*reminded = true
	return true, nil
}

// validateCitations enforces spec.md §4.9's done guardrails 1 and 2:
// cited_ids must be a subset of ids the tools actually returned this
// conversation (hallucinated ids are stripped), and if nothing survives
// that stripping while the answer is non-trivial, the second return value
// tells the caller to re-prompt rather than accept an unsupported claim.
// This fires whether the model cited nothing at all or cited ids that all
// turned out to be hallucinated — either way, no real evidence backs the
// answer.
func (s *Service) validateCitations(answer string, citedIDs []string, tc *toolContext, iteration int) (Result, bool, error) {
	valid := filterAvailable(citedIDs, tc)
	if len(valid) == 0 && isNontrivialAnswer(answer) {
		return Result{}, true, nil
	}
	result, err := finalizeResult(answer, valid, tc, iteration)
	return result, false, err
}

func isNontrivialAnswer(answer string) bool {
	return len(strings.TrimSpace(answer)) >= nontrivialAnswerMinLength
}

func finalizeResult(answer string, citedIDs []string, tc *toolContext, iteration int) (Result, error) {
	if citedIDs == nil {
		citedIDs = []string{}
	}
	return Result{Answer: answer, CitedIDs: citedIDs, Iterations: iteration}, nil
}

func filterAvailable(ids []string, tc *toolContext) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if tc.available[id] {
			out = append(out, id)
		}
	}
	return out
}
