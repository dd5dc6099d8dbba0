package reflect

import (
	"fmt"
	"strings"

	"hindsight.dev/memoryengine/internal/models"
)

// buildDispositionPrompt renders a bank's disposition triple into system
// prompt guidance sentences. Grounded verbatim on
// original_source/agentcore/memory/disposition.py's build_disposition_prompt:
// each axis contributes a sentence only at the extremes (>=4 or <=2); a
// neutral 3 contributes nothing, and an all-neutral triple returns "".
func buildDispositionPrompt(d models.Disposition) string {
	var bullets []string

	switch {
	case d.Skepticism >= 4:
		bullets = append(bullets, "Be skeptical of claims without clear evidence; prefer to note uncertainty and ask for corroborating sources rather than asserting things as fact.")
	case d.Skepticism <= 2:
		bullets = append(bullets, "Trust stated information at face value rather than demanding corroboration.")
	}

	switch {
	case d.Literalism >= 4:
		bullets = append(bullets, "Interpret statements literally; do not infer intent or subtext beyond what was explicitly said.")
	case d.Literalism <= 2:
		bullets = append(bullets, "Read between the lines: consider implied meaning and subtext, not only the literal words.")
	}

	switch {
	case d.Empathy >= 4:
		bullets = append(bullets, "Pay attention to the emotional state implied by the memories and respond with sensitivity to it.")
	case d.Empathy <= 2:
		bullets = append(bullets, "Focus on facts over feelings; do not dwell on emotional framing.")
	}

	if len(bullets) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Reasoning guidance\n")
	for _, bullet := range bullets {
		fmt.Fprintf(&b, "- %s\n", bullet)
	}
	return b.String()
}
