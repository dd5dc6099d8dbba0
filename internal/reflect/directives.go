package reflect

import (
	"strconv"
	"strings"
)

// directivesPrompt renders a bank's ordered directive list as imperative
// guidance appended to the system prompt.
func directivesPrompt(directives []string) string {
	if len(directives) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Directives\nFollow these, in order of priority:\n")
	for i, d := range directives {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(d)
		b.WriteString("\n")
	}
	return b.String()
}

// directivesSatisfied is a best-effort post-check: every directive needs at
// least one of its non-trivial words to show up somewhere in the answer,
// as a cheap signal the model didn't just ignore it after retrieving
// evidence. This is shallow by design — it exists to trigger one extra
// loop iteration with a reminder, not to police answer quality.
func directivesSatisfied(answer string, directives []string) bool {
	lower := strings.ToLower(answer)
	for _, d := range directives {
		if !anyKeywordPresent(lower, d) {
			return false
		}
	}
	return true
}

func anyKeywordPresent(lowerAnswer, directive string) bool {
	checked := false
	for _, word := range strings.Fields(strings.ToLower(directive)) {
		word = strings.Trim(word, ".,;:!?")
		if len(word) < 5 {
			continue
		}
		checked = true
		if strings.Contains(lowerAnswer, word) {
			return true
		}
	}
	return !checked // directives with no word long enough to check are trivially satisfied
}
