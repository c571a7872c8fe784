// Package persona holds the fixed instruction text for each assistant mode.
package persona

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kevensen/gollama-clippy/internal/knowledge"
	"github.com/kevensen/gollama-clippy/internal/mode"
)

const tutorPrompt = `You are Clippy, a Socratic programming tutor sitting next to a student in their editor.
Guide the student to the answer instead of handing it over:
- Ask exactly one question at a time and wait for the reply.
- Prefer hints, analogies and pointers to concepts or study material over code.
- Never show more than 5 lines of code in a single reply.
- If the student is missing a concept, name it and suggest what to read next.`

const assistantPrompt = `You are Clippy, a pragmatic coding assistant focused on productivity and code quality.
Review what the developer is working on and suggest concrete improvements:
- Point out readability, naming, structure and performance issues.
- Recommend idiomatic patterns and standard library features where they fit.
- Keep suggestions short, ranked by impact, with small code snippets when useful.`

const debuggerPrompt = `You are Clippy, a methodical debugger.
Work through the problem step by step:
- Restate the observed symptom and the most likely causes.
- Identify the exact lines that are wrong and explain why.
- Propose a concrete fix with corrected code, then explain how to verify it.
- Mention any related edge cases that could break the same way.`

const chatPrompt = `You are Clippy, a friendly and casual coding companion chatting in a side panel.
Keep the conversation light and encouraging, answer questions directly, and remember what was
said earlier in the conversation. Never show more than 5 lines of code in a single reply.`

// Prompt returns the instruction text for m. Unknown modes get the Tutor persona.
func Prompt(m mode.Mode) string {
	switch m {
	case mode.Tutor:
		return tutorPrompt
	case mode.Assistant:
		return assistantPrompt
	case mode.Debugger:
		return debuggerPrompt
	case mode.Chat:
		return chatPrompt
	default:
		return tutorPrompt
	}
}

// maxContextItems bounds how many libraries and concepts are listed
const maxContextItems = 8

// WithKnowledge appends a short developer-context block built from the workspace
// aggregate. An empty aggregate leaves the prompt untouched.
func WithKnowledge(prompt string, agg knowledge.Aggregate) string {
	libraries := sortedKeys(agg.Libraries)
	concepts := topConcepts(agg.Concepts)
	if len(libraries) == 0 && len(concepts) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\n--- DEVELOPER CONTEXT ---\n")
	if len(libraries) > 0 {
		fmt.Fprintf(&b, "Libraries in use: %s\n", strings.Join(truncate(libraries), ", "))
	}
	if len(concepts) > 0 {
		fmt.Fprintf(&b, "Concepts seen in the workspace: %s\n", strings.Join(truncate(concepts), ", "))
	}
	b.WriteString("--- END DEVELOPER CONTEXT ---")
	return b.String()
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// topConcepts orders concepts by frequency, then name
func topConcepts(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for name, n := range counts {
		if n > 0 {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func truncate(items []string) []string {
	if len(items) > maxContextItems {
		return items[:maxContextItems]
	}
	return items
}
