// Package prompt builds the compact generation prompts. Each ends with the
// label the sanitizer splits on, and each instruction line matches an echo
// rule so a reproduced prompt is filtered out.
package prompt

import (
	"fmt"
	"strings"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// Character budgets for prompt sections.
const (
	MaxContextChars = 1400
	MaxHistoryChars = 400
)

const (
	askInstruction       = "Answer the question using only the document below. Be brief and direct."
	summarizeInstruction = "Summarize the document below in 3 to 5 key bullet points. Use only the provided text."
	compareInstruction   = "Compare the documents below. Give a one-line overview of each, " +
		"then list key similarities and key differences. Use only the provided text."
)

// Truncate cuts text to at most max characters, ending with "..." when cut.
func Truncate(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	if max <= 3 {
		return string(r[:max])
	}
	return strings.TrimRight(string(r[:max-3]), " \t\n") + "..."
}

// JoinContext concatenates chunk texts into one context block.
func JoinContext(chunks []entities.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

// RenderHistory renders the last n messages as "role: content" lines.
func RenderHistory(history []entities.ChatMessage, n int) string {
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		role := strings.TrimSpace(m.Role)
		if role == "" {
			role = "user"
		}
		lines = append(lines, role+": "+content)
	}
	return strings.Join(lines, "\n")
}

// Ask builds the question-answering prompt.
func Ask(context, question, history string) string {
	parts := []string{askInstruction, ""}
	if h := strings.TrimSpace(history); h != "" {
		parts = append(parts, "History: "+Truncate(h, MaxHistoryChars), "")
	}
	parts = append(parts,
		"Document: "+Truncate(context, MaxContextChars),
		"",
		"Question: "+question,
		"Answer:",
	)
	return strings.Join(parts, "\n")
}

// Summarize builds the summary prompt.
func Summarize(context string) string {
	return strings.Join([]string{
		summarizeInstruction,
		"",
		"Document: " + Truncate(context, MaxContextChars),
		"",
		"Summary:",
	}, "\n")
}

// Compare builds the comparison prompt. Each document gets an equal share of
// the context budget.
func Compare(contexts []string) string {
	n := len(contexts)
	if n < 1 {
		n = 1
	}
	budget := MaxContextChars / n
	blocks := make([]string, len(contexts))
	for i, c := range contexts {
		blocks[i] = fmt.Sprintf("Doc%d: %s", i+1, Truncate(c, budget))
	}
	return strings.Join([]string{
		compareInstruction,
		"",
		strings.Join(blocks, "\n\n"),
		"",
		"Comparison:",
	}, "\n")
}
