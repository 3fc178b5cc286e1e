package sanitize

import (
	"regexp"
	"strings"
)

var numericKeywords = []string{
	"percent", "percentage", "%", "score", "marks", "ratio",
	"rate", "result", "grade", "cgpa", "gpa",
}

var percentage = regexp.MustCompile(`\b\d+(?:\.\d+)?%`)

// IsNumericQuestion reports whether question asks for a score-like value.
func IsNumericQuestion(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range numericKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// ExtractPercentage returns the last percentage in text, or text unchanged
// when there is none. Documents usually state the consolidated figure last.
func ExtractPercentage(text string) string {
	matches := percentage.FindAllString(text, -1)
	if len(matches) == 0 {
		return text
	}
	return matches[len(matches)-1]
}

// HasPercentage reports whether text mentions a percentage sign.
func HasPercentage(text string) bool {
	return strings.Contains(text, "%")
}
