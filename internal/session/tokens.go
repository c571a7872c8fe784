package session

import (
	"strings"
	"unicode"
)

// EstimateTokens provides a rough estimate of GPT-style tokens
func EstimateTokens(text string) int {
	// English text averages ~4 characters per token
	const avgCharsPerToken = 4

	charCount := 0
	for _, char := range text {
		if !unicode.IsSpace(char) {
			charCount++
		}
	}
	wordCount := len(strings.Fields(text))

	estimate := (charCount + wordCount) / avgCharsPerToken
	if estimate < 1 && strings.TrimSpace(text) != "" {
		return 1
	}
	return estimate
}
