package chunker

import "strings"

// EstimateTokens gives a rough token count of about 1.33 tokens per word.
// Non-empty text is at least one token.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
