package chunker

import "strings"

// EstimateTokens approximates a token count at 1.33 tokens per word.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := int(float64(len(strings.Fields(text))) * 1.33)
	return max(tokens, 1)
}

// TotalTokens sums EstimateTokens over every unit's content.
func TotalTokens(contents []string) int {
	n := 0
	for _, c := range contents {
		n += EstimateTokens(c)
	}
	return n
}
