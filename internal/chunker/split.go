package chunker

import (
	"strings"
	"unicode/utf8"
)

// splitBySentences breaks a long text into sentence groups of at most
// limit runes. A single sentence longer than limit is emitted whole.
func splitBySentences(text string, limit int) []string {
	sentences := splitSentences(text)

	var result []string
	var current strings.Builder
	currentLen := 0

	for _, sent := range sentences {
		n := utf8.RuneCountInString(sent)

		if currentLen > 0 && currentLen+1+n > limit {
			result = append(result, current.String())
			current.Reset()
			currentLen = 0
		}

		if current.Len() > 0 {
			current.WriteString(" ")
			currentLen++
		}
		current.WriteString(sent)
		currentLen += n
	}

	if currentLen > 0 {
		result = append(result, current.String())
	}

	return result
}

// splitSentences splits after '.', '!' or '?' followed by a space.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}
