package classify

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	listMarkerRes = []*regexp.Regexp{
		regexp.MustCompile(`^\s*\d+\.\s+`),
		regexp.MustCompile(`^\s*\d+\)\s+`),
		regexp.MustCompile(`^\s*\(\d+\)\s+`),
		regexp.MustCompile(`^\s*[A-Za-z]\)\s+`),
	}
	bulletPrefixes   = []string{"-", "•", "–", "—"}
	stepRe           = regexp.MustCompile(`(?i)^\s*step\s+\d+\b`)
	ordinalAdverbRe  = regexp.MustCompile(`(?i)^\s*(?:first|second|third|next|then|finally)[,:\s]`)
	continuationLead = []string{"and ", "or ", "but ", "with ", "including ", "("}
	listContextWords = []string{"list", "procedure", "steps", "checklist", "summary points"}
)

// IsListItem reports a bullet, numbered, lettered or parenthesized marker.
func IsListItem(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	for _, p := range bulletPrefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	for _, re := range listMarkerRes {
		if re.MatchString(t) {
			return true
		}
	}
	return false
}

// IsProcedureItem reports "Step N" or an ordinal adverb opening.
func IsProcedureItem(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	return stepRe.MatchString(t) || ordinalAdverbRe.MatchString(t)
}

// IsListContinuation reports a non-marker line that continues the previous
// list item: a conjunction or parenthesis opening, or a lowercase start.
func IsListContinuation(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" || IsListItem(t) || IsProcedureItem(t) {
		return false
	}
	for _, p := range continuationLead {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	r, _ := utf8.DecodeRuneInString(t)
	return unicode.IsLower(r)
}

// IsListContext reports whether a heading path announces list-shaped content.
func IsListContext(headingPath string) bool {
	hp := strings.ToLower(headingPath)
	for _, w := range listContextWords {
		if strings.Contains(hp, w) {
			return true
		}
	}
	return false
}

// ListKind returns Procedure, List or "" for a single line.
func ListKind(text string) string {
	switch {
	case IsProcedureItem(text):
		return Procedure
	case IsListItem(text):
		return List
	}
	return ""
}
