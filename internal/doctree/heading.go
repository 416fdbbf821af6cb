package doctree

import (
	"regexp"
	"strings"
)

// PathSep joins heading path components.
const PathSep = " > "

// UnknownChapter is reported when no chapter number can be derived.
const UnknownChapter = "unknown"

// NormalizeHeadingPath trims each ">"-separated component and rejoins them
// with PathSep, dropping empty components.
func NormalizeHeadingPath(hp string) string {
	var parts []string
	for _, p := range strings.Split(hp, ">") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, PathSep)
}

// TaxonomyPath splits a heading path into its components.
func TaxonomyPath(hp string) []string {
	out := []string{}
	for _, p := range strings.Split(hp, PathSep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var (
	chapterTitledRe = regexp.MustCompile(`(?i)chapter\s+(\d+)\s*:\s*([^>]+)`)
	chapterNumRe    = regexp.MustCompile(`(?i)chapter\s+(\d+)`)
	sectionNumRe    = regexp.MustCompile(`\b(\d+)\.(\d+)\b`)
	leadingNumTitle = regexp.MustCompile(`^(\d+)(?:\.\d+)*\s*(.*)$`)
	leadingIntRe    = regexp.MustCompile(`^(\d+)\b`)
	captionPrefixes = []string{"table ", "table\t", "figure ", "figure\t", "fig.", "equation ", "equation\t", "eq."}
)

// ChapterFromHeadingPath derives (chapter number, chapter title) from a
// heading path. Cues in order: "Chapter N: Title", "Chapter N", the first
// "N.M" numbering in a component that is not a caption, a numbered first
// component, any integer-led component. The title is "" when not known.
func ChapterFromHeadingPath(headingPath string) (string, string) {
	hp := NormalizeHeadingPath(headingPath)
	if hp == "" {
		return UnknownChapter, ""
	}
	if m := chapterTitledRe.FindStringSubmatch(hp); m != nil {
		return m[1], strings.TrimSpace(m[2])
	}
	if m := chapterNumRe.FindStringSubmatch(hp); m != nil {
		return m[1], ""
	}

	parts := strings.Split(hp, PathSep)
	for _, part := range parts {
		if isCaptionComponent(part) {
			continue
		}
		if m := sectionNumRe.FindStringSubmatch(part); m != nil {
			return m[1], ""
		}
	}

	if m := leadingNumTitle.FindStringSubmatch(strings.TrimSpace(parts[0])); m != nil {
		return m[1], strings.TrimSpace(m[2])
	}
	for _, part := range parts {
		if m := leadingIntRe.FindStringSubmatch(part); m != nil {
			return m[1], ""
		}
	}
	return UnknownChapter, ""
}

func isCaptionComponent(part string) bool {
	low := strings.ToLower(part)
	for _, p := range captionPrefixes {
		if strings.HasPrefix(low, p) {
			return true
		}
	}
	return false
}
