package parser

import (
	"regexp"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	"golang.org/x/text/unicode/norm"
)

// Front matter appears only on the first few pages.
const frontMatterMaxPage = 5

var (
	controlChars = regexp.MustCompile(`[\x00-\x1F\x7F\x{80}-\x{9F}]`)
	spacedCaps   = regexp.MustCompile(`\b(?:[A-Z]\s){2,}[A-Z]\b`)

	frontMatterPatterns = compileAll(
		`\btable of contents\b`,
		`\bbrief contents\b`,
		`\bcontents\b`,
		`\bcopyright\b`,
		`\ball rights reserved\b`,
		`\blibrary of congress\b`,
		`\bcataloging-in-publication\b`,
		`\bprinted in\b`,
		`\bisbn\b`,
		`\bwww\.\b`,
		`\bhttps?://\b`,
	)

	mainBodyPatterns = compileAll(
		`^(part|chapter)\b`,
		`^\d+(\.\d+)*\b`,
		`^第[一二三四五六七八九十0-9]+章`,
	)

	backMatterPatterns = compileAll(
		`^index\b`,
		`^bibliography\b`,
		`^references\b`,
		`^appendix\b`,
		`^appendices\b`,
		`^glossary\b`,
		`^notation\b`,
		`^symbols?\b`,
	)

	specialTermPatterns = compileAll(
		`\bdefinition\b`,
		`\bdefined as\b`,
		`\bglossary\b`,
		`\bnotation\b`,
		`\bsymbol\b`,
		`\bterm\b`,
		`\bkey term\b`,
	)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// CleanText normalizes to NFC, strips soft hyphens, replaces control
// characters with spaces and collapses whitespace.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	t := norm.NFC.String(text)
	t = strings.ReplaceAll(t, "\u00ad", "")
	t = controlChars.ReplaceAllString(t, " ")
	return strings.Join(strings.Fields(t), " ")
}

// CleanHeading is CleanText plus collapsing letter-spaced capitals,
// so "C H A P T E R 1" becomes "CHAPTER 1".
func CleanHeading(text string) string {
	t := CleanText(text)
	if t == "" {
		return ""
	}
	t = spacedCaps.ReplaceAllStringFunc(t, func(m string) string {
		return strings.Join(strings.Fields(m), "")
	})
	return strings.TrimSpace(t)
}

// FilterBlocks drops empty and single-character text blocks and front-matter
// boilerplate on the first pages. Visual blocks are always kept.
func FilterBlocks(blocks []doctree.ContentBlock) []doctree.ContentBlock {
	out := make([]doctree.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.Type.IsVisual() {
			out = append(out, b)
			continue
		}
		text := strings.TrimSpace(b.Text)
		if len([]rune(text)) < 2 {
			continue
		}
		if b.PageIdx <= frontMatterMaxPage && matchAny(frontMatterPatterns, strings.ToLower(text)) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// IsMainBodyTitle reports whether a section title opens the main body.
func IsMainBodyTitle(title string) bool {
	return matchAny(mainBodyPatterns, strings.ToLower(strings.TrimSpace(title)))
}

// IsBackMatterTitle reports whether a section title opens back matter.
func IsBackMatterTitle(title string) bool {
	return matchAny(backMatterPatterns, strings.ToLower(strings.TrimSpace(title)))
}

// IsSpecialTermText reports definition-like text worth keeping in back matter:
// a glossary keyword, or a short "Term: definition" line.
func IsSpecialTermText(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	if matchAny(specialTermPatterns, t) {
		return true
	}
	return strings.Contains(t, ":") && len([]rune(t)) <= 140
}
