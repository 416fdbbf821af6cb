// Package toc resolves a document outline from embedded bookmarks, scanned
// contents pages, or detected heading blocks, in that order of preference.
package toc

import (
	"fmt"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// Outline sources reported by Resolve.
const (
	SourceOutline  = "outline"
	SourceContents = "contents"
	SourceHeaders  = "headers"
	SourceNone     = ""
)

// OutlineSource exposes embedded PDF bookmarks.
type OutlineSource interface {
	Outline() ([]doctree.TOCEntry, error)
}

// PageTextSource exposes plain page text for contents-page scanning.
type PageTextSource interface {
	NumPage() int
	PageText(pageIdx int) (string, error)
}

// Result is the resolved outline plus any non-fatal problems encountered.
type Result struct {
	Entries  []doctree.TOCEntry
	Source   string
	Warnings []string
}

// Resolver tries each outline source in priority order.
type Resolver struct {
	Outline      OutlineSource  // may be nil
	Pages        PageTextSource // may be nil
	MaxScanPages int
}

// Resolve returns aligned outline entries. Entries from bookmarks and
// contents pages are aligned to heading blocks; entries whose page cannot be
// established are dropped. With no usable PDF outline the heading blocks
// themselves become the outline.
func (r *Resolver) Resolve(blocks []doctree.ContentBlock) Result {
	var res Result

	if r.Outline != nil {
		entries, err := r.Outline.Outline()
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("outline: %s", err))
		}
		if aligned := knownPages(Align(entries, blocks)); len(aligned) > 0 {
			res.Entries = tag(aligned, SourceOutline)
			res.Source = SourceOutline
			return res
		}
	}

	if r.Pages != nil {
		entries, err := FromContentsPages(r.Pages, r.MaxScanPages)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("contents scan: %s", err))
		}
		if aligned := knownPages(Align(entries, blocks)); len(aligned) > 0 {
			res.Entries = tag(aligned, SourceContents)
			res.Source = SourceContents
			return res
		}
	}

	if entries := FromHeaders(blocks); len(entries) > 0 {
		res.Entries = entries
		res.Source = SourceHeaders
	}
	return res
}

func knownPages(entries []doctree.TOCEntry) []doctree.TOCEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.Page >= 0 {
			out = append(out, e)
		}
	}
	return out
}

func tag(entries []doctree.TOCEntry, source string) []doctree.TOCEntry {
	for i := range entries {
		entries[i].Source = source
	}
	return entries
}

// FromHeaders derives outline entries from heading blocks, one per distinct
// (title, page).
func FromHeaders(blocks []doctree.ContentBlock) []doctree.TOCEntry {
	type key struct {
		title string
		page  int
	}
	seen := make(map[key]bool)
	var entries []doctree.TOCEntry
	for _, b := range blocks {
		if b.Type != doctree.BlockHeading || b.Text == "" {
			continue
		}
		k := key{b.Text, b.PageIdx}
		if seen[k] {
			continue
		}
		seen[k] = true
		entries = append(entries, doctree.TOCEntry{
			Level:  InferHeadingLevel(b.Text),
			Title:  b.Text,
			Page:   b.PageIdx,
			Source: SourceHeaders,
		})
	}
	return entries
}
