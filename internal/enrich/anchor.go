package enrich

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// Anchor locates a chunk in the book for analyzers and their payloads.
type Anchor struct {
	DocID         string        `json:"doc_id"`
	SourceChunkID string        `json:"source_chunk_id"`
	PageStart     int           `json:"page_start"`
	PageEnd       int           `json:"page_end"`
	HeadingPath   string        `json:"heading_path"`
	ChapterNumber string        `json:"chapter_number"`
	ChapterTitle  string        `json:"chapter_title,omitempty"`
	BBox          *doctree.BBox `json:"bbox"`
}

// AnchorFor builds the anchor of u. Pages are 1-based.
func AnchorFor(u *doctree.Unit, docID string) Anchor {
	start, end := u.PageBounds()
	hp := doctree.NormalizeHeadingPath(u.HeadingPath)
	num, title := doctree.ChapterFromHeadingPath(hp)
	return Anchor{
		DocID:         docID,
		SourceChunkID: u.SegmentID,
		PageStart:     start,
		PageEnd:       end,
		HeadingPath:   hp,
		ChapterNumber: num,
		ChapterTitle:  title,
		BBox:          u.Box(),
	}
}

// ResolveVisualPath returns the first existing local image of u, falling
// back to a crop named after the chunk under visualDir/docID. It returns ""
// when nothing is on disk.
func ResolveVisualPath(u *doctree.Unit, docID, visualDir string) string {
	for _, p := range u.ImagePaths {
		if p == "" || strings.HasPrefix(p, "http") {
			continue
		}
		if fileExists(p) {
			return p
		}
	}
	if visualDir == "" || u.Type == "" || u.SegmentID == "" {
		return ""
	}
	page, _ := u.PageBounds()
	dir := filepath.Join(visualDir, docID)
	for _, ext := range []string{".png", ".jpg"} {
		p := filepath.Join(dir, fmt.Sprintf("%s_p%d_%s%s", u.Type, page, u.SegmentID, ext))
		if fileExists(p) {
			return p
		}
	}
	return ""
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
