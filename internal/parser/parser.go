package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// Document is a normalized input: cleaned blocks plus page geometry.
type Document struct {
	DocID     string
	Blocks    []doctree.ContentBlock // after filtering
	RawBlocks []doctree.ContentBlock // before filtering, used for ISBN lookup
	PageSizes doctree.PageSizes
}

// SupportedExtensions lists input extensions the pipeline accepts.
var SupportedExtensions = map[string]bool{
	".json":     true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".docx":     true,
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// DocIDFromFilename returns the file stem used as document id.
func DocIDFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseRaw decodes r into a raw block stream according to the file
// extension. Block JSON is read as-is; reflowable formats are laid out.
func ParseRaw(r io.Reader, filename string) (*RawDocument, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return ParseBlockJSON(r)
	case ".md", ".markdown":
		return ParseMarkdown(r)
	case ".html", ".htm":
		return ParseHTML(r)
	case ".docx":
		return ParseDOCX(r)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(filename))
}

// ErrUnsupported is returned for input extensions with no reader.
var ErrUnsupported = errors.New("unsupported input format")

// Parse decodes an input stream and normalizes it into a Document.
func Parse(r io.Reader, filename string) (*Document, error) {
	raw, err := ParseRaw(r, filename)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	blocks, sizes := Normalize(raw)
	return &Document{
		DocID:     DocIDFromFilename(filename),
		Blocks:    FilterBlocks(blocks),
		RawBlocks: blocks,
		PageSizes: sizes,
	}, nil
}
