package parser

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFSource exposes the embedded outline and per-page text of a PDF. It uses
// the Go library first and falls back to pdftotext for page text if enabled.
type PDFSource struct {
	FallbackPdftotext bool

	path   string
	closer interface{ Close() error }
	reader *pdflib.Reader
}

// OpenPDF opens a PDF for outline and page text access.
func OpenPDF(path string, fallbackPdftotext bool) (*PDFSource, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &PDFSource{
		FallbackPdftotext: fallbackPdftotext,
		path:              path,
		closer:            f,
		reader:            reader,
	}, nil
}

func (p *PDFSource) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// NumPage returns the page count.
func (p *PDFSource) NumPage() int {
	return p.reader.NumPage()
}

// PageText returns the plain text of a 0-based page.
func (p *PDFSource) PageText(pageIdx int) (string, error) {
	text, err := p.libPageText(pageIdx)
	if err != nil && p.FallbackPdftotext {
		text, err = pdftotextPage(p.path, pageIdx)
	}
	if err != nil {
		return "", fmt.Errorf("page %d text: %w", pageIdx, err)
	}
	return text, nil
}

func (p *PDFSource) libPageText(pageIdx int) (text string, err error) {
	// The library panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf library panic: %v", r)
		}
	}()
	page := p.reader.Page(pageIdx + 1)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d not found", pageIdx)
	}
	return page.GetPlainText(nil)
}

// Outline flattens the bookmark tree into level-tagged entries. The library
// does not resolve bookmark destinations, so pages are reported as -1 and
// are resolved later by title alignment.
func (p *PDFSource) Outline() ([]doctree.TOCEntry, error) {
	root := p.reader.Outline()
	var entries []doctree.TOCEntry
	var walk func(nodes []pdflib.Outline, level int)
	walk = func(nodes []pdflib.Outline, level int) {
		for _, n := range nodes {
			title := CleanText(n.Title)
			if title != "" {
				entries = append(entries, doctree.TOCEntry{Level: level, Title: title, Page: -1})
			}
			walk(n.Child, level+1)
		}
	}
	walk(root.Child, 1)
	return entries, nil
}

func pdftotextPage(path string, pageIdx int) (string, error) {
	n := fmt.Sprintf("%d", pageIdx+1)
	cmd := exec.Command("pdftotext", "-layout", "-f", n, "-l", n, path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return strings.TrimRight(string(out), "\f"), nil
}
