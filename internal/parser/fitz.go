//go:build mupdf

package parser

import (
	"fmt"
	"image"
	"sync"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/gen2brain/go-fitz"
	xdraw "golang.org/x/image/draw"
)

// MuPDFEnabled reports whether rasterization support was compiled in.
const MuPDFEnabled = true

// FitzDocument wraps MuPDF for outline pages and page rasterization.
// MuPDF documents are not safe for concurrent use.
type FitzDocument struct {
	mu  sync.Mutex
	doc *fitz.Document
}

// OpenFitz opens a PDF with MuPDF.
func OpenFitz(path string) (*FitzDocument, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf with mupdf: %w", err)
	}
	return &FitzDocument{doc: doc}, nil
}

func (f *FitzDocument) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.Close()
}

func (f *FitzDocument) NumPage() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.NumPage()
}

// PageText returns the text of a 0-based page.
func (f *FitzDocument) PageText(pageIdx int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.Text(pageIdx)
}

// Outline returns bookmark entries with resolved 0-based pages.
func (f *FitzDocument) Outline() ([]doctree.TOCEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	toc, err := f.doc.ToC()
	if err != nil {
		return nil, fmt.Errorf("read outline: %w", err)
	}
	entries := make([]doctree.TOCEntry, 0, len(toc))
	for _, o := range toc {
		title := CleanText(o.Title)
		if title == "" {
			continue
		}
		entries = append(entries, doctree.TOCEntry{Level: o.Level, Title: title, Page: o.Page})
	}
	return entries, nil
}

// PageBounds returns the page size in PDF points.
func (f *FitzDocument) PageBounds(pageIdx int) (doctree.PageSize, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.doc.Bound(pageIdx)
	if err != nil {
		return doctree.PageSize{}, err
	}
	return doctree.PageSize{Width: float64(r.Dx()), Height: float64(r.Dy())}, nil
}

// RenderCrop rasterizes a page at dpi and cuts out the box given in points.
func (f *FitzDocument) RenderCrop(pageIdx int, box doctree.BBox, dpi float64) (image.Image, error) {
	f.mu.Lock()
	page, err := f.doc.ImageDPI(pageIdx, dpi)
	f.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", pageIdx, err)
	}

	scale := dpi / 72.0
	rect := image.Rect(
		int(box.X0*scale), int(box.Y0*scale),
		int(box.X1*scale), int(box.Y1*scale),
	).Intersect(page.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("crop outside page %d", pageIdx)
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.Copy(dst, image.Point{}, page, rect, xdraw.Src, nil)
	return dst, nil
}
