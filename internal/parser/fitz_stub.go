//go:build !mupdf

package parser

import (
	"errors"
	"image"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// MuPDFEnabled reports whether rasterization support was compiled in.
const MuPDFEnabled = false

// ErrMuPDFNotEnabled is returned when MuPDF support was not compiled in.
// Rebuild with -tags mupdf to enable outline pages and visual crops.
var ErrMuPDFNotEnabled = errors.New("mupdf support not enabled; rebuild with -tags mupdf")

// FitzDocument is a placeholder when MuPDF support is not compiled in.
type FitzDocument struct{}

func OpenFitz(path string) (*FitzDocument, error) {
	return nil, ErrMuPDFNotEnabled
}

func (f *FitzDocument) Close() error { return nil }

func (f *FitzDocument) NumPage() int { return 0 }

func (f *FitzDocument) PageText(pageIdx int) (string, error) {
	return "", ErrMuPDFNotEnabled
}

func (f *FitzDocument) Outline() ([]doctree.TOCEntry, error) {
	return nil, ErrMuPDFNotEnabled
}

func (f *FitzDocument) PageBounds(pageIdx int) (doctree.PageSize, error) {
	return doctree.PageSize{}, ErrMuPDFNotEnabled
}

func (f *FitzDocument) RenderCrop(pageIdx int, box doctree.BBox, dpi float64) (image.Image, error) {
	return nil, ErrMuPDFNotEnabled
}
