package enrich

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"slices"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// PageRenderer rasterizes regions of PDF pages. parser.FitzDocument
// implements it when built with -tags mupdf.
type PageRenderer interface {
	NumPage() int
	PageBounds(pageIdx int) (doctree.PageSize, error)
	RenderCrop(pageIdx int, box doctree.BBox, dpi float64) (image.Image, error)
}

// CropConfig tunes visual crop extraction.
type CropConfig struct {
	DPI          float64
	MinAreaRatio float64 // crops below this share of the page are decorative
	MinSideRatio float64 // crops thinner than this share of either side are decorative
	MaxAspect    float64
}

func DefaultCropConfig() CropConfig {
	return CropConfig{DPI: 200, MinAreaRatio: 0.002, MinSideRatio: 0.03, MaxAspect: 12}
}

// ExtractVisualCrops renders every image, table and formula block to
// outDir/<type>_p<page>_<id>.png and appends the file to the block's local
// image paths. Block boxes are given in layout-parser page units and are
// rescaled to PDF points when both sizes are known. Decorative regions and
// unrenderable blocks are skipped. It returns the number of crops written.
func ExtractVisualCrops(ctx context.Context, r PageRenderer, blocks []doctree.ContentBlock, sizes doctree.PageSizes, outDir string, cfg CropConfig) (int, error) {
	if cfg.DPI <= 0 {
		cfg = DefaultCropConfig()
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("create crop dir: %w", err)
	}

	numPages := r.NumPage()
	written := 0
	for i := range blocks {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		b := &blocks[i]
		if !b.Type.IsVisual() || b.BBox == nil {
			continue
		}
		if b.PageIdx < 0 || b.PageIdx >= numPages {
			continue
		}
		page, err := r.PageBounds(b.PageIdx)
		if err != nil {
			continue
		}
		box, ok := clampBox(scaleBox(*b.BBox, sizes[b.PageIdx], page), page)
		if !ok || IsDecorative(box, page, cfg) {
			continue
		}

		img, err := r.RenderCrop(b.PageIdx, box, cfg.DPI)
		if err != nil {
			continue
		}
		path := filepath.Join(outDir, fmt.Sprintf("%s_p%d_%s.png", b.Type, b.PageIdx+1, b.ID))
		if err := writePNG(path, img); err != nil {
			continue
		}
		if !slices.Contains(b.Meta.LocalImagePaths, path) {
			b.Meta.LocalImagePaths = append(b.Meta.LocalImagePaths, path)
		}
		written++
	}
	return written, nil
}

func scaleBox(b doctree.BBox, from, to doctree.PageSize) doctree.BBox {
	if from.Width <= 0 || from.Height <= 0 || to.Width <= 0 || to.Height <= 0 {
		return b
	}
	sx, sy := to.Width/from.Width, to.Height/from.Height
	return doctree.BBox{X0: b.X0 * sx, Y0: b.Y0 * sy, X1: b.X1 * sx, Y1: b.Y1 * sy}
}

func clampBox(b doctree.BBox, page doctree.PageSize) (doctree.BBox, bool) {
	out := doctree.BBox{
		X0: max(b.X0, 0),
		Y0: max(b.Y0, 0),
		X1: min(b.X1, page.Width),
		Y1: min(b.Y1, page.Height),
	}
	if out.X1 <= out.X0 || out.Y1 <= out.Y0 {
		return doctree.BBox{}, false
	}
	return out, true
}

// IsDecorative reports tiny regions, thin strips and extreme aspect ratios.
func IsDecorative(b doctree.BBox, page doctree.PageSize, cfg CropConfig) bool {
	pw, ph := max(page.Width, 1), max(page.Height, 1)
	w, h := b.Width(), b.Height()
	if (w*h)/(pw*ph) < cfg.MinAreaRatio {
		return true
	}
	if w < pw*cfg.MinSideRatio || h < ph*cfg.MinSideRatio {
		return true
	}
	if h == 0 {
		return true
	}
	aspect := w / h
	return aspect > cfg.MaxAspect || aspect < 1/cfg.MaxAspect
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
