//go:build !ocr

package enrich

import (
	"context"
	"errors"
)

// OCREnabled reports whether Tesseract support was compiled in.
const OCREnabled = false

// ErrOCRNotEnabled is returned when OCR support was not compiled in.
// Rebuild with -tags ocr to enable image analysis.
var ErrOCRNotEnabled = errors.New("ocr support not enabled; rebuild with -tags ocr")

// OCRImageAnalyzer is a placeholder when OCR support is not compiled in.
type OCRImageAnalyzer struct{}

func NewOCRImageAnalyzer(languages ...string) (*OCRImageAnalyzer, error) {
	return nil, ErrOCRNotEnabled
}

func (o *OCRImageAnalyzer) Close() error { return nil }

func (o *OCRImageAnalyzer) AnalyzeImage(ctx context.Context, req ImageRequest) (*ImageData, error) {
	return nil, ErrOCRNotEnabled
}
