//go:build ocr

package enrich

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// OCREnabled reports whether Tesseract support was compiled in.
const OCREnabled = true

// OCRImageAnalyzer runs Tesseract over visual crops. One client is created
// up front and reused; calls are serialized.
type OCRImageAnalyzer struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewOCRImageAnalyzer acquires a Tesseract client for the given languages.
func NewOCRImageAnalyzer(languages ...string) (*OCRImageAnalyzer, error) {
	client := gosseract.NewClient()
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	if err := client.SetLanguage(languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("set ocr language: %w", err)
	}
	return &OCRImageAnalyzer{client: client}, nil
}

func (o *OCRImageAnalyzer) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.client.Close()
}

func (o *OCRImageAnalyzer) AnalyzeImage(ctx context.Context, req ImageRequest) (*ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	if err := o.client.SetImage(req.ImagePath); err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("load image: %w", err)
	}
	text, err := o.client.Text()
	o.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(req.ImagePath), filepath.Ext(req.ImagePath))
	return describeImage(req, stem, strings.TrimSpace(text)), nil
}
