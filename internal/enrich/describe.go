package enrich

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	figureNumberRe = regexp.MustCompile(`(?i)\b(?:figure|fig\.?)\s+(\d+(?:\.\d+)*)`)

	// Visual kinds keyed by caption or OCR cues, first match wins.
	visualKinds = []struct {
		kind string
		re   *regexp.Regexp
	}{
		{"chart", regexp.MustCompile(`(?i)\b(?:chart|graph|plot|histogram|curve)\b`)},
		{"diagram", regexp.MustCompile(`(?i)\b(?:diagram|flow|schematic|model)\b`)},
		{"table_image", regexp.MustCompile(`(?i)\btable\b`)},
		{"photo", regexp.MustCompile(`(?i)\b(?:photo|photograph)\b`)},
	}
)

const summaryLimit = 200

// describeImage turns caption and OCR text into a visual segment. The kind
// comes from caption cues before OCR cues; confidence reflects which matched.
func describeImage(req ImageRequest, stem, ocrText string) *ImageData {
	d := &ImageData{
		SegmentID:   fmt.Sprintf("visual_%s_p%d_%s", req.Anchor.DocID, req.Anchor.PageStart, stem),
		SegmentType: "unknown",
		ImagePath:   req.ImagePath,
		CaptionText: strings.TrimSpace(req.Caption),
		OCRText:     ocrText,
	}
	if w, h, ok := imageSize(req.ImagePath); ok {
		d.Width, d.Height = w, h
	}
	if m := figureNumberRe.FindStringSubmatch(d.CaptionText); m != nil {
		d.FigureNumber = m[1]
	}

	for _, src := range []struct {
		text string
		conf float64
	}{{d.CaptionText, 0.8}, {ocrText, 0.5}} {
		if kind := visualKind(src.text); kind != "" {
			d.SegmentType = kind
			d.ClassificationConfidence = src.conf
			break
		}
	}

	summary := d.CaptionText
	if summary == "" {
		summary = strings.Join(strings.Fields(ocrText), " ")
	}
	d.Summary = truncateRunes(summary, summaryLimit)
	return d
}

func visualKind(text string) string {
	if text == "" {
		return ""
	}
	for _, k := range visualKinds {
		if k.re.MatchString(text) {
			return k.kind
		}
	}
	return ""
}

func imageSize(path string) (int, int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// CaptionImageAnalyzer describes visuals from their captions only, for
// builds without OCR.
type CaptionImageAnalyzer struct{}

func (CaptionImageAnalyzer) AnalyzeImage(_ context.Context, req ImageRequest) (*ImageData, error) {
	stem := strings.TrimSuffix(filepath.Base(req.ImagePath), filepath.Ext(req.ImagePath))
	return describeImage(req, stem, ""), nil
}
