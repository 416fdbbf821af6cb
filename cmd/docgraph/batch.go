package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docgraph/internal/app"
	"github.com/dgallion1/docgraph/internal/config"
	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/dgallion1/docgraph/internal/pipeline"
)

type batchOptions struct {
	inDir   string
	pdfDir  string
	workers int
	force   bool
}

// batchItem pairs an input file with its optional source PDF.
type batchItem struct {
	path string
	pdf  string
}

// collectInputs lists supported files in dir, sorted, each matched to
// pdfDir/{stem}.pdf when that file exists.
func collectInputs(dir, pdfDir string) ([]batchItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var items []batchItem
	for _, e := range entries {
		if e.IsDir() || !parser.IsSupportedExtension(e.Name()) {
			continue
		}
		it := batchItem{path: filepath.Join(dir, e.Name())}
		if pdfDir != "" {
			pdf := filepath.Join(pdfDir, parser.DocIDFromFilename(e.Name())+".pdf")
			if st, err := os.Stat(pdf); err == nil && !st.IsDir() {
				it.pdf = pdf
			}
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].path < items[j].path })
	return items, nil
}

func (o *batchOptions) run(ctx context.Context, a *app.App, _ config.Config, log *slog.Logger) error {
	items, err := collectInputs(o.inDir, o.pdfDir)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no input files in %s", o.inDir)
	}

	var done, dupes, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.workers, 1))
	for _, it := range items {
		g.Go(func() error {
			name := filepath.Base(it.path)
			pdf := "missing"
			if it.pdf != "" {
				pdf = filepath.Base(it.pdf)
			}
			log.Info("processing", "file", name, "pdf", pdf)

			data, err := os.ReadFile(it.path)
			if err != nil {
				failed.Add(1)
				log.Error("read input", "file", name, "error", err)
				return nil
			}
			in := pipeline.Input{
				DocID:    parser.DocIDFromFilename(name),
				Filename: name,
				Data:     data,
				PDFPath:  it.pdf,
				Force:    o.force,
			}
			res, err := a.Runner.Run(gctx, in, nil)
			switch {
			case errors.Is(err, pipeline.ErrDuplicate):
				dupes.Add(1)
				log.Info("skipped duplicate", "file", name, "duplicate_of", res.DuplicateOf)
			case gctx.Err() != nil:
				return gctx.Err()
			case err != nil:
				failed.Add(1)
				log.Error("document failed", "file", name, "error", err)
			default:
				done.Add(1)
				for _, w := range res.Warnings {
					log.Warn("document warning", "file", name, "warning", w)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("batch complete", "processed", done.Load(), "duplicates", dupes.Load(), "failed", failed.Load())
	if failed.Load() > 0 {
		return fmt.Errorf("%d of %d documents failed", failed.Load(), len(items))
	}
	return nil
}
