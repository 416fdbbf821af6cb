// Package app wires configuration into a ready pipeline runner.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docgraph/internal/catalog"
	"github.com/dgallion1/docgraph/internal/config"
	"github.com/dgallion1/docgraph/internal/enrich"
	"github.com/dgallion1/docgraph/internal/extract"
	"github.com/dgallion1/docgraph/internal/graphsink"
	"github.com/dgallion1/docgraph/internal/metadata"
	"github.com/dgallion1/docgraph/internal/pipeline"
	"github.com/dgallion1/docgraph/internal/storage"
)

// statsWindow bounds how long analyzer latency samples are kept.
const statsWindow = time.Hour

// App owns the runner and the clients behind it.
type App struct {
	Runner  *pipeline.Runner
	Store   storage.Adapter
	Catalog *catalog.Store
	Graph   *graphsink.Sink

	meta *metadata.Client
	llm  *extract.ClaudeExtractor
	log  *slog.Logger
}

// New builds every collaborator cfg enables. Close releases them.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{log: log}

	store, err := storage.New(cfg.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	a.Store = store

	if cfg.CatalogPath != "" {
		cat, err := catalog.Open(cfg.CatalogPath)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("catalog: %w", err)
		}
		a.Catalog = cat
	}

	graph, err := graphsink.New(ctx, cfg.GraphOptions(), log)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("neo4j: %w", err)
	}
	a.Graph = graph

	a.Runner = &pipeline.Runner{
		Store:    store,
		Catalog:  a.Catalog,
		Enricher: newEnricher(cfg, log),
		Log:      log,
		Opts: pipeline.Options{
			CharLimit:            cfg.CharLimit,
			PDFFallbackPdftotext: cfg.PDFFallbackPdftotext,
			TOCScanPages:         cfg.TOCScanPages,
			VisualDir:            cfg.VisualDir,
			ConceptsDir:          cfg.ConceptsDir,
			ConceptsPath:         cfg.ConceptsPath,
			MinMatchRate:         cfg.MinMatchRate,
			WriteReview:          cfg.WriteReview,
		},
	}
	if graph != nil {
		a.Runner.Graph = graph
	}
	if cfg.LLMAPIKey != "" {
		a.llm = extract.NewClaudeExtractor(cfg.LLMAPIKey, cfg.LLMModel)
		a.Runner.Extractor = &pipeline.RetryingExtractor{Inner: a.llm, Log: log}
	}
	if cfg.MetadataLookup {
		a.meta = metadata.NewClient(cfg.MetadataTimeout)
		a.Runner.Metadata = a.meta
	}

	log.Info("pipeline ready",
		"storage", cfg.Storage.Backend,
		"catalog", cfg.CatalogPath != "",
		"neo4j", graph != nil,
		"metadata_lookup", cfg.MetadataLookup,
		"ocr", cfg.OCREnabled,
		"llm_extractor", a.llm != nil,
	)
	return a, nil
}

func newEnricher(cfg config.Config, log *slog.Logger) *enrich.Enricher {
	e := &enrich.Enricher{
		Tables:    enrich.HTMLTableAnalyzer{},
		Images:    enrich.CaptionImageAnalyzer{},
		Formulas:  enrich.FormulaItemAnalyzer{},
		VisualDir: cfg.VisualDir,
		Stats:     enrich.NewStats(statsWindow),
	}
	if cfg.OCREnabled {
		ocr, err := enrich.NewOCRImageAnalyzer(cfg.OCRLanguageList()...)
		if err != nil {
			log.Warn("ocr unavailable, using captions only", "error", err)
		} else {
			e.Images = ocr
		}
	}
	return e
}

// Close releases every client. It is safe on a partially built App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.meta != nil {
		a.meta.Close()
	}
	if a.llm != nil {
		a.llm.Close()
	}
	if err := a.Graph.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.Catalog != nil {
		if err := a.Catalog.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
