package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docgraph/internal/app"
	"github.com/dgallion1/docgraph/internal/catalog"
	"github.com/dgallion1/docgraph/internal/config"
	"github.com/dgallion1/docgraph/internal/pipeline"
	"github.com/dgallion1/docgraph/internal/qa"
	"github.com/dgallion1/docgraph/internal/storage"
)

type checkOptions struct {
	minMatchRate float64
	docIDs       []string
}

// checkResult is the outcome of validating one document's sidecars.
type checkResult struct {
	DocID  string
	Passed []string
	Err    error
}

// checkDocument validates the QA and KG sidecars stored for docID.
func checkDocument(ctx context.Context, store storage.Adapter, docID string, minMatchRate float64) checkResult {
	res := checkResult{DocID: docID}
	qaData, err := store.Get(ctx, pipeline.ArtifactKey(docID, docID+"_qa_segments.json"))
	if err != nil {
		res.Err = fmt.Errorf("qa sidecar: %w", err)
		return res
	}
	passed, err := qa.Validate(qaData, minMatchRate)
	res.Passed = append(res.Passed, passed...)
	if err != nil {
		res.Err = err
		return res
	}

	kgData, err := store.Get(ctx, pipeline.ArtifactKey(docID, docID+"_kg_segments.json"))
	if err != nil {
		res.Err = fmt.Errorf("kg sidecar: %w", err)
		return res
	}
	passed, err = qa.ValidateKG(kgData)
	for _, p := range passed {
		res.Passed = append(res.Passed, "kg "+p)
	}
	res.Err = err
	return res
}

func (o *checkOptions) run(ctx context.Context, a *app.App, cfg config.Config, log *slog.Logger) error {
	minRate := o.minMatchRate
	if minRate <= 0 {
		minRate = cfg.MinMatchRate
	}

	ids := o.docIDs
	if len(ids) == 0 {
		if a.Catalog == nil {
			return fmt.Errorf("no doc ids given and the catalog is disabled")
		}
		docs, err := a.Catalog.List(ctx)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if d.Status == catalog.StatusComplete {
				ids = append(ids, d.DocID)
			}
		}
	}

	failed := 0
	for _, id := range ids {
		r := checkDocument(ctx, a.Store, id, minRate)
		for _, p := range r.Passed {
			fmt.Printf("OK: %s %s\n", id, p)
		}
		if r.Err != nil {
			failed++
			fmt.Printf("FAIL: %s %s\n", id, r.Err)
			continue
		}
		fmt.Printf("PASS: %s\n", id)
	}
	log.Info("check complete", "documents", len(ids), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed checks", failed, len(ids))
	}
	return nil
}
