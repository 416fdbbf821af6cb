package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgallion1/docgraph/internal/catalog"
	"github.com/dgallion1/docgraph/internal/enrich"
	"github.com/dgallion1/docgraph/internal/metadata"
	"github.com/dgallion1/docgraph/internal/qa"
	"github.com/dgallion1/docgraph/internal/storage"
)

const bookMarkdown = `# Chapter 1 Markets

ISBN 978-0-306-40615-7

Markets bring buyers and sellers together. Prices adjust until the quantity demanded equals the quantity supplied.

## 1.1 Demand

The law of demand states that quantity demanded falls as price rises, holding other things equal.

| Price | Quantity |
| ----- | -------- |
| 1     | 10       |
| 2     | 8        |

## 1.2 Supply

Supply describes how much producers will offer at each price level in a given period of time.

- Higher prices raise quantity supplied
- Input costs shift the supply curve
`

type fakeFetcher struct {
	failures int
	calls    int
}

func (f *fakeFetcher) Fetch(_ context.Context, isbn string) (*metadata.Metadata, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &metadata.RetryableError{Provider: "fake", StatusCode: 503, Message: "busy"}
	}
	title := "Principles of Markets"
	return &metadata.Metadata{ISBN: &isbn, Title: &title, Authors: []string{"A. Smith"}, Source: "fake"}, nil
}

type fakeGraph struct{ written []*qa.KGPayload }

func (g *fakeGraph) Write(_ context.Context, kg *qa.KGPayload) error {
	g.written = append(g.written, kg)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRunner(t *testing.T) (*Runner, storage.Adapter, *catalog.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalAdapter(filepath.Join(dir, "outputs"))
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	r := &Runner{
		Store:   store,
		Catalog: cat,
		Enricher: &enrich.Enricher{
			Tables:   enrich.HTMLTableAnalyzer{},
			Images:   enrich.CaptionImageAnalyzer{},
			Formulas: enrich.FormulaItemAnalyzer{},
		},
		Log:     discardLogger(),
		Opts:    Options{CharLimit: 1500, WriteReview: true},
		backoff: func(int) time.Duration { return 0 },
	}
	return r, store, cat
}

func bookInput() Input {
	return Input{DocID: "markets", Filename: "markets.md", Data: []byte(bookMarkdown)}
}

func TestRunner_WritesArtifacts(t *testing.T) {
	r, store, cat := newTestRunner(t)
	fetcher := &fakeFetcher{failures: 1}
	graph := &fakeGraph{}
	r.Metadata = fetcher
	r.Graph = graph

	var stages []int
	res, err := r.Run(context.Background(), bookInput(), func(_ JobStatus, stage int) {
		stages = append(stages, stage)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stages) == 0 || stages[0] != 1 || stages[len(stages)-1] != TotalStages {
		t.Errorf("expected stages 1..%d, got %v", TotalStages, stages)
	}
	if res.Elements == 0 || res.Chunks == 0 {
		t.Fatalf("expected elements and chunks, got %d/%d", res.Elements, res.Chunks)
	}
	if fetcher.calls != 2 {
		t.Errorf("expected metadata retried once, got %d calls", fetcher.calls)
	}
	if len(graph.written) != 1 || graph.written[0].DocID != "markets" {
		t.Errorf("expected kg exported once, got %d", len(graph.written))
	}

	ctx := context.Background()
	for _, file := range []string{
		"markets_elements.json",
		"markets_chunks.json",
		"markets_metadata.json",
		"markets_qa_segments.json",
		"markets_kg_segments.json",
		"markets_formula_segments.json",
		"markets_qa_review.docx",
	} {
		ok, err := store.Exists(ctx, ArtifactKey("markets", file))
		if err != nil || !ok {
			t.Errorf("expected %s stored (err=%v)", file, err)
		}
	}

	data, err := store.Get(ctx, ArtifactKey("markets", "markets_chunks.json"))
	if err != nil {
		t.Fatalf("get chunks: %v", err)
	}
	var chunks struct {
		DocID    string             `json:"doc_id"`
		Metadata *metadata.Metadata `json:"metadata"`
		Content  []json.RawMessage  `json:"content"`
	}
	if err := json.Unmarshal(data, &chunks); err != nil {
		t.Fatalf("unmarshal chunks: %v", err)
	}
	if chunks.DocID != "markets" || len(chunks.Content) != res.Chunks {
		t.Errorf("unexpected chunks file: doc %q, %d units", chunks.DocID, len(chunks.Content))
	}
	if chunks.Metadata == nil || chunks.Metadata.Title == nil || *chunks.Metadata.Title != "Principles of Markets" {
		t.Errorf("expected metadata embedded in chunks, got %+v", chunks.Metadata)
	}

	kgData, err := store.Get(ctx, ArtifactKey("markets", "markets_kg_segments.json"))
	if err != nil {
		t.Fatalf("get kg: %v", err)
	}
	var kg qa.KGPayload
	if err := json.Unmarshal(kgData, &kg); err != nil {
		t.Fatalf("unmarshal kg: %v", err)
	}
	if kg.Version != qa.KGVersion {
		t.Errorf("expected %q, got %q", qa.KGVersion, kg.Version)
	}

	doc, err := cat.Get(ctx, "markets")
	if err != nil {
		t.Fatalf("catalog get: %v", err)
	}
	if doc.Status != catalog.StatusComplete || doc.ISBN != "9780306406157" || doc.Title != "Principles of Markets" {
		t.Errorf("unexpected catalog row %+v", doc)
	}
	arts, err := cat.Artifacts(ctx, "markets")
	if err != nil {
		t.Fatalf("artifacts: %v", err)
	}
	if len(arts) != len(res.Artifacts) {
		t.Errorf("expected %d artifacts, got %d", len(res.Artifacts), len(arts))
	}
}

func TestRunner_DuplicateAndForce(t *testing.T) {
	r, _, _ := newTestRunner(t)
	ctx := context.Background()

	first, err := r.Run(ctx, bookInput(), nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	in := bookInput()
	in.DocID = "markets-copy"
	res, err := r.Run(ctx, in, nil)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if !res.Duplicate || res.DuplicateOf != "markets" || res.ContentHash != first.ContentHash {
		t.Errorf("unexpected duplicate result %+v", res)
	}

	in.Force = true
	if _, err := r.Run(ctx, in, nil); err != nil {
		t.Fatalf("forced run: %v", err)
	}
}

func TestRunner_NoMetadataWithoutResolution(t *testing.T) {
	r, store, _ := newTestRunner(t)
	r.Catalog = nil

	res, err := r.Run(context.Background(), bookInput(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Metadata.Resolved() {
		t.Error("expected unresolved metadata without a fetcher")
	}
	if res.Metadata.ISBN == nil || *res.Metadata.ISBN != "9780306406157" {
		t.Errorf("expected ISBN kept on the fallback record, got %v", res.Metadata.ISBN)
	}
	ok, _ := store.Exists(context.Background(), ArtifactKey("markets", "markets_metadata.json"))
	if ok {
		t.Error("expected no metadata file for an unresolved record")
	}
}

func TestRunner_EmptyInput(t *testing.T) {
	r, _, _ := newTestRunner(t)
	_, err := r.Run(context.Background(), Input{DocID: "empty", Filename: "empty.md", Data: []byte("\n")}, nil)
	if !errors.Is(err, ErrNoInput) {
		t.Errorf("expected ErrNoInput, got %v", err)
	}
}

func TestRunner_UnsupportedFormat(t *testing.T) {
	r, _, _ := newTestRunner(t)
	_, err := r.Run(context.Background(), Input{Filename: "book.epub", Data: []byte("x")}, nil)
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLookupMetadata_NonRetryableStops(t *testing.T) {
	r := &Runner{Metadata: fetchFunc(func() error { return errors.New("bad request") })}
	md := r.lookupMetadata(context.Background(), "123456789X", discardLogger())
	if md.Resolved() {
		t.Error("expected fallback record")
	}
}

type fetchFunc func() error

func (f fetchFunc) Fetch(context.Context, string) (*metadata.Metadata, error) {
	return nil, f()
}
