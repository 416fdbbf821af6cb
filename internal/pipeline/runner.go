package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/docgraph/internal/catalog"
	"github.com/dgallion1/docgraph/internal/chunker"
	"github.com/dgallion1/docgraph/internal/concepts"
	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/enrich"
	"github.com/dgallion1/docgraph/internal/layout"
	"github.com/dgallion1/docgraph/internal/metadata"
	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/dgallion1/docgraph/internal/qa"
	"github.com/dgallion1/docgraph/internal/refs"
	"github.com/dgallion1/docgraph/internal/storage"
	"github.com/dgallion1/docgraph/internal/toc"
	"github.com/dgallion1/docgraph/internal/tree"
)

// MetadataFetcher resolves an ISBN. *metadata.Client implements it.
type MetadataFetcher interface {
	Fetch(ctx context.Context, isbn string) (*metadata.Metadata, error)
}

// GraphWriter mirrors a KG sidecar into a graph store. *graphsink.Sink
// implements it.
type GraphWriter interface {
	Write(ctx context.Context, kg *qa.KGPayload) error
}

// Options tunes a Runner.
type Options struct {
	CharLimit            int
	PDFFallbackPdftotext bool
	TOCScanPages         int
	VisualDir            string // crops root; empty disables crop rendering
	ConceptsDir          string
	ConceptsPath         string
	MinMatchRate         float64
	WriteReview          bool
}

// Input is one document to process.
type Input struct {
	DocID    string
	Filename string // decides the reader by extension
	Data     []byte
	PDFPath  string // optional local PDF for outline, contents pages and crops
	DocURI   string // recorded on every unit; defaults to PDFPath
	Force    bool   // skip duplicate detection

	RemovePDF bool // PDFPath is a temporary upload, removed after the run
}

// Result summarizes a run.
type Result struct {
	DocID       string             `json:"doc_id"`
	ContentHash string             `json:"content_hash"`
	Duplicate   bool               `json:"duplicate,omitempty"`
	DuplicateOf string             `json:"duplicate_of,omitempty"`
	TOCSource   string             `json:"toc_source"`
	Elements    int                `json:"elements"`
	Chunks      int                `json:"chunks"`
	Segments    int                `json:"qa_segments"`
	Edges       int                `json:"qa_edges"`
	KGNodes     int                `json:"kg_nodes"`
	Metadata    metadata.Metadata  `json:"metadata"`
	Artifacts   []catalog.Artifact `json:"artifacts"`
	Warnings    []string           `json:"warnings,omitempty"`
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Runner executes the eight processing stages for one document and stores
// every artifact. Catalog, Metadata, Graph and Enricher may be nil.
type Runner struct {
	Store     storage.Adapter
	Catalog   *catalog.Store
	Metadata  MetadataFetcher
	Graph     GraphWriter
	Enricher  *enrich.Enricher
	Extractor qa.SegmentExtractor // nil uses the heuristic extractor
	Log       *slog.Logger
	Opts      Options

	backoff func(attempt int) time.Duration
}

// ProgressFunc receives stage transitions.
type ProgressFunc func(status JobStatus, stage int)

// Run processes in. A duplicate returns ErrDuplicate with a Result naming
// the existing document.
func (r *Runner) Run(ctx context.Context, in Input, progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(JobStatus, int) {}
	}
	if in.DocID == "" {
		in.DocID = parser.DocIDFromFilename(in.Filename)
	}
	if in.DocURI == "" {
		in.DocURI = in.PDFPath
	}
	log := r.logger().With("doc_id", in.DocID)
	res := &Result{DocID: in.DocID, Artifacts: []catalog.Artifact{}}

	progress(StatusParsing, 1)
	log.Info("[1/8] load and normalize blocks", "file", in.Filename)
	doc, err := parser.Parse(bytes.NewReader(in.Data), in.Filename)
	if err != nil {
		return res, fmt.Errorf("parse: %w", err)
	}
	doc.DocID = in.DocID
	if len(doc.Blocks) == 0 {
		return res, ErrNoInput
	}
	res.ContentHash = blocksHash(doc.RawBlocks)

	if !in.Force && r.Catalog != nil {
		existing, err := r.Catalog.FindByHash(ctx, res.ContentHash)
		switch {
		case err == nil:
			log.Info("duplicate document, skipping", "existing_doc_id", existing.DocID)
			res.Duplicate = true
			res.DuplicateOf = existing.DocID
			return res, ErrDuplicate
		case !errors.Is(err, catalog.ErrNotFound):
			log.Warn("dedup check failed, proceeding", "error", err)
		}
	}
	if r.Catalog != nil {
		if err := r.Catalog.Begin(ctx, in.DocID, res.ContentHash, in.Filename); err != nil {
			return res, err
		}
	}

	if err := r.process(ctx, in, doc, res, log, progress); err != nil {
		if r.Catalog != nil {
			if ferr := r.Catalog.Fail(context.WithoutCancel(ctx), in.DocID, err.Error()); ferr != nil {
				log.Error("catalog update failed", "error", ferr)
			}
		}
		return res, err
	}

	if r.Catalog != nil {
		sum := catalog.Summary{
			PageCount:    len(doc.PageSizes),
			ChunkCount:   res.Chunks,
			SegmentCount: res.Segments,
			NodeCount:    res.KGNodes,
		}
		if res.Metadata.Title != nil {
			sum.Title = *res.Metadata.Title
		}
		if res.Metadata.ISBN != nil {
			sum.ISBN = *res.Metadata.ISBN
		}
		if err := r.Catalog.Complete(ctx, in.DocID, sum, res.Artifacts); err != nil {
			return res, fmt.Errorf("catalog: %w", err)
		}
	}
	log.Info("completed", "elements", res.Elements, "chunks", res.Chunks,
		"qa_segments", res.Segments, "kg_nodes", res.KGNodes, "warnings", len(res.Warnings))
	return res, nil
}

func (r *Runner) process(ctx context.Context, in Input, doc *parser.Document, res *Result, log *slog.Logger, progress ProgressFunc) error {
	docID := in.DocID

	var pdf *parser.PDFSource
	if in.PDFPath != "" {
		src, err := parser.OpenPDF(in.PDFPath, r.Opts.PDFFallbackPdftotext)
		if err != nil {
			res.warn("pdf: %s", err)
			log.Warn("pdf unavailable, continuing without outline", "error", err)
		} else {
			pdf = src
			defer pdf.Close()
		}
	}

	progress(StatusLayout, 2)
	log.Info("[2/8] layout correction and visual crops")
	blocks := layout.Correct(doc.Blocks, doc.PageSizes)
	if in.PDFPath != "" && r.Opts.VisualDir != "" {
		r.renderCrops(ctx, in.PDFPath, docID, blocks, doc.PageSizes, res, log)
	}

	progress(StatusStructuring, 3)
	log.Info("[3/8] outline resolution and document tree")
	resolver := &toc.Resolver{MaxScanPages: r.Opts.TOCScanPages}
	if pdf != nil {
		resolver.Outline = pdf
		resolver.Pages = pdf
	}
	outline := resolver.Resolve(blocks)
	for _, w := range outline.Warnings {
		res.warn("toc: %s", w)
	}
	res.TOCSource = outline.Source
	docTree := tree.Build(outline.Entries, blocks, outline.Source)
	mainPage, ok := tree.MainBodyPage(outline.Entries)
	if !ok {
		mainPage = -1
	}
	tree.FilterSections(docTree, mainPage)
	tree.Prune(docTree)

	progress(StatusChunking, 4)
	log.Info("[4/8] build elements")
	elements := finishUnits(chunker.BuildElements(docTree), docID, in.DocURI)
	res.Elements = len(elements)

	log.Info("[5/8] build chunks")
	chunks := finishUnits(chunker.ChunkTree(docTree, chunker.Config{CharLimit: r.Opts.CharLimit}), docID, in.DocURI)
	chunker.AnnotateQAHints(chunks)
	res.Chunks = len(chunks)
	if len(chunks) == 0 {
		return ErrNoUnits
	}

	progress(StatusEnriching, 6)
	log.Info("[6/8] table, image and formula enrichment")
	ann := enrich.NewAnnotations()
	if r.Enricher != nil {
		ann = r.Enricher.Run(ctx, docID, chunks)
	}
	refs.Link(chunks, ann.EquationNumbers())
	if tables := ann.TableList(); len(tables) > 0 {
		if err := enrich.WriteTableMirrors(ctx, r.Store, docID+"/tables", docID, tables); err != nil {
			res.warn("table mirrors: %s", err)
		}
	}
	if images := ann.ImageList(); len(images) > 0 {
		if err := enrich.WriteVisualMirrors(ctx, r.Store, docID+"/visuals", docID, images); err != nil {
			res.warn("visual mirrors: %s", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	progress(StatusLinking, 7)
	log.Info("[7/8] QA and derivation sidecars")
	payload := r.buildQA(ctx, in, chunks, blocks, doc.PageSizes, ann, res, log)
	kg := qa.BuildKG(payload)
	res.Segments = len(payload.Segments)
	res.Edges = len(payload.Edges)
	res.KGNodes = kg.Stats.NodeCount

	progress(StatusStoring, 8)
	log.Info("[8/8] metadata and outputs")
	res.Metadata = r.lookupMetadata(ctx, metadata.FindISBN(doc.RawBlocks), log)

	out := &outputs{store: r.Store, docID: docID, res: res}
	out.json(ctx, "elements", docID+"_elements.json", unitDocument{DocID: docID, Content: elements})
	chunkDoc := unitDocument{DocID: docID, Content: ann.Attach(chunks)}
	if res.Metadata.Resolved() {
		chunkDoc.Metadata = &res.Metadata
		out.json(ctx, "metadata", docID+"_metadata.json", metadataDocument{DocID: docID, Metadata: res.Metadata})
	}
	out.json(ctx, "chunks", docID+"_chunks.json", chunkDoc)
	out.json(ctx, "qa", docID+"_qa_segments.json", payload)
	out.json(ctx, "kg", docID+"_kg_segments.json", kg)
	out.json(ctx, "formulas", docID+"_formula_segments.json", qa.FormulaModule(payload, in.DocURI))
	if r.Opts.WriteReview {
		out.review(ctx, docID+"_qa_review.docx", payload)
	}
	if out.err != nil {
		return out.err
	}

	if r.Graph != nil {
		if err := r.Graph.Write(ctx, kg); err != nil {
			res.warn("graph export: %s", err)
			log.Warn("graph export failed", "error", err)
		}
	}
	return nil
}

// finishUnits applies the shared post-processing of elements and chunks.
func finishUnits(units []doctree.Unit, docID, docURI string) []doctree.Unit {
	chunker.MarkNumberedLists(units)
	units = chunker.Finalize(units)
	refs.Link(units, nil)
	chunker.AnnotateTraceability(units, docID, docURI)
	return units
}

func (r *Runner) buildQA(ctx context.Context, in Input, chunks []doctree.Unit, blocks []doctree.ContentBlock,
	sizes doctree.PageSizes, ann *enrich.Annotations, res *Result, log *slog.Logger) *qa.Payload {
	var glossary *concepts.Glossary
	if path := concepts.ResolvePath(r.Opts.ConceptsPath, r.Opts.ConceptsDir, in.DocID); path != "" {
		g, err := concepts.Load(path)
		if err != nil {
			res.warn("concepts: %s", err)
			log.Warn("concept glossary unavailable", "path", path, "error", err)
		} else {
			glossary = g
		}
	}

	b := qa.NewBuilder(glossary)
	if r.Extractor != nil {
		b.Extractor = r.Extractor
	}
	payload := b.Build(ctx, qa.Input{
		DocID:     in.DocID,
		DocURI:    in.DocURI,
		Units:     chunks,
		Blocks:    blocks,
		PageSizes: sizes,
		Formulas:  ann.FormulaList(),
	})
	if payload.Stats.Error != "" {
		res.warn("qa: %s", payload.Stats.Error)
	}
	if payload.Stats.LinkError != "" {
		res.warn("qa link: %s", payload.Stats.LinkError)
	}
	if payload.Stats.PageErrors > 0 {
		res.warn("qa: %d pages failed extraction", payload.Stats.PageErrors)
	}

	if payload.Matchable() > 0 && payload.Stats.SourceMatchRate < r.minMatchRate() {
		res.warn("qa: source match rate %.3f below %.2f", payload.Stats.SourceMatchRate, r.minMatchRate())
	}
	log.Info("qa sidecar built", "segments", len(payload.Segments), "edges", len(payload.Edges),
		"source_match_rate", payload.Stats.SourceMatchRate)
	return payload
}

func (r *Runner) minMatchRate() float64 {
	if r.Opts.MinMatchRate > 0 {
		return r.Opts.MinMatchRate
	}
	return qa.DefaultMinMatchRate
}

func (r *Runner) renderCrops(ctx context.Context, pdfPath, docID string, blocks []doctree.ContentBlock,
	sizes doctree.PageSizes, res *Result, log *slog.Logger) {
	fz, err := parser.OpenFitz(pdfPath)
	if err != nil {
		log.Info("visual crops skipped", "reason", err)
		return
	}
	defer fz.Close()
	n, err := enrich.ExtractVisualCrops(ctx, fz, blocks, sizes, filepath.Join(r.Opts.VisualDir, docID), enrich.DefaultCropConfig())
	if err != nil {
		res.warn("visual crops: %s", err)
	}
	log.Info("visual crops written", "count", n)
}

// lookupMetadata resolves isbn with retries on retryable provider errors.
// It never fails; the fallback is an all-null record.
func (r *Runner) lookupMetadata(ctx context.Context, isbn string, log *slog.Logger) metadata.Metadata {
	if isbn == "" || r.Metadata == nil {
		return metadata.Empty(isbn)
	}
	backoff := r.backoff
	if backoff == nil {
		backoff = Backoff
	}
	for attempt := range MaxRetries {
		md, err := r.Metadata.Fetch(ctx, isbn)
		if err == nil && md != nil {
			return *md
		}
		if err == nil || !IsRetryable(err) {
			if err != nil {
				log.Warn("metadata lookup failed", "isbn", isbn, "error", err)
			}
			break
		}
		log.Warn("retryable metadata error", "isbn", isbn, "attempt", attempt, "error", err)
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return metadata.Empty(isbn)
		}
	}
	return metadata.Empty(isbn)
}

func (r *Runner) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

// blocksHash fingerprints the normalized block text so re-encoded copies of
// the same book are detected as duplicates.
func blocksHash(blocks []doctree.ContentBlock) string {
	var sb strings.Builder
	for _, b := range blocks {
		if b.Text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(b.Text)
	}
	return ContentHashHex([]byte(sb.String()))
}
