package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/dgallion1/docgraph/internal/catalog"
	"github.com/dgallion1/docgraph/internal/metadata"
	"github.com/dgallion1/docgraph/internal/qa"
	"github.com/dgallion1/docgraph/internal/review"
	"github.com/dgallion1/docgraph/internal/storage"
)

// unitDocument is the envelope of the elements and chunks files.
type unitDocument struct {
	DocID    string             `json:"doc_id"`
	Metadata *metadata.Metadata `json:"metadata,omitempty"`
	Content  any                `json:"content"`
}

type metadataDocument struct {
	DocID    string            `json:"doc_id"`
	Metadata metadata.Metadata `json:"metadata"`
}

// outputs writes artifacts under {doc_id}/ and records them on the result.
// The first error sticks and later writes are skipped.
type outputs struct {
	store storage.Adapter
	docID string
	res   *Result
	err   error
}

// ArtifactKey returns the storage key of a named file of a document.
func ArtifactKey(docID, file string) string {
	return path.Join(docID, file)
}

func (o *outputs) put(ctx context.Context, name, file string, data []byte) {
	if o.err != nil {
		return
	}
	key := ArtifactKey(o.docID, file)
	if err := o.store.Put(ctx, key, data); err != nil {
		o.err = fmt.Errorf("store %s: %w", key, err)
		return
	}
	o.res.Artifacts = append(o.res.Artifacts, catalog.Artifact{Name: name, Key: key, Size: len(data)})
}

func (o *outputs) json(ctx context.Context, name, file string, v any) {
	if o.err != nil {
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		o.err = fmt.Errorf("marshal %s: %w", name, err)
		return
	}
	o.put(ctx, name, file, data)
}

func (o *outputs) review(ctx context.Context, file string, p *qa.Payload) {
	if o.err != nil {
		return
	}
	var buf bytes.Buffer
	if _, err := review.Write(&buf, p); err != nil {
		o.res.warn("review: %s", err)
		return
	}
	o.put(ctx, "review", file, buf.Bytes())
}
