// Package index builds searchable embedding indexes over document passages.
package index

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"github.com/ziadkadry99/pdf-inquiry/internal/embeddings"
	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
	"github.com/ziadkadry99/pdf-inquiry/internal/segment"
)

// EmbeddingError reports a failure of the embedding model.
type EmbeddingError struct {
	Model string
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding with %s: %v", e.Model, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Result is a passage matched by a similarity search.
type Result struct {
	Passage    segment.Passage `json:"passage"`
	Similarity float32         `json:"similarity"`
}

// Index is an immutable set of embedded passages for one document.
type Index struct {
	fp         fingerprint.Fingerprint
	embedder   embeddings.Embedder
	collection *chromem.Collection
	passages   []segment.Passage
}

// Fingerprint returns the fingerprint of the document the index was built from.
func (ix *Index) Fingerprint() fingerprint.Fingerprint { return ix.fp }

// Len returns the number of passages in the index.
func (ix *Index) Len() int { return len(ix.passages) }

// Passages returns a copy of the indexed passages in document order.
func (ix *Index) Passages() []segment.Passage {
	out := make([]segment.Passage, len(ix.passages))
	copy(out, ix.passages)
	return out
}

// Search embeds query and returns up to k passages ordered by descending
// cosine similarity.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 || len(ix.passages) == 0 {
		return nil, nil
	}
	k = min(k, len(ix.passages))

	vecs, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, &EmbeddingError{Model: ix.embedder.Name(), Err: err}
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, &EmbeddingError{Model: ix.embedder.Name(), Err: fmt.Errorf("no embedding returned for query")}
	}

	hits, err := ix.collection.QueryEmbedding(ctx, vecs[0], k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		i, err := strconv.Atoi(h.ID)
		if err != nil || i < 0 || i >= len(ix.passages) {
			return nil, fmt.Errorf("index returned unknown passage id %q", h.ID)
		}
		results = append(results, Result{Passage: ix.passages[i], Similarity: h.Similarity})
	}
	return results, nil
}

// Builder embeds passages and assembles them into an Index.
type Builder struct {
	embedder embeddings.Embedder
}

// NewBuilder creates a Builder that shares one embedder across all builds.
func NewBuilder(embedder embeddings.Embedder) *Builder {
	return &Builder{embedder: embedder}
}

// Build embeds every passage and returns the resulting index. An empty
// passage list gives an empty index without calling the model.
func (b *Builder) Build(ctx context.Context, fp fingerprint.Fingerprint, passages []segment.Passage) (*Index, error) {
	collection, err := chromem.NewDB().CreateCollection(string(fp), nil, embeddings.ToChromemFunc(b.embedder))
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	ix := &Index{
		fp:         fp,
		embedder:   b.embedder,
		collection: collection,
		passages:   make([]segment.Passage, len(passages)),
	}
	copy(ix.passages, passages)
	if len(passages) == 0 {
		return ix, nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	vecs, err := b.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, &EmbeddingError{Model: b.embedder.Name(), Err: err}
	}
	if len(vecs) != len(passages) {
		return nil, &EmbeddingError{
			Model: b.embedder.Name(),
			Err:   fmt.Errorf("got %d embeddings for %d passages", len(vecs), len(passages)),
		}
	}

	docs := make([]chromem.Document, len(passages))
	for i, p := range passages {
		if len(vecs[i]) == 0 {
			return nil, &EmbeddingError{Model: b.embedder.Name(), Err: fmt.Errorf("empty embedding for passage %d", i)}
		}
		// Passages are addressed by their slot in ix.passages.
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   p.Text,
			Embedding: vecs[i],
			Metadata: map[string]string{
				"page":   strconv.Itoa(p.Page),
				"offset": strconv.Itoa(p.Offset),
			},
		}
	}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("adding passages to index: %w", err)
	}
	return ix, nil
}
