// Package retrieval provides the reference-document similarity search used
// by the clinical handler.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"

	"nephro-assistant/pkg"
)

const batchSize = 500

// passageDocument is the structure indexed in bleve.
type passageDocument struct {
	Source     string `json:"source"`
	Page       int    `json:"page"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
}

// Index is a full-text index over reference passages.
type Index struct {
	index bleve.Index
}

// Open opens an existing on-disk index.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open passage index %s: %w", path, err)
	}
	return &Index{index: idx}, nil
}

// Create creates a new on-disk index at path.
func Create(path string) (*Index, error) {
	idx, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("create passage index %s: %w", path, err)
	}
	return &Index{index: idx}, nil
}

// OpenOrCreate opens the index at path, creating it if it does not exist.
func OpenOrCreate(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open passage index %s: %w", path, err)
	}
	return &Index{index: idx}, nil
}

// NewMemIndex creates an in-memory index.
func NewMemIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("create memory index: %w", err)
	}
	return &Index{index: idx}, nil
}

func newMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName

	source := bleve.NewTextFieldMapping()
	source.Analyzer = keyword.Name

	num := bleve.NewNumericFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", text)
	doc.AddFieldMappingsAt("source", source)
	doc.AddFieldMappingsAt("page", num)
	doc.AddFieldMappingsAt("chunk_index", num)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Add indexes passages in batches.  Passages without an ID are keyed by
// source, page and chunk.
func (i *Index) Add(ctx context.Context, passages []pkg.Passage) error {
	batch := i.index.NewBatch()
	for _, p := range passages {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := p.ID
		if id == "" {
			id = fmt.Sprintf("%s/%d/%d", p.Source, p.Page, p.ChunkIndex)
		}
		doc := passageDocument{Source: p.Source, Page: p.Page, ChunkIndex: p.ChunkIndex, Text: p.Text}
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("index passage %s: %w", id, err)
		}
		if batch.Size() >= batchSize {
			if err := i.index.Batch(batch); err != nil {
				return fmt.Errorf("flush passage batch: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := i.index.Batch(batch); err != nil {
			return fmt.Errorf("flush passage batch: %w", err)
		}
	}
	return nil
}

// Count returns the number of indexed passages.
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

// Search implements core.DocumentSearcher.  Results are ranked by score; an
// empty query or an empty index yields no passages.
func (i *Index) Search(ctx context.Context, query string, k int) ([]pkg.Passage, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return nil, nil
	}

	q := bleve.NewMatchQuery(query)
	q.SetField("text")
	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	req.Fields = []string{"source", "page", "chunk_index", "text"}

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("passage search: %w", err)
	}

	out := make([]pkg.Passage, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, pkg.Passage{
			ID:         hit.ID,
			Source:     stringField(hit.Fields, "source"),
			Page:       intField(hit.Fields, "page"),
			ChunkIndex: intField(hit.Fields, "chunk_index"),
			Text:       stringField(hit.Fields, "text"),
			Score:      hit.Score,
		})
	}
	return out, nil
}

// Close closes the underlying index.
func (i *Index) Close() error {
	if i.index == nil {
		return nil
	}
	return i.index.Close()
}

func stringField(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}

func intField(fields map[string]interface{}, name string) int {
	switch v := fields[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
