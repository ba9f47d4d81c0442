package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
)

const (
	// TextStopFilterName is the name of the multilingual stop word filter.
	TextStopFilterName = "nbs_stop"

	// TextAnalyzerName is the name of the content analyzer.
	TextAnalyzerName = "nbs_text"
)

func init() {
	_ = registry.RegisterTokenFilter(TextStopFilterName, textStopFilterConstructor)
}

// BleveIndex is a lexical index over chunk content backed by bleve.
// It is the alternative to the SQLite FTS5 index.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ LexicalIndex = (*BleveIndex)(nil)

// bleveDocument is the document structure for bleve indexing.
type bleveDocument struct {
	Content   string `json:"content"`
	EntityKey string `json:"entity_key"`
}

// validateIndexIntegrity checks if a bleve index is valid before opening.
// Returns nil if valid or absent.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// NewBleveIndex opens or creates an index at path.
// If path is empty, creates an in-memory index.
// A corrupted on-disk index is cleared and recreated; the caller reindexes.
func NewBleveIndex(path string) (*BleveIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, errors.InternalError("failed to create index mapping", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.New(errors.ErrCodeStoreUnavailable,
				fmt.Sprintf("failed to create directory %s", dir), err)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("bleve_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, errors.New(errors.ErrCodeStoreUnavailable, "bleve index corrupted and cannot be removed", removeErr).
					WithDetail("path", path)
			}
			slog.Info("bleve_index_cleared", slog.String("path", path))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "failed to create/open bleve index", err)
	}

	return &BleveIndex{index: idx, path: path}, nil
}

// createIndexMapping analyzes content with the unicode tokenizer, lowercasing
// and the stop filter; entity_key is indexed as a single keyword.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(TextAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
			TextStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	docMapping := bleve.NewDocumentMapping()

	content := bleve.NewTextFieldMapping()
	content.Analyzer = TextAnalyzerName
	content.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("content", content)

	entity := bleve.NewKeywordFieldMapping()
	entity.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("entity_key", entity)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = TextAnalyzerName
	return indexMapping, nil
}

// Index adds or replaces chunks.
func (b *BleveIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errStoreClosed()
	}

	batch := b.index.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(c.ID, bleveDocument{Content: LexicalDocument(c.Content), EntityKey: c.EntityKey}); err != nil {
			return errors.New(errors.ErrCodeIndexFailed, "failed to index chunk", err).WithDetail("id", c.ID)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "failed to execute batch", err)
	}
	return nil
}

// SearchLexical ranks chunks matching any query term by BM25.
func (b *BleveIndex) SearchLexical(ctx context.Context, queryStr string, limit int, filter Filter) ([]*LexicalResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errStoreClosed()
	}

	terms := LexicalTerms(queryStr)
	if len(terms) == 0 || limit <= 0 {
		return []*LexicalResult{}, nil
	}

	// Match queries default to OR between terms
	match := bleve.NewMatchQuery(strings.Join(terms, " "))
	match.SetField("content")

	var q query.Query = match
	if filter.EntityKey != "" {
		entity := bleve.NewTermQuery(filter.EntityKey)
		entity.SetField("entity_key")
		q = bleve.NewConjunctionQuery(match, entity)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.IncludeLocations = true
	req.SortBy([]string{"-_score", "_id"})

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "bleve search failed", err)
	}

	results := make([]*LexicalResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &LexicalResult{
			ID:           hit.ID,
			Rank:         hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}
	return results, nil
}

// Delete removes chunks from the index.
func (b *BleveIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errStoreClosed()
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "failed to delete chunks", err)
	}
	return nil
}

// Count returns the number of indexed chunks.
func (b *BleveIndex) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}
	n, _ := b.index.DocCount()
	return int(n)
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

// extractMatchedTerms extracts matched content terms from a hit, sorted.
func extractMatchedTerms(hit *search.DocumentMatch) []string {
	terms := make([]string, 0)
	for term := range hit.Locations["content"] {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

func textStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &textStopFilter{stopWords: defaultStopWords}, nil
}

// textStopFilter drops Indonesian, Malay and English stop words.
type textStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *textStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		if _, isStop := f.stopWords[string(token.Term)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
