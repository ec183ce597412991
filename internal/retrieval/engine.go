// Package retrieval answers "which chunks are relevant to this query" by
// embedding the query and searching the knowledge base.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/docchat/docchat/internal/index"
	"github.com/docchat/docchat/internal/log"
)

// dedupPrefixRunes bounds the content prefix used to detect near-identical
// chunks that slipped in under different positions.
const dedupPrefixRunes = 100

// Embedder produces the query vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the knowledge base read surface.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, k int) ([]index.SearchHit, error)
}

// Engine retrieves relevant chunks for a query.
type Engine struct {
	embedder Embedder
	searcher Searcher
	logger   log.Logger
}

// NewEngine creates an Engine. A nil logger disables logging.
func NewEngine(embedder Embedder, searcher Searcher, logger log.Logger) (*Engine, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{
		embedder: embedder,
		searcher: searcher,
		logger:   logger.With("component", "retrieval"),
	}, nil
}

// Retrieve returns up to k deduplicated hits for query, best first. An
// empty query or an empty knowledge base yields an empty result.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) ([]index.SearchHit, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return nil, nil
	}

	vec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := e.searcher.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}

	deduped := dedupe(hits)
	e.logger.Debug("retrieved chunks", "requested", k, "found", len(hits), "after_dedup", len(deduped))
	return deduped, nil
}

// dedupe drops repeated positions and near-identical content, keeping
// the best-ranked occurrence.
func dedupe(hits []index.SearchHit) []index.SearchHit {
	if len(hits) == 0 {
		return nil
	}

	seenPos := make(map[string]bool, len(hits))
	seenContent := make(map[string]bool, len(hits))

	out := make([]index.SearchHit, 0, len(hits))
	for _, h := range hits {
		pos := fmt.Sprintf("%s#%d", h.DocumentID, h.Seq)
		if seenPos[pos] {
			continue
		}
		key := contentKey(h.Content)
		if seenContent[key] {
			continue
		}
		seenPos[pos] = true
		seenContent[key] = true
		out = append(out, h)
	}
	return out
}

// contentKey normalizes a chunk's leading content for duplicate detection.
func contentKey(content string) string {
	s := strings.ToLower(strings.Join(strings.Fields(content), " "))
	runes := []rune(s)
	if len(runes) > dedupPrefixRunes {
		runes = runes[:dedupPrefixRunes]
	}
	return string(runes)
}
