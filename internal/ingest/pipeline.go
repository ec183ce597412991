// Package ingest turns uploaded PDF files into embedded, searchable
// chunks. Each file is processed independently: a malformed file is
// recorded and skipped, a systemic failure (embedding provider, storage)
// aborts the batch.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/docchat/docchat/internal/chunker"
	"github.com/docchat/docchat/internal/index"
	"github.com/docchat/docchat/internal/log"
	"github.com/docchat/docchat/internal/pdf"
)

// ErrNotPDF indicates a file was rejected because it does not carry the
// .pdf extension.
var ErrNotPDF = errors.New("not a pdf file")

// DefaultWorkers bounds concurrent parse and embed work per batch.
const DefaultWorkers = 4

// Parser extracts plain text from document bytes.
type Parser interface {
	ExtractText(data []byte) (string, error)
}

// Embedder turns chunk texts into vectors, one per text, in order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the knowledge base surface the pipeline writes to.
type Store interface {
	Upsert(ctx context.Context, filename string, data []byte, chunks []index.Chunk) error
	DeleteDocument(ctx context.Context, filename string) error
	ListDocuments(ctx context.Context) ([]index.Document, error)
	Clear(ctx context.Context) error
}

// File is one uploaded document.
type File struct {
	Name string
	Data []byte
}

// Failure records why a single file was skipped.
type Failure struct {
	Filename string `json:"filename"`
	Reason   string `json:"error"`
}

// Result summarizes one ingestion batch.
type Result struct {
	Ingested []string  `json:"ingested"`
	Failed   []Failure `json:"failed"`
}

// Config tunes the pipeline. Zero values fall back to defaults.
type Config struct {
	Workers int

	// MinChunkChars drops chunks shorter than this after cleaning.
	// Zero keeps everything.
	MinChunkChars int
}

// Pipeline ingests files: parse, clean, chunk, embed, store.
type Pipeline struct {
	splitter *chunker.Splitter
	parser   Parser
	embedder Embedder
	store    Store
	cfg      Config
	logger   log.Logger
}

// NewPipeline creates a Pipeline. A nil logger disables logging.
func NewPipeline(splitter *chunker.Splitter, parser Parser, embedder Embedder, store Store,
	cfg Config, logger log.Logger) (*Pipeline, error) {

	if splitter == nil {
		return nil, fmt.Errorf("splitter is required")
	}
	if parser == nil {
		return nil, fmt.Errorf("parser is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Pipeline{
		splitter: splitter,
		parser:   parser,
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		logger:   logger.With("component", "ingest"),
	}, nil
}

// Ingest processes files on a bounded worker pool. Each file commits
// atomically: it is either fully searchable afterwards or absent. Files
// that fail to parse are recorded in Result.Failed and do not abort the
// batch; provider or storage errors do. Result entries are sorted by
// filename.
func (p *Pipeline) Ingest(ctx context.Context, files []File) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	result := &Result{}
	sem := make(chan struct{}, p.cfg.Workers)

	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(f File) {
			defer wg.Done()
			defer func() { <-sem }()

			err := p.ingestOne(ctx, f)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Ingested = append(result.Ingested, f.Name)
			case errors.Is(err, pdf.ErrParse) || errors.Is(err, ErrNotPDF):
				p.logger.Warn("skipping file", "filename", f.Name, "error", err)
				result.Failed = append(result.Failed, Failure{Filename: f.Name, Reason: err.Error()})
			default:
				if firstErr == nil {
					firstErr = fmt.Errorf("ingesting %q: %w", f.Name, err)
					cancel()
				}
			}
		}(f)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	sort.Strings(result.Ingested)
	sort.Slice(result.Failed, func(i, j int) bool {
		return result.Failed[i].Filename < result.Failed[j].Filename
	})
	return result, nil
}

// ingestOne runs the full pipeline for a single file.
func (p *Pipeline) ingestOne(ctx context.Context, f File) error {
	if !strings.HasSuffix(strings.ToLower(f.Name), ".pdf") {
		return fmt.Errorf("%w: %q", ErrNotPDF, f.Name)
	}

	text, err := p.parser.ExtractText(f.Data)
	if err != nil {
		return err
	}

	texts := p.chunkTexts(text)

	// A parseable document with no extractable text still registers,
	// with zero chunks.
	if len(texts) == 0 {
		return p.store.Upsert(ctx, f.Name, f.Data, nil)
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(texts))
	}

	chunks := make([]index.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = index.Chunk{Seq: i, Content: t, Embedding: vectors[i]}
	}

	if err := p.store.Upsert(ctx, f.Name, f.Data, chunks); err != nil {
		return err
	}

	p.logger.Info("document ingested", "filename", f.Name, "chunks", len(chunks))
	return nil
}

// chunkTexts cleans, splits, and quality-filters extracted text.
func (p *Pipeline) chunkTexts(text string) []string {
	cleaned := pdf.Clean(text)
	if cleaned == "" {
		return nil
	}

	var texts []string
	for _, c := range p.splitter.Split(cleaned) {
		if p.cfg.MinChunkChars > 0 && len([]rune(strings.TrimSpace(c))) < p.cfg.MinChunkChars {
			continue
		}
		texts = append(texts, c)
	}
	return texts
}

// RemoveDocument deletes one document from the knowledge base.
func (p *Pipeline) RemoveDocument(ctx context.Context, filename string) error {
	return p.store.DeleteDocument(ctx, filename)
}

// ListDocuments returns registry metadata for every ingested document.
func (p *Pipeline) ListDocuments(ctx context.Context) ([]index.Document, error) {
	return p.store.ListDocuments(ctx)
}

// ClearAll removes every document from the knowledge base.
func (p *Pipeline) ClearAll(ctx context.Context) error {
	return p.store.Clear(ctx)
}

// SanitizeFilename reduces an uploaded name to its base component.
func SanitizeFilename(name string) string {
	return filepath.Base(strings.ReplaceAll(name, "\\", "/"))
}
