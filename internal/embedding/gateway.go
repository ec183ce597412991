// Package embedding wraps a Genkit embedder behind a gateway that batches
// requests, retries transient provider failures, and rate limits upstream
// calls. Ingestion and query traffic share one gateway so they share one
// limiter.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/docchat/docchat/internal/log"
)

// ErrProvider indicates the upstream embedding provider failed or returned
// a malformed response after retries were exhausted.
var ErrProvider = errors.New("embedding provider error")

// Dimension is the vector width of every embedding produced by the
// gateway. gemini-embedding-001 outputs 3072 dimensions by default but
// supports truncation via OutputDimensionality; the chunks schema stores
// VECTOR(768).
const Dimension = 768

// DefaultBatchSize bounds how many texts go into a single provider call.
const DefaultBatchSize = 32

// Config tunes the gateway. Zero values fall back to defaults.
type Config struct {
	BatchSize int
	Retry     RetryConfig

	// RateLimit is the sustained upstream request rate in requests per
	// second. Zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Gateway is the only path to the embedding provider.
type Gateway struct {
	embedder ai.Embedder
	limiter  *rate.Limiter
	cfg      Config
	logger   log.Logger
}

// NewGateway creates a Gateway around embedder. A nil logger disables
// logging.
func NewGateway(embedder ai.Embedder, cfg Config, logger log.Logger) *Gateway {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = log.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Gateway{
		embedder: embedder,
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger.With("component", "embedding"),
	}
}

// EmbedTexts embeds texts in input order, one vector per text. Texts are
// sent upstream in batches of at most BatchSize. Empty input yields nil.
func (g *Gateway) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += g.cfg.BatchSize {
		end := min(start+g.cfg.BatchSize, len(texts))
		batch, err := g.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (g *Gateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embedBatch performs one provider call with retry, then validates the
// response cardinality and dimensions.
func (g *Gateway) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}
	dim := int32(Dimension)
	req := &ai.EmbedRequest{
		Input:   docs,
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	}

	resp, err := g.embedWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs",
			ErrProvider, len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Embedding) != Dimension {
			got := 0
			if e != nil {
				got = len(e.Embedding)
			}
			return nil, fmt.Errorf("%w: embedding %d has %d dimensions, want %d",
				ErrProvider, i, got, Dimension)
		}
		vectors[i] = e.Embedding
	}
	return vectors, nil
}

// embedWithRetry calls the provider with exponential backoff on transient
// errors. The rate limiter gates each attempt, retries included.
func (g *Gateway) embedWithRetry(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	var lastErr error
	delay := g.cfg.Retry.InitialInterval

	for attempt := 0; attempt <= g.cfg.Retry.MaxRetries; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := g.embedder.Embed(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("%w: %v", ErrProvider, err)
		}
		if attempt == g.cfg.Retry.MaxRetries {
			break
		}

		g.logger.Debug("retrying embed after error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, g.cfg.Retry.MaxInterval)
		}
	}

	return nil, fmt.Errorf("%w: after %d retries: %v",
		ErrProvider, g.cfg.Retry.MaxRetries, lastErr)
}
