package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/docchat/docchat/internal/log"
	"github.com/docchat/docchat/internal/memory"
)

// ErrGeneration indicates the generation provider failed after retries.
var ErrGeneration = errors.New("generation provider error")

// StreamFunc receives response deltas as the model produces them.
// Returning an error aborts the generation.
type StreamFunc func(ctx context.Context, delta string) error

// Generator produces an answer for an assembled prompt. GenerateStream
// must deliver deltas whose concatenation equals the returned text.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
	GenerateStream(ctx context.Context, prompt Prompt, stream StreamFunc) (string, error)
}

// RetryConfig configures retry behavior for model calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns sensible defaults for model API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups transient error substrings, matched
// case-insensitively. String matching because the provider SDKs expose
// no typed errors for these failures.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},
	{"500", "502", "503", "504", "unavailable"},
	{"connection reset", "timeout", "temporary"},
}

func retryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, sub := range group {
			if strings.Contains(errStr, sub) {
				return true
			}
		}
	}
	return false
}

// GenkitGenerator runs prompts through a Genkit model with retry and
// rate limiting.
type GenkitGenerator struct {
	g         *genkit.Genkit
	modelName string
	retry     RetryConfig
	limiter   *rate.Limiter
	logger    log.Logger
}

// NewGenkitGenerator creates a GenkitGenerator for the named model.
// limiter may be nil to disable rate limiting; a nil logger disables
// logging.
func NewGenkitGenerator(g *genkit.Genkit, modelName string, retry RetryConfig,
	limiter *rate.Limiter, logger log.Logger) (*GenkitGenerator, error) {

	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if retry == (RetryConfig{}) {
		retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &GenkitGenerator{
		g:         g,
		modelName: modelName,
		retry:     retry,
		limiter:   limiter,
		logger:    logger.With("component", "generator"),
	}, nil
}

// Generate implements Generator.
func (gg *GenkitGenerator) Generate(ctx context.Context, prompt Prompt) (string, error) {
	return gg.generate(ctx, prompt, nil)
}

// GenerateStream implements Generator.
func (gg *GenkitGenerator) GenerateStream(ctx context.Context, prompt Prompt, stream StreamFunc) (string, error) {
	return gg.generate(ctx, prompt, stream)
}

func (gg *GenkitGenerator) generate(ctx context.Context, prompt Prompt, stream StreamFunc) (string, error) {
	messages := make([]*ai.Message, 0, len(prompt.History)+1)
	for _, m := range prompt.History {
		switch m.Role {
		case memory.RoleAssistant:
			messages = append(messages, ai.NewModelTextMessage(m.Content))
		default:
			messages = append(messages, ai.NewUserTextMessage(m.Content))
		}
	}
	messages = append(messages, ai.NewUserTextMessage(prompt.User))

	opts := []ai.GenerateOption{
		ai.WithModelName(gg.modelName),
		ai.WithSystem(prompt.System),
		ai.WithMessages(messages...),
	}

	// Once deltas have been delivered a retry would replay them, so only
	// attempts that failed before streaming anything are retried.
	streamed := false
	if stream != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			streamed = true
			return stream(ctx, chunk.Text())
		}))
	}

	var lastErr error
	delay := gg.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= gg.retry.MaxRetries; attempt++ {
		if gg.limiter != nil {
			if err := gg.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := genkit.Generate(ctx, gg.g, opts...)
		if err == nil {
			gg.logger.Debug("generation succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp.Text(), nil
		}
		lastErr = err

		if streamed || !retryableError(err) {
			return "", fmt.Errorf("%w: %v", ErrGeneration, err)
		}
		if attempt == gg.retry.MaxRetries {
			break
		}

		gg.logger.Debug("retrying generation after error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, gg.retry.MaxInterval)
		}
	}

	return "", fmt.Errorf("%w: after %d retries (elapsed: %v): %v",
		ErrGeneration, gg.retry.MaxRetries, time.Since(start), lastErr)
}
