// Package answer orchestrates a question through retrieval, context
// assembly, and generation, in both blocking and streaming form.
package answer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/docchat/docchat/internal/index"
	"github.com/docchat/docchat/internal/log"
	"github.com/docchat/docchat/internal/memory"
)

// Default orchestration knobs.
const (
	DefaultTopK               = 10
	DefaultContextBudget      = 8000
	DefaultMaxHistoryMessages = 20
)

// Retriever finds chunks relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]index.SearchHit, error)
}

// Memory is the conversation history surface the orchestrator needs.
type Memory interface {
	Append(ctx context.Context, sessionID uuid.UUID, role memory.Role, content string) error
	RecentContext(ctx context.Context, sessionID uuid.UUID, limit int) ([]memory.Message, error)
	SessionLock(sessionID uuid.UUID) *sync.Mutex
}

// Config tunes the orchestrator. Zero values fall back to defaults.
type Config struct {
	TopK               int
	ContextBudget      int
	MaxHistoryMessages int
}

// Orchestrator owns the answering state machine. Turns on the same
// session serialize; turns on different sessions run concurrently.
type Orchestrator struct {
	retriever Retriever
	mem       Memory
	generator Generator
	cfg       Config
	logger    log.Logger
}

// NewOrchestrator creates an Orchestrator. A nil logger disables logging.
func NewOrchestrator(retriever Retriever, mem Memory, generator Generator,
	cfg Config, logger log.Logger) (*Orchestrator, error) {

	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if mem == nil {
		return nil, fmt.Errorf("memory is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = DefaultContextBudget
	}
	if cfg.MaxHistoryMessages <= 0 {
		cfg.MaxHistoryMessages = DefaultMaxHistoryMessages
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Orchestrator{
		retriever: retriever,
		mem:       mem,
		generator: generator,
		cfg:       cfg,
		logger:    logger.With("component", "answer"),
	}, nil
}

// turn tracks one question's state transitions.
type turn struct {
	state  State
	logger log.Logger
}

func (t *turn) to(s State) {
	t.logger.Debug("state transition", "from", t.state.String(), "to", s.String())
	t.state = s
}

// Answer runs a full turn and blocks until the answer is complete. On
// success both the question and the answer are persisted; on failure
// only the question is.
func (o *Orchestrator) Answer(ctx context.Context, sessionID uuid.UUID, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	lock := o.mem.SessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	t := &turn{state: StateReceived, logger: o.logger.With("session", sessionID)}

	prompt, err := o.prepare(ctx, t, sessionID, query)
	if err != nil {
		return "", err
	}

	t.to(StateGenerating)
	text, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		t.to(StateFailed)
		return "", fmt.Errorf("generating answer: %w", err)
	}

	if err := o.mem.Append(ctx, sessionID, memory.RoleAssistant, text); err != nil {
		t.to(StateFailed)
		return "", fmt.Errorf("persisting answer: %w", err)
	}

	t.to(StateCompleted)
	return text, nil
}

// AnswerStream runs a turn with incremental delivery. Retrieval and
// context assembly happen before it returns; generation runs in a
// producer goroutine feeding the returned Stream. A cancelled stream
// persists no assistant message.
func (o *Orchestrator) AnswerStream(ctx context.Context, sessionID uuid.UUID, query string) (*Stream, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	lock := o.mem.SessionLock(sessionID)
	lock.Lock()

	t := &turn{state: StateReceived, logger: o.logger.With("session", sessionID)}

	prompt, err := o.prepare(ctx, t, sessionID, query)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	genCtx, cancel := context.WithCancel(ctx)
	stream := newStream(cancel)

	t.to(StateGenerating)
	go func() {
		defer lock.Unlock()
		defer cancel()

		text, err := o.generator.GenerateStream(genCtx, prompt, stream.push)
		switch {
		case genCtx.Err() != nil:
			t.to(StateCancelled)
			stream.finish(StateCancelled, "", genCtx.Err())
		case err != nil:
			t.to(StateFailed)
			stream.finish(StateFailed, "", fmt.Errorf("generating answer: %w", err))
		default:
			if appendErr := o.mem.Append(ctx, sessionID, memory.RoleAssistant, text); appendErr != nil {
				t.to(StateFailed)
				stream.finish(StateFailed, "", fmt.Errorf("persisting answer: %w", appendErr))
				return
			}
			t.to(StateCompleted)
			stream.finish(StateCompleted, text, nil)
		}
	}()

	return stream, nil
}

// prepare runs the shared front half of a turn: persist the question,
// retrieve context, load history, and assemble the prompt.
func (o *Orchestrator) prepare(ctx context.Context, t *turn, sessionID uuid.UUID, query string) (Prompt, error) {
	if err := o.mem.Append(ctx, sessionID, memory.RoleUser, query); err != nil {
		t.to(StateFailed)
		return Prompt{}, fmt.Errorf("persisting question: %w", err)
	}

	t.to(StateRetrieving)
	hits, err := o.retriever.Retrieve(ctx, query, o.cfg.TopK)
	if err != nil {
		t.to(StateFailed)
		return Prompt{}, fmt.Errorf("retrieving context: %w", err)
	}

	// The question is already persisted, so drop it from the loaded
	// history; the model must see it exactly once.
	history, err := o.mem.RecentContext(ctx, sessionID, o.cfg.MaxHistoryMessages)
	if err != nil {
		t.to(StateFailed)
		return Prompt{}, fmt.Errorf("loading history: %w", err)
	}
	if n := len(history); n > 0 && history[n-1].Role == memory.RoleUser && history[n-1].Content == query {
		history = history[:n-1]
	}

	t.to(StateContextAssembled)
	o.logger.Debug("context assembled",
		"session", sessionID,
		"chunks", len(hits),
		"history", len(history),
	)

	return buildPrompt(hits, history, query, o.cfg.ContextBudget), nil
}
