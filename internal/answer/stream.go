package answer

import (
	"context"
	"sync"
)

// Stream is a lazy, finite, cancellable sequence of answer deltas.
// Consumers range over Chunks() until it closes, then inspect Err() and
// Text(). Abandoning the stream without draining it requires Cancel(),
// which also releases the producer.
type Stream struct {
	chunks chan string
	cancel context.CancelFunc

	mu    sync.Mutex
	state State
	text  string
	err   error
}

func newStream(cancel context.CancelFunc) *Stream {
	return &Stream{
		chunks: make(chan string),
		cancel: cancel,
		state:  StateGenerating,
	}
}

// Chunks returns the delta channel. It closes when the answer is
// complete, failed, or cancelled.
func (s *Stream) Chunks() <-chan string {
	return s.chunks
}

// Cancel aborts generation. Safe to call multiple times and after
// completion, where it has no effect.
func (s *Stream) Cancel() {
	s.cancel()
}

// Err reports how the stream ended. It is nil on success, and only
// meaningful after Chunks() has closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Text returns the complete answer after a successful stream: the
// concatenation of every delta.
func (s *Stream) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// State reports the stream's terminal state once Chunks() has closed.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// finish records the outcome and closes the delta channel.
func (s *Stream) finish(state State, text string, err error) {
	s.mu.Lock()
	s.state = state
	s.text = text
	s.err = err
	s.mu.Unlock()
	close(s.chunks)
}

// push delivers one delta, giving up when ctx ends so an abandoned
// consumer cannot block the producer.
func (s *Stream) push(ctx context.Context, delta string) error {
	select {
	case s.chunks <- delta:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
