// Package chunker splits extracted document text into overlapping
// fixed-size windows, the unit of embedding and retrieval.
//
// Splitting is deterministic and pure: the same input always produces the
// same chunks, and rejoining the chunks with the overlap removed
// reconstructs the original text exactly.
package chunker

import (
	"errors"
	"fmt"
)

// Sentinel errors for splitter construction.
var (
	// ErrInvalidWindow indicates maxChars/overlap violate maxChars > overlap >= 0.
	ErrInvalidWindow = errors.New("invalid chunk window")
)

// Splitter produces overlapping character windows over text.
// Windows are measured in runes so multi-byte text is never split
// mid-character.
type Splitter struct {
	maxChars int
	overlap  int
}

// New creates a Splitter. maxChars must be greater than overlap, and
// overlap must be non-negative.
func New(maxChars, overlap int) (*Splitter, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("%w: maxChars must be positive, got %d", ErrInvalidWindow, maxChars)
	}
	if overlap < 0 || overlap >= maxChars {
		return nil, fmt.Errorf("%w: overlap must satisfy 0 <= overlap < maxChars, got overlap=%d maxChars=%d",
			ErrInvalidWindow, overlap, maxChars)
	}
	return &Splitter{maxChars: maxChars, overlap: overlap}, nil
}

// MaxChars returns the configured window size.
func (s *Splitter) MaxChars() int { return s.maxChars }

// Overlap returns the configured overlap size.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the ordered chunk sequence for text.
//
// Chunk i starts at rune offset i*(maxChars-overlap); every chunk except
// the last spans exactly maxChars runes, and the last is truncated to the
// remaining text, never padded. Empty text yields no chunks.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	stride := s.maxChars - s.overlap
	chunks := make([]string, 0, (len(runes)+stride-1)/stride)

	for start := 0; start < len(runes); start += stride {
		end := start + s.maxChars
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}

	return chunks
}

// Split is a convenience wrapper constructing a one-shot Splitter.
func Split(text string, maxChars, overlap int) ([]string, error) {
	s, err := New(maxChars, overlap)
	if err != nil {
		return nil, err
	}
	return s.Split(text), nil
}

// Join reconstructs the original text from chunks produced by Split with
// the given overlap: the first chunk is taken whole, each subsequent chunk
// contributes everything after its first overlap runes. It is the inverse
// of Split and exists mainly to state that property in tests.
func Join(chunks []string, overlap int) string {
	if len(chunks) == 0 {
		return ""
	}
	out := []rune(chunks[0])
	for _, c := range chunks[1:] {
		runes := []rune(c)
		if overlap < len(runes) {
			out = append(out, runes[overlap:]...)
		}
	}
	return string(out)
}
