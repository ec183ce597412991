package chunker

import (
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		maxChars int
		overlap  int
		wantErr  bool
	}{
		{name: "valid", maxChars: 800, overlap: 150},
		{name: "zero overlap", maxChars: 10, overlap: 0},
		{name: "zero maxChars", maxChars: 0, overlap: 0, wantErr: true},
		{name: "negative maxChars", maxChars: -1, overlap: 0, wantErr: true},
		{name: "negative overlap", maxChars: 10, overlap: -1, wantErr: true},
		{name: "overlap equals maxChars", maxChars: 10, overlap: 10, wantErr: true},
		{name: "overlap exceeds maxChars", maxChars: 10, overlap: 20, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.maxChars, tt.overlap)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidWindow) {
					t.Errorf("New(%d, %d) error = %v, want ErrInvalidWindow", tt.maxChars, tt.overlap, err)
				}
				return
			}
			if err != nil {
				t.Errorf("New(%d, %d) unexpected error: %v", tt.maxChars, tt.overlap, err)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxChars int
		overlap  int
		want     []string
	}{
		{
			name:     "empty text",
			text:     "",
			maxChars: 10,
			overlap:  2,
			want:     nil,
		},
		{
			name:     "shorter than window",
			text:     "hello",
			maxChars: 10,
			overlap:  2,
			want:     []string{"hello"},
		},
		{
			name:     "exact window",
			text:     "0123456789",
			maxChars: 10,
			overlap:  2,
			want:     []string{"0123456789"},
		},
		{
			name:     "two chunks with overlap",
			text:     "0123456789abcd",
			maxChars: 10,
			overlap:  2,
			want:     []string{"0123456789", "89abcd"},
		},
		{
			name:     "no overlap",
			text:     "abcdefghij",
			maxChars: 4,
			overlap:  0,
			want:     []string{"abcd", "efgh", "ij"},
		},
		{
			name:     "multi-byte runes stay intact",
			text:     "héllo wörld, ünïcode",
			maxChars: 8,
			overlap:  2,
			want:     []string{"héllo wö", "wörld, ü", " ünïcode"},
		},
		{
			name:     "single rune windows",
			text:     "abc",
			maxChars: 1,
			overlap:  0,
			want:     []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Split(tt.text, tt.maxChars, tt.overlap)
			if err != nil {
				t.Fatalf("Split() unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Split() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Split() chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitChunkStarts(t *testing.T) {
	// Chunk i must begin at rune offset i*(maxChars-overlap).
	text := strings.Repeat("abcdefghij", 20)
	maxChars, overlap := 30, 10
	stride := maxChars - overlap

	chunks, err := Split(text, maxChars, overlap)
	if err != nil {
		t.Fatalf("Split() unexpected error: %v", err)
	}

	runes := []rune(text)
	for i, c := range chunks {
		start := i * stride
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		if want := string(runes[start:end]); c != want {
			t.Errorf("chunk %d = %q, want %q", i, c, want)
		}
	}
}

func TestSplitRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxChars int
		overlap  int
	}{
		{name: "plain ascii", text: strings.Repeat("the quick brown fox ", 100), maxChars: 80, overlap: 15},
		{name: "unicode", text: strings.Repeat("日本語のテキストと emoji 🎉 mixed ", 50), maxChars: 37, overlap: 9},
		{name: "window larger than text", text: "short", maxChars: 100, overlap: 20},
		{name: "stride of one", text: "abcdefgh", maxChars: 3, overlap: 2},
		{name: "default window", text: strings.Repeat("lorem ipsum dolor sit amet ", 200), maxChars: 800, overlap: 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Split(tt.text, tt.maxChars, tt.overlap)
			if err != nil {
				t.Fatalf("Split() unexpected error: %v", err)
			}
			if got := Join(chunks, tt.overlap); got != tt.text {
				t.Errorf("Join(Split(text)) = %q, want original %q", got, tt.text)
			}
		})
	}
}

func TestSplitNeverEmptyChunks(t *testing.T) {
	chunks, err := Split(strings.Repeat("x", 101), 10, 9)
	if err != nil {
		t.Fatalf("Split() unexpected error: %v", err)
	}
	for i, c := range chunks {
		if c == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}
