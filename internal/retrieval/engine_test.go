package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/docchat/docchat/internal/index"
)

type stubEmbedder struct {
	err   error
	calls int
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0, 0}, nil
}

type stubSearcher struct {
	hits  []index.SearchHit
	err   error
	lastK int
}

func (s *stubSearcher) Search(_ context.Context, _ []float32, k int) ([]index.SearchHit, error) {
	s.lastK = k
	return s.hits, s.err
}

func TestRetrieve(t *testing.T) {
	hits := []index.SearchHit{
		{DocumentID: "a.pdf", Seq: 0, Content: "alpha content", Similarity: 0.9},
		{DocumentID: "a.pdf", Seq: 1, Content: "beta content", Similarity: 0.8},
		{DocumentID: "b.pdf", Seq: 0, Content: "gamma content", Similarity: 0.7},
	}
	searcher := &stubSearcher{hits: hits}
	engine, err := NewEngine(&stubEmbedder{}, searcher, nil)
	if err != nil {
		t.Fatalf("NewEngine() unexpected error: %v", err)
	}

	got, err := engine.Retrieve(context.Background(), "what is alpha?", 3)
	if err != nil {
		t.Fatalf("Retrieve() unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Retrieve() returned %d hits, want 3", len(got))
	}
	for i := range hits {
		if got[i] != hits[i] {
			t.Errorf("hit %d = %+v, want %+v (rank must be preserved)", i, got[i], hits[i])
		}
	}
	if searcher.lastK != 3 {
		t.Errorf("searcher received k=%d, want 3", searcher.lastK)
	}
}

func TestRetrieveDeduplicates(t *testing.T) {
	tests := []struct {
		name string
		hits []index.SearchHit
		want []string
	}{
		{
			name: "repeated position keeps best rank",
			hits: []index.SearchHit{
				{DocumentID: "a.pdf", Seq: 0, Content: "first text", Similarity: 0.9},
				{DocumentID: "a.pdf", Seq: 0, Content: "first text", Similarity: 0.5},
				{DocumentID: "a.pdf", Seq: 1, Content: "second text", Similarity: 0.4},
			},
			want: []string{"first text", "second text"},
		},
		{
			name: "near-identical content across documents",
			hits: []index.SearchHit{
				{DocumentID: "a.pdf", Seq: 0, Content: "Shared   paragraph text", Similarity: 0.9},
				{DocumentID: "copy.pdf", Seq: 4, Content: "shared paragraph  text", Similarity: 0.8},
				{DocumentID: "b.pdf", Seq: 0, Content: "distinct paragraph", Similarity: 0.7},
			},
			want: []string{"Shared   paragraph text", "distinct paragraph"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewEngine(&stubEmbedder{}, &stubSearcher{hits: tt.hits}, nil)
			if err != nil {
				t.Fatalf("NewEngine() unexpected error: %v", err)
			}
			got, err := engine.Retrieve(context.Background(), "query", 10)
			if err != nil {
				t.Fatalf("Retrieve() unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Retrieve() returned %d hits, want %d", len(got), len(tt.want))
			}
			for i, w := range tt.want {
				if got[i].Content != w {
					t.Errorf("hit %d content = %q, want %q", i, got[i].Content, w)
				}
			}
		})
	}
}

func TestRetrieveEmptyCases(t *testing.T) {
	embedder := &stubEmbedder{}
	engine, err := NewEngine(embedder, &stubSearcher{}, nil)
	if err != nil {
		t.Fatalf("NewEngine() unexpected error: %v", err)
	}

	t.Run("empty knowledge base", func(t *testing.T) {
		got, err := engine.Retrieve(context.Background(), "anything", 5)
		if err != nil {
			t.Fatalf("Retrieve() unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Retrieve() = %v, want empty", got)
		}
	})

	t.Run("blank query skips embedding", func(t *testing.T) {
		before := embedder.calls
		got, err := engine.Retrieve(context.Background(), "   ", 5)
		if err != nil {
			t.Fatalf("Retrieve() unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("Retrieve(blank) = %v, want nil", got)
		}
		if embedder.calls != before {
			t.Error("blank query reached the embedder")
		}
	})

	t.Run("non-positive k", func(t *testing.T) {
		got, err := engine.Retrieve(context.Background(), "anything", 0)
		if err != nil {
			t.Fatalf("Retrieve() unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("Retrieve(k=0) = %v, want nil", got)
		}
	})
}

func TestRetrieveErrors(t *testing.T) {
	t.Run("embedding failure", func(t *testing.T) {
		wantErr := errors.New("provider down")
		engine, _ := NewEngine(&stubEmbedder{err: wantErr}, &stubSearcher{}, nil)

		_, err := engine.Retrieve(context.Background(), "query", 5)
		if !errors.Is(err, wantErr) {
			t.Errorf("Retrieve() error = %v, want wrapped %v", err, wantErr)
		}
	})

	t.Run("search failure", func(t *testing.T) {
		wantErr := errors.New("pool closed")
		engine, _ := NewEngine(&stubEmbedder{}, &stubSearcher{err: wantErr}, nil)

		_, err := engine.Retrieve(context.Background(), "query", 5)
		if !errors.Is(err, wantErr) {
			t.Errorf("Retrieve() error = %v, want wrapped %v", err, wantErr)
		}
	})
}
