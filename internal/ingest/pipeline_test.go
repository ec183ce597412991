package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/docchat/docchat/internal/chunker"
	"github.com/docchat/docchat/internal/index"
	"github.com/docchat/docchat/internal/pdf"
)

// fakeParser maps file content to extracted text, or fails with ErrParse
// when the content is marked broken.
type fakeParser struct{}

func (fakeParser) ExtractText(data []byte) (string, error) {
	s := string(data)
	if strings.HasPrefix(s, "broken") {
		return "", fmt.Errorf("%w: bad xref", pdf.ErrParse)
	}
	return s, nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i)}
	}
	return vectors, nil
}

type upsertCall struct {
	filename string
	data     []byte
	chunks   []index.Chunk
}

type fakeStore struct {
	mu        sync.Mutex
	upserts   []upsertCall
	upsertErr error
	cleared   bool
	deleted   []string
}

func (f *fakeStore) Upsert(_ context.Context, filename string, data []byte, chunks []index.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, upsertCall{filename: filename, data: data, chunks: chunks})
	return nil
}

func (f *fakeStore) DeleteDocument(_ context.Context, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, filename)
	return nil
}

func (f *fakeStore) ListDocuments(_ context.Context) ([]index.Document, error) {
	return nil, nil
}

func (f *fakeStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = true
	return nil
}

func (f *fakeStore) find(filename string) (upsertCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.upserts {
		if u.filename == filename {
			return u, true
		}
	}
	return upsertCall{}, false
}

func newTestPipeline(t *testing.T, embedder Embedder, store Store, cfg Config) *Pipeline {
	t.Helper()
	splitter, err := chunker.New(20, 5)
	if err != nil {
		t.Fatalf("chunker.New() unexpected error: %v", err)
	}
	p, err := NewPipeline(splitter, fakeParser{}, embedder, store, cfg, nil)
	if err != nil {
		t.Fatalf("NewPipeline() unexpected error: %v", err)
	}
	return p
}

func TestIngestMixedBatch(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(t, &fakeEmbedder{}, store, Config{})

	files := []File{
		{Name: "good.pdf", Data: []byte("a readable document with plenty of text to split")},
		{Name: "broken.pdf", Data: []byte("broken bytes")},
		{Name: "image.png", Data: []byte("not even close")},
		{Name: "also-good.pdf", Data: []byte("another readable document body")},
	}

	result, err := p.Ingest(context.Background(), files)
	if err != nil {
		t.Fatalf("Ingest() unexpected error: %v", err)
	}

	if want := []string{"also-good.pdf", "good.pdf"}; len(result.Ingested) != 2 ||
		result.Ingested[0] != want[0] || result.Ingested[1] != want[1] {
		t.Errorf("Ingested = %v, want %v", result.Ingested, want)
	}
	if len(result.Failed) != 2 {
		t.Fatalf("Failed has %d entries, want 2: %+v", len(result.Failed), result.Failed)
	}
	if result.Failed[0].Filename != "broken.pdf" || result.Failed[1].Filename != "image.png" {
		t.Errorf("Failed = %+v, want broken.pdf then image.png", result.Failed)
	}
	for _, fail := range result.Failed {
		if fail.Reason == "" {
			t.Errorf("failure for %s has empty reason", fail.Filename)
		}
	}

	if _, ok := store.find("broken.pdf"); ok {
		t.Error("broken.pdf was stored despite parse failure")
	}
}

func TestIngestChunkWiring(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(t, &fakeEmbedder{}, store, Config{})

	body := strings.Repeat("abcdefghij", 5)
	if _, err := p.Ingest(context.Background(), []File{{Name: "doc.pdf", Data: []byte(body)}}); err != nil {
		t.Fatalf("Ingest() unexpected error: %v", err)
	}

	call, ok := store.find("doc.pdf")
	if !ok {
		t.Fatal("doc.pdf was not stored")
	}
	if string(call.data) != body {
		t.Error("stored bytes differ from uploaded bytes")
	}
	if len(call.chunks) == 0 {
		t.Fatal("no chunks stored")
	}
	for i, c := range call.chunks {
		if c.Seq != i {
			t.Errorf("chunk %d has seq %d", i, c.Seq)
		}
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %d has no embedding", i)
		}
	}
}

func TestIngestEmptyTextRegistersDocument(t *testing.T) {
	store := &fakeStore{}
	embedder := &fakeEmbedder{}
	p := newTestPipeline(t, embedder, store, Config{})

	result, err := p.Ingest(context.Background(), []File{{Name: "scanned.pdf", Data: []byte("   \n  ")}})
	if err != nil {
		t.Fatalf("Ingest() unexpected error: %v", err)
	}
	if len(result.Ingested) != 1 {
		t.Fatalf("Ingested = %v, want scanned.pdf", result.Ingested)
	}

	call, ok := store.find("scanned.pdf")
	if !ok {
		t.Fatal("scanned.pdf was not registered")
	}
	if len(call.chunks) != 0 {
		t.Errorf("empty document stored %d chunks, want 0", len(call.chunks))
	}
	if embedder.calls != 0 {
		t.Errorf("embedder called %d times for empty document, want 0", embedder.calls)
	}
}

func TestIngestQualityFilter(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(t, &fakeEmbedder{}, store, Config{MinChunkChars: 10})

	// 20-char windows with stride 15: the final chunk is a short tail.
	body := strings.Repeat("x", 37)
	if _, err := p.Ingest(context.Background(), []File{{Name: "doc.pdf", Data: []byte(body)}}); err != nil {
		t.Fatalf("Ingest() unexpected error: %v", err)
	}

	call, _ := store.find("doc.pdf")
	for i, c := range call.chunks {
		if len(c.Content) < 10 {
			t.Errorf("chunk %d shorter than the quality floor: %q", i, c.Content)
		}
	}
}

func TestIngestProviderFailureAbortsBatch(t *testing.T) {
	store := &fakeStore{}
	embedder := &fakeEmbedder{err: errors.New("provider down")}
	p := newTestPipeline(t, embedder, store, Config{})

	_, err := p.Ingest(context.Background(), []File{
		{Name: "one.pdf", Data: []byte("some document text")},
		{Name: "two.pdf", Data: []byte("more document text")},
	})
	if err == nil {
		t.Fatal("Ingest() succeeded despite embedding failure, want error")
	}
}

func TestIngestStoreFailureAbortsBatch(t *testing.T) {
	store := &fakeStore{upsertErr: errors.New("connection lost")}
	p := newTestPipeline(t, &fakeEmbedder{}, store, Config{})

	_, err := p.Ingest(context.Background(), []File{{Name: "one.pdf", Data: []byte("text")}})
	if err == nil {
		t.Fatal("Ingest() succeeded despite store failure, want error")
	}
}

func TestIngestEmptyBatch(t *testing.T) {
	p := newTestPipeline(t, &fakeEmbedder{}, &fakeStore{}, Config{})

	result, err := p.Ingest(context.Background(), nil)
	if err != nil {
		t.Fatalf("Ingest(nil) unexpected error: %v", err)
	}
	if len(result.Ingested) != 0 || len(result.Failed) != 0 {
		t.Errorf("Ingest(nil) = %+v, want empty result", result)
	}
}

func TestDelegates(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(t, &fakeEmbedder{}, store, Config{})
	ctx := context.Background()

	if err := p.RemoveDocument(ctx, "doc.pdf"); err != nil {
		t.Errorf("RemoveDocument() unexpected error: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "doc.pdf" {
		t.Errorf("store.deleted = %v, want [doc.pdf]", store.deleted)
	}

	if err := p.ClearAll(ctx); err != nil {
		t.Errorf("ClearAll() unexpected error: %v", err)
	}
	if !store.cleared {
		t.Error("ClearAll() did not reach the store")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "report.pdf", want: "report.pdf"},
		{in: "dir/report.pdf", want: "report.pdf"},
		{in: "../../etc/passwd.pdf", want: "passwd.pdf"},
		{in: `c:\uploads\report.pdf`, want: "report.pdf"},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
