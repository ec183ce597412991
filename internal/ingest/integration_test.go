package ingest_test

import (
	"context"
	"testing"

	"github.com/docchat/docchat/internal/chunker"
	"github.com/docchat/docchat/internal/embedding"
	"github.com/docchat/docchat/internal/index"
	"github.com/docchat/docchat/internal/ingest"
	"github.com/docchat/docchat/internal/testutil"
)

// passthroughParser treats file bytes as the extracted text.
type passthroughParser struct{}

func (passthroughParser) ExtractText(data []byte) (string, error) {
	return string(data), nil
}

func TestIngestEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	idx, err := index.New(db.Pool, nil)
	if err != nil {
		t.Fatalf("index.New() unexpected error: %v", err)
	}
	gateway := embedding.NewGateway(testutil.NewMockEmbedder(embedding.Dimension), embedding.Config{}, nil)
	splitter, err := chunker.New(40, 10)
	if err != nil {
		t.Fatalf("chunker.New() unexpected error: %v", err)
	}
	pipeline, err := ingest.NewPipeline(splitter, passthroughParser{}, gateway, idx, ingest.Config{}, nil)
	if err != nil {
		t.Fatalf("NewPipeline() unexpected error: %v", err)
	}

	body := "Quarterly revenue grew by twelve percent. " +
		"The growth was driven by the new subscription tier. " +
		"Churn remained flat across all regions."

	result, err := pipeline.Ingest(ctx, []ingest.File{{Name: "report.pdf", Data: []byte(body)}})
	if err != nil {
		t.Fatalf("Ingest() unexpected error: %v", err)
	}
	if len(result.Ingested) != 1 || len(result.Failed) != 0 {
		t.Fatalf("Ingest() = %+v, want one success", result)
	}

	docs, err := pipeline.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments() unexpected error: %v", err)
	}
	if len(docs) != 1 || docs[0].Filename != "report.pdf" {
		t.Fatalf("ListDocuments() = %+v, want report.pdf", docs)
	}

	// The deterministic embedder maps identical text to identical
	// vectors, so querying with a stored chunk's text returns it first.
	queryVec, err := gateway.EmbedQuery(ctx, body[:40])
	if err != nil {
		t.Fatalf("EmbedQuery() unexpected error: %v", err)
	}
	hits, err := idx.Search(ctx, queryVec, 3)
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("Search() returned no hits after ingestion")
	}
	if hits[0].DocumentID != "report.pdf" {
		t.Errorf("top hit document = %q, want report.pdf", hits[0].DocumentID)
	}
	if hits[0].Similarity < 0.999 {
		t.Errorf("identical-text similarity = %f, want ~1", hits[0].Similarity)
	}

	if err := pipeline.RemoveDocument(ctx, "report.pdf"); err != nil {
		t.Fatalf("RemoveDocument() unexpected error: %v", err)
	}
	if n, _ := idx.ChunkCount(ctx); n != 0 {
		t.Errorf("ChunkCount() = %d after removal, want 0", n)
	}
}
