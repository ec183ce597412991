package index

import (
	"errors"
	"time"
)

// Sentinel errors surfaced by the knowledge base.
var (
	// ErrNotFound indicates the named document is not registered.
	ErrNotFound = errors.New("document not found")

	// ErrInvariant indicates the stored registry and chunk data disagree.
	ErrInvariant = errors.New("knowledge base invariant violated")
)

// Document is registry metadata for one ingested file.
type Document struct {
	Filename   string    `json:"filename"`
	ByteSize   int64     `json:"byte_size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Chunk is one embedded window of a document, identified within the
// document by its sequence number.
type Chunk struct {
	Seq       int
	Content   string
	Embedding []float32
}

// SearchHit is one retrieval result. Similarity is cosine similarity in
// [-1, 1], higher is closer.
type SearchHit struct {
	DocumentID string
	Seq        int
	Content    string
	Similarity float64
}
