// Package index owns the knowledge base: the document registry, the
// stored source bytes, and the chunk vectors, all in PostgreSQL with
// pgvector. Every mutation commits in a single transaction so readers
// never observe a half-ingested document.
package index

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/docchat/docchat/internal/log"
)

// advisoryLockKey serializes cross-process writers via
// pg_advisory_xact_lock(hashtext(key)).
const advisoryLockKey = "docchat.knowledge_base"

// Index is the single writer path to the knowledge base. Writes take the
// exclusive lock; searches and listings take the shared lock, so reads
// always observe a fully committed state.
//
// Index is safe for concurrent use by multiple goroutines.
type Index struct {
	pool   *pgxpool.Pool
	mu     sync.RWMutex
	logger log.Logger
}

// New creates an Index over pool. A nil logger disables logging.
func New(pool *pgxpool.Pool, logger log.Logger) (*Index, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Index{pool: pool, logger: logger.With("component", "index")}, nil
}

// Upsert registers or replaces a document: the source bytes, the registry
// row, and all chunks commit together. Re-uploading a filename replaces
// its previous content entirely. A document with no chunks is valid
// (source with no extractable text).
func (x *Index) Upsert(ctx context.Context, filename string, data []byte, chunks []Chunk) error {
	if filename == "" {
		return fmt.Errorf("filename is required")
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			x.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	// Serialize writers across processes. Released at commit/rollback.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, advisoryLockKey); err != nil {
		return fmt.Errorf("acquiring advisory lock: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO documents (filename, data, byte_size, uploaded_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (filename) DO UPDATE
		 SET data = EXCLUDED.data, byte_size = EXCLUDED.byte_size, uploaded_at = now()`,
		filename, data, int64(len(data)),
	); err != nil {
		return fmt.Errorf("upserting document %q: %w", filename, err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM chunks WHERE document_id = $1`, filename,
	); err != nil {
		return fmt.Errorf("removing stale chunks for %q: %w", filename, err)
	}

	for _, c := range chunks {
		if _, err := tx.Exec(ctx,
			`INSERT INTO chunks (document_id, seq, content, embedding)
			 VALUES ($1, $2, $3, $4)`,
			filename, c.Seq, c.Content, pgvector.NewVector(c.Embedding),
		); err != nil {
			return fmt.Errorf("inserting chunk %d of %q: %w", c.Seq, filename, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing upsert of %q: %w", filename, err)
	}

	x.logger.Debug("document upserted", "filename", filename, "chunks", len(chunks), "bytes", len(data))
	return nil
}

// DeleteDocument removes a document and, via cascade, its chunks.
// Returns ErrNotFound if the filename is not registered.
func (x *Index) DeleteDocument(ctx context.Context, filename string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			x.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, advisoryLockKey); err != nil {
		return fmt.Errorf("acquiring advisory lock: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM documents WHERE filename = $1`, filename)
	if err != nil {
		return fmt.Errorf("deleting document %q: %w", filename, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, filename)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing delete of %q: %w", filename, err)
	}

	x.logger.Debug("document deleted", "filename", filename)
	return nil
}

// Clear removes every document and chunk. Clearing an empty knowledge
// base succeeds.
func (x *Index) Clear(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			x.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, advisoryLockKey); err != nil {
		return fmt.Errorf("acquiring advisory lock: %w", err)
	}
	if _, err := tx.Exec(ctx, `TRUNCATE chunks, documents`); err != nil {
		return fmt.Errorf("clearing knowledge base: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing clear: %w", err)
	}

	x.logger.Info("knowledge base cleared")
	return nil
}

// Search returns up to k chunks by cosine similarity to embedding,
// closest first. Equal distances break by chunk insertion order. An
// empty knowledge base yields an empty result, not an error.
func (x *Index) Search(ctx context.Context, embedding []float32, k int) ([]SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	vec := pgvector.NewVector(embedding)
	rows, err := x.pool.Query(ctx,
		`SELECT document_id, seq, content, 1 - (embedding <=> $1) AS similarity
		 FROM chunks
		 ORDER BY embedding <=> $1, id
		 LIMIT $2`,
		vec, k,
	)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.DocumentID, &h.Seq, &h.Content, &h.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search hits: %w", err)
	}
	return hits, nil
}

// ListDocuments returns registry metadata for every document, ordered by
// filename.
func (x *Index) ListDocuments(ctx context.Context) ([]Document, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	rows, err := x.pool.Query(ctx,
		`SELECT filename, byte_size, uploaded_at FROM documents ORDER BY filename`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.Filename, &d.ByteSize, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// DocumentCount returns the number of registered documents.
func (x *Index) DocumentCount(ctx context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var n int
	if err := x.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// ChunkCount returns the number of stored chunks.
func (x *Index) ChunkCount(ctx context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var n int
	if err := x.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// VerifyConsistency cross-checks the registry against the chunk table
// and returns ErrInvariant on disagreement. The foreign key makes orphan
// chunks impossible under normal operation; this guards against schema
// drift and out-of-band writes.
func (x *Index) VerifyConsistency(ctx context.Context) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var orphans int
	if err := x.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks c
		 LEFT JOIN documents d ON d.filename = c.document_id
		 WHERE d.filename IS NULL`,
	).Scan(&orphans); err != nil {
		return fmt.Errorf("checking orphan chunks: %w", err)
	}
	if orphans > 0 {
		return fmt.Errorf("%w: %d chunks without a registered document", ErrInvariant, orphans)
	}

	var dupes int
	if err := x.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM (
		   SELECT document_id, seq FROM chunks
		   GROUP BY document_id, seq HAVING COUNT(*) > 1
		 ) d`,
	).Scan(&dupes); err != nil {
		return fmt.Errorf("checking duplicate chunk sequences: %w", err)
	}
	if dupes > 0 {
		return fmt.Errorf("%w: %d duplicated (document, seq) positions", ErrInvariant, dupes)
	}

	return nil
}
