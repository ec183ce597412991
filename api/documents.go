package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/docchat/docchat/internal/index"
	"github.com/docchat/docchat/internal/ingest"
	"github.com/docchat/docchat/internal/log"
	"github.com/docchat/docchat/internal/pdf"
)

const (
	// DefaultMaxUploadBytes caps a single uploaded PDF (20 MiB).
	DefaultMaxUploadBytes int64 = 20 << 20

	// multipartMemory bounds the in-memory portion of multipart parsing;
	// larger files spill to temporary disk storage.
	multipartMemory = 32 << 20
)

// Ingestor is the knowledge base surface the document endpoints need.
type Ingestor interface {
	Ingest(ctx context.Context, files []ingest.File) (*ingest.Result, error)
	RemoveDocument(ctx context.Context, filename string) error
	ListDocuments(ctx context.Context) ([]index.Document, error)
	ClearAll(ctx context.Context) error
}

// DocumentHandler handles knowledge base endpoints.
type DocumentHandler struct {
	ingestor       Ingestor
	maxUploadBytes int64
	logger         log.Logger
}

// NewDocumentHandler creates a document handler. maxUploadBytes of zero
// or less applies DefaultMaxUploadBytes.
func NewDocumentHandler(ingestor Ingestor, maxUploadBytes int64, logger log.Logger) *DocumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &DocumentHandler{
		ingestor:       ingestor,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers document routes on the given mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /upload_pdfs", h.handleUpload)
	mux.HandleFunc("GET /list_documents", h.handleList)
	mux.HandleFunc("POST /delete_document/{filename}", h.handleDelete)
	mux.HandleFunc("POST /clear_knowledge_base", h.handleClear)
}

// UploadResponse reports an ingestion batch: how many files made it
// into the knowledge base and which were rejected, with reasons.
type UploadResponse struct {
	Status string           `json:"status"`
	Count  int              `json:"count"`
	Failed []ingest.Failure `json:"failed"`
}

// DocumentInfo is one entry in the /list_documents response.
type DocumentInfo struct {
	Filename string  `json:"filename"`
	Size     int64   `json:"size"`
	SizeMB   float64 `json:"size_mb"`
}

// ListResponse is the /list_documents response body.
type ListResponse struct {
	Documents []DocumentInfo `json:"documents"`
}

// handleUpload ingests a batch of PDFs from a multipart form. Files are
// validated (size cap, %PDF magic) before the pipeline sees them; a
// rejected file is reported in the response and does not abort the
// batch.
func (h *DocumentHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("parsing multipart form: %v", err))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("cleaning up multipart temp files", "error", err)
		}
	}()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "no files provided (use the \"files\" form field)")
		return
	}

	var (
		files  []ingest.File
		failed []ingest.Failure
	)
	for _, header := range headers {
		name := ingest.SanitizeFilename(header.Filename)

		if header.Size > h.maxUploadBytes {
			failed = append(failed, ingest.Failure{
				Filename: name,
				Reason:   fmt.Sprintf("file exceeds the %d MB upload limit", h.maxUploadBytes>>20),
			})
			continue
		}

		data, err := readMultipartFile(header, h.maxUploadBytes)
		if err != nil {
			failed = append(failed, ingest.Failure{Filename: name, Reason: fmt.Sprintf("reading upload: %v", err)})
			continue
		}
		if !pdf.IsPDF(data) {
			failed = append(failed, ingest.Failure{Filename: name, Reason: "not a valid PDF file"})
			continue
		}

		files = append(files, ingest.File{Name: name, Data: data})
	}

	count := 0
	if len(files) > 0 {
		result, err := h.ingestor.Ingest(r.Context(), files)
		if err != nil {
			h.logger.Error("ingestion failed", "files", len(files), "error", err)
			writeError(w, http.StatusInternalServerError, "ingest_failed", "failed to ingest uploaded files")
			return
		}
		count = len(result.Ingested)
		failed = append(failed, result.Failed...)
	}

	if failed == nil {
		failed = []ingest.Failure{}
	}
	writeJSON(w, http.StatusOK, UploadResponse{Status: "success", Count: count, Failed: failed})
}

// readMultipartFile reads one multipart file fully, bounded by limit.
func readMultipartFile(header *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds the %d MB upload limit", limit>>20)
	}
	return data, nil
}

func (h *DocumentHandler) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := h.ingestor.ListDocuments(r.Context())
	if err != nil {
		h.logger.Error("listing documents failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list documents")
		return
	}

	infos := make([]DocumentInfo, 0, len(docs))
	for _, d := range docs {
		infos = append(infos, DocumentInfo{
			Filename: d.Filename,
			Size:     d.ByteSize,
			SizeMB:   float64(d.ByteSize) / (1 << 20),
		})
	}
	writeJSON(w, http.StatusOK, ListResponse{Documents: infos})
}

func (h *DocumentHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	filename := ingest.SanitizeFilename(r.PathValue("filename"))
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "invalid_request", "filename must end in .pdf")
		return
	}

	if err := h.ingestor.RemoveDocument(r.Context(), filename); err != nil {
		if errors.Is(err, index.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("document %q not found", filename))
			return
		}
		h.logger.Error("deleting document failed", "filename", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete document")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:  "success",
		Message: fmt.Sprintf("deleted %s", filename),
	})
}

func (h *DocumentHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.ingestor.ClearAll(r.Context()); err != nil {
		h.logger.Error("clearing knowledge base failed", "error", err)
		writeError(w, http.StatusInternalServerError, "clear_failed", "failed to clear knowledge base")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:  "success",
		Message: "knowledge base cleared",
	})
}
