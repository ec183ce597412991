// Package pdf extracts plain text from PDF documents and normalizes it
// for chunking.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/docchat/docchat/internal/log"
)

// ErrParse indicates the input could not be read as a PDF. Callers treat
// it as a per-document failure, not a pipeline failure.
var ErrParse = errors.New("pdf parse failed")

// magic is the required file header for PDF uploads.
var magic = []byte("%PDF")

// IsPDF reports whether data starts with the PDF file header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}

// Extractor converts PDF bytes into plain text, page by page.
type Extractor struct {
	logger log.Logger
}

// NewExtractor creates an Extractor. A nil logger disables logging.
func NewExtractor(logger log.Logger) *Extractor {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Extractor{logger: logger.With("component", "pdf")}
}

// ExtractText returns the concatenated text of all pages. Pages are
// separated by a newline. A structurally broken document yields ErrParse;
// a valid document with no extractable text (scanned images) yields an
// empty string and no error.
func (e *Extractor) ExtractText(data []byte) (text string, err error) {
	// The underlying reader panics on some malformed cross-reference
	// tables instead of returning an error.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrParse, r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}

	var sb strings.Builder
	fonts := make(map[string]*pdflib.Font)

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}
		pageText, perr := page.GetPlainText(fonts)
		if perr != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrParse, i, perr)
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}

	e.logger.Debug("extracted pdf text", "pages", reader.NumPage(), "chars", sb.Len())
	return sb.String(), nil
}
