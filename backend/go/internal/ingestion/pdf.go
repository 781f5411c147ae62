package ingestion

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

// PDFExtractor extracts plain text from PDF files.
type PDFExtractor struct{}

// NewPDFExtractor creates a new PDFExtractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) AcceptedExtensions() []string {
	return []string{".pdf"}
}

func (e *PDFExtractor) AcceptedMimeTypes() []string {
	return []string{"application/pdf"}
}

// Extract reads a PDF file and returns the text of all parseable pages.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (*Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	text, err := pdfPlainText(r)
	if err != nil {
		return nil, err
	}

	return &Document{
		ID:   uuid.New().String(),
		Text: text,
		Metadata: map[string]interface{}{
			MetadataKeyFileName: filepath.Base(path),
		},
	}, nil
}

// pdfPlainText walks every page and collects its text. Pages that cannot
// be parsed are skipped rather than failing the whole document.
func pdfPlainText(r *pdf.Reader) (string, error) {
	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("no extractable text in pdf")
	}
	return sb.String(), nil
}

// pdfTextFromReader extracts text from an in-memory PDF, used for
// documents fetched over HTTP.
func pdfTextFromReader(r io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}
	return pdfPlainText(reader)
}

var _ Extractor = (*PDFExtractor)(nil)
