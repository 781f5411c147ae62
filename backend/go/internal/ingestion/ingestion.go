package ingestion

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	pkghttp "github.com/mutusfa/Neurodeck/backend/go/pkg/http"

	"github.com/gabriel-vasile/mimetype"
)

// Document is the normalized output of every extractor: plain text plus
// whatever source details the extractor can provide.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]interface{}
}

// Metadata keys shared by the extractors.
const (
	MetadataKeyFileName  = "file_name"
	MetadataKeySourceURL = "source_url"
)

// Extractor converts one family of document formats into a Document.
type Extractor interface {
	// AcceptedExtensions returns the file extensions (with leading dot)
	// this extractor can handle.
	AcceptedExtensions() []string
	// AcceptedMimeTypes returns the MIME types this extractor can handle.
	AcceptedMimeTypes() []string
	// Extract reads the file at path and returns its text content.
	Extract(ctx context.Context, path string) (*Document, error)
}

// Pipeline manages document extractors and provides extraction functionality.
// Dispatch is by detected content type, never by the file name alone.
type Pipeline struct {
	extractors   []Extractor
	fetcher      *pkghttp.Client
	fetchTimeout time.Duration
}

// New creates a Pipeline with all the available extractors registered.
// The fetcher is used for ExtractURL and may carry a circuit breaker.
func New(fetcher *pkghttp.Client, fetchTimeout time.Duration) *Pipeline {
	p := &Pipeline{
		fetcher:      fetcher,
		fetchTimeout: fetchTimeout,
	}
	if p.fetchTimeout <= 0 {
		p.fetchTimeout = 30 * time.Second
	}

	// Register all the available extractors
	p.Register(NewPDFExtractor())
	p.Register(NewTextExtractor())
	p.Register(NewDocxExtractor())
	p.Register(NewXlsxExtractor())

	return p
}

// Register adds a new document extractor to the available extractors.
func (p *Pipeline) Register(e Extractor) {
	p.extractors = append(p.extractors, e)
}

// ExtractFile processes a document file and extracts its text content.
func (p *Pipeline) ExtractFile(ctx context.Context, path string) (*Document, error) {
	// Detect MIME type from file content - this is mandatory
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect MIME type: %w", err)
	}

	// Find an extractor that can handle this MIME type
	for _, e := range p.extractors {
		if accepts(mtype, e.AcceptedExtensions(), e.AcceptedMimeTypes()) {
			return e.Extract(ctx, path)
		}
	}

	return nil, &UnsupportedTypeError{
		MimeType:  mtype.String(),
		Supported: p.supportedExtensions(),
	}
}

func (p *Pipeline) supportedExtensions() []string {
	var exts []string
	for _, e := range p.extractors {
		exts = append(exts, e.AcceptedExtensions()...)
	}
	return exts
}

func accepts(mtype *mimetype.MIME, extensions, mtypes []string) bool {
	if slices.Contains(extensions, mtype.Extension()) {
		return true
	}

	return slices.ContainsFunc(mtypes, mtype.Is)
}

// UnsupportedTypeError is returned when no extractor accepts the detected
// content type. Callers can map it to a 415 response.
type UnsupportedTypeError struct {
	MimeType  string
	Supported []string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("no extractor found for MIME type %s (supported: %s)",
		e.MimeType, strings.Join(e.Supported, ", "))
}
