package ingestion

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// TextExtractor handles plain text and markdown files.
type TextExtractor struct{}

// NewTextExtractor creates a new TextExtractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) AcceptedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

func (e *TextExtractor) AcceptedMimeTypes() []string {
	return []string{"text/plain", "text/markdown"}
}

// Extract reads the file as-is; markdown is already the target format.
func (e *TextExtractor) Extract(ctx context.Context, path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return &Document{
		ID:   uuid.New().String(),
		Text: string(content),
		Metadata: map[string]interface{}{
			MetadataKeyFileName: filepath.Base(path),
		},
	}, nil
}

var _ Extractor = (*TextExtractor)(nil)
