package ingestion

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// XlsxExtractor reads Excel (.xlsx) files, converting each sheet into a
// markdown table so cards can be generated from tabular study material.
type XlsxExtractor struct{}

// NewXlsxExtractor creates a new XlsxExtractor.
func NewXlsxExtractor() *XlsxExtractor {
	return &XlsxExtractor{}
}

func (e *XlsxExtractor) AcceptedExtensions() []string {
	return []string{".xlsx"}
}

func (e *XlsxExtractor) AcceptedMimeTypes() []string {
	return []string{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}
}

// Extract renders every sheet as a markdown table under a "## <sheet>" heading.
func (e *XlsxExtractor) Extract(ctx context.Context, path string) (*Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			// Skip sheet if rows can't be read
			continue
		}
		if len(rows) == 0 {
			continue
		}

		sb.WriteString("## " + sheetName + "\n\n")

		// Header
		sb.WriteString("| " + strings.Join(rows[0], " | ") + " |\n")
		// Separator
		sb.WriteString("|" + strings.Repeat(" --- |", len(rows[0])) + "\n")
		// Body
		for _, row := range rows[1:] {
			sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
		sb.WriteString("\n")
	}

	return &Document{
		ID:   uuid.New().String(),
		Text: sb.String(),
		Metadata: map[string]interface{}{
			MetadataKeyFileName: filepath.Base(path),
		},
	}, nil
}

var _ Extractor = (*XlsxExtractor)(nil)
