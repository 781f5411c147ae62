package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/unidoc/unioffice/v2/document"
)

// DocxExtractor 实现了用于读取 Word (.docx) 文件的 Extractor 接口。
type DocxExtractor struct{}

// NewDocxExtractor 创建一个新的 DocxExtractor。
func NewDocxExtractor() *DocxExtractor {
	return &DocxExtractor{}
}

func (e *DocxExtractor) AcceptedExtensions() []string {
	return []string{".docx"}
}

func (e *DocxExtractor) AcceptedMimeTypes() []string {
	return []string{"application/vnd.openxmlformats-officedocument.wordprocessingml.document"}
}

// Extract 读取一个 .docx 文件，提取所有段落的文本内容。
func (e *DocxExtractor) Extract(ctx context.Context, path string) (*Document, error) {
	doc, err := document.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}

	// 提取所有段落的文本内容
	var textBuilder strings.Builder
	for _, p := range doc.Paragraphs() {
		for _, r := range p.Runs() {
			textBuilder.WriteString(r.Text())
		}
		textBuilder.WriteString("\n")
	}

	return &Document{
		ID:   uuid.New().String(),
		Text: textBuilder.String(),
		Metadata: map[string]interface{}{
			MetadataKeyFileName: filepath.Base(path),
		},
	}, nil
}

// 编译时检查，确保 DocxExtractor 实现了 Extractor 接口
var _ Extractor = (*DocxExtractor)(nil)
