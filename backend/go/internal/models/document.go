package models

import (
	"time"

	"gorm.io/datatypes"
)

// DocumentSourceType 表示文档的来源类型。
type DocumentSourceType string

const (
	SourceFile DocumentSourceType = "file" // 本地上传的文件
	SourceURL  DocumentSourceType = "url"  // 通过 URL 抓取的网页或文件
)

// Document 代表一次成功摄取的源文档。
// Context 在全库范围内唯一，共享该 Context 的所有卡片都归属于这条记录。
type Document struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	Context     string             `gorm:"uniqueIndex;not null;size:768" json:"context"`
	SourceType  DocumentSourceType `gorm:"type:varchar(10);not null" json:"source_type"`
	MediaObject string             `gorm:"size:255" json:"media_object,omitempty"` // 媒体存储中的对象名，URL 来源为空
	ContentHash string             `gorm:"size:64" json:"content_hash"`            // 提取文本的 SHA-256，十六进制编码
	Topic       string             `gorm:"size:255" json:"topic"`
	Metadata    datatypes.JSON     `json:"metadata,omitempty"` // 来源名称等自由格式元数据
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func (Document) TableName() string {
	return "documents"
}
