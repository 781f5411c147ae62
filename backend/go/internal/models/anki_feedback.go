package models

import "time"

// SyncStatus 定义了一条反馈记录的同步生命周期状态。
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending" // 等待首次推送
	SyncStatusSynced  SyncStatus = "synced"  // 已与远端笔记绑定
	SyncStatusError   SyncStatus = "error"   // 上次操作失败，下一轮可重试
)

// ReviewStats 保存从 Anki 拉取的复习统计。
// EaseFactor 使用 Anki 的千分比表示（2500 即 250%），Interval 的单位为天。
type ReviewStats struct {
	EaseFactor     int        `json:"ease_factor"`
	IntervalDays   int        `json:"interval_days"`
	Repetitions    int        `json:"repetitions"`
	Lapses         int        `json:"lapses"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
}

// AnkiNoteFeedback 维护本地卡片与远端 Anki 笔记之间的映射。
// 不变量：SyncStatus 为 synced 时 AnkiNoteID 必须非空；
// AnkiNoteID 非空时在全表范围内唯一，即一条远端笔记至多绑定一张本地卡片。
type AnkiNoteFeedback struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	CardID            uint       `gorm:"uniqueIndex;not null" json:"card_id"`
	AnkiNoteID        *int64     `gorm:"uniqueIndex" json:"anki_note_id,omitempty"` // 首次推送成功前为空
	EaseFactor        int        `json:"ease_factor"`
	IntervalDays      int        `json:"interval_days"`
	Repetitions       int        `json:"repetitions"`
	Lapses            int        `json:"lapses"`
	LastReviewedAt    *time.Time `json:"last_reviewed_at,omitempty"`
	SyncStatus        SyncStatus `gorm:"type:varchar(20);default:'pending';not null" json:"sync_status"`
	LastSyncAttemptAt *time.Time `json:"last_sync_attempt_at,omitempty"`
	LastError         *string    `gorm:"size:1024" json:"last_error,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (AnkiNoteFeedback) TableName() string {
	return "anki_note_feedback"
}

// Stats 返回记录当前持有的复习统计。
func (f *AnkiNoteFeedback) Stats() ReviewStats {
	return ReviewStats{
		EaseFactor:     f.EaseFactor,
		IntervalDays:   f.IntervalDays,
		Repetitions:    f.Repetitions,
		Lapses:         f.Lapses,
		LastReviewedAt: f.LastReviewedAt,
	}
}

// ApplyStats 用一份复习统计覆盖记录中的对应字段。
func (f *AnkiNoteFeedback) ApplyStats(stats ReviewStats) {
	f.EaseFactor = stats.EaseFactor
	f.IntervalDays = stats.IntervalDays
	f.Repetitions = stats.Repetitions
	f.Lapses = stats.Lapses
	f.LastReviewedAt = stats.LastReviewedAt
}
