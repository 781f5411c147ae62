package anki

import (
	"context"

	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
)

// NoteInfo 是一条远端笔记的复习状态快照。
type NoteInfo struct {
	NoteID int64
	Stats  models.ReviewStats
}

// DeckClient 抽象了"一个可查询、可修改的远端牌组"。
// 同步引擎只依赖该接口而不依赖任何具体传输实现，测试使用无网络的假实现。
type DeckClient interface {
	// ListDecks 返回远端已有的牌组名称，顺序与远端返回一致。
	ListDecks(ctx context.Context) ([]string, error)

	// FindNotes 返回匹配查询串的远端笔记 ID 集合。
	// 查询语法由远端系统定义，这里原样透传。
	FindNotes(ctx context.Context, query string) ([]int64, error)

	// GetNoteInfo 批量获取笔记的复习统计。found 按笔记 ID 建立索引；
	// 远端已不存在的 ID 记入 missing，而不是让整批调用失败。
	// 仅当整个批量请求无法完成时 err 才非空。
	GetNoteInfo(ctx context.Context, ids []int64) (found map[int64]NoteInfo, missing []int64, err error)

	// AddNote 在指定牌组中创建一条新笔记并返回远端分配的 ID。
	// 远端判定为重复时返回 ErrDuplicateNote。
	AddNote(ctx context.Context, deck, question, answer string, tags []string) (int64, error)

	// UpdateNoteFields 更新一条笔记的字段内容。笔记不存在时返回 ErrNoteNotFound。
	UpdateNoteFields(ctx context.Context, id int64, fields map[string]string) error

	// DeleteNote 删除一条笔记。删除不存在的笔记不是错误（幂等删除）。
	DeleteNote(ctx context.Context, id int64) error
}
