package anki

import "errors"

// 同步子系统的错误分类。远端调用的失败被归入以下哨兵错误之一，
// 调用方通过 errors.Is 匹配；附加信息用 fmt.Errorf("%w: ...") 包装在外层。
var (
	// ErrUnavailable 表示远端端点不可达或调用超时，属于整体性的瞬时故障，
	// 同一轮内继续发起远端调用没有意义。
	ErrUnavailable = errors.New("anki endpoint unavailable")

	// ErrProtocol 表示端点可达但拒绝了请求，且原因未被进一步归类；
	// 远端返回的原始消息会完整保留在错误信息中。
	ErrProtocol = errors.New("ankiconnect protocol error")

	// ErrDuplicateNote 表示创建笔记时与已存在的笔记冲突，由修复路径接管。
	ErrDuplicateNote = errors.New("duplicate anki note")

	// ErrNoteNotFound 表示引用的远端笔记已不存在，例如被用户在 Anki 中删除。
	ErrNoteNotFound = errors.New("anki note not found")

	// ErrConflict 表示反馈存储的唯一性不变量将被破坏：
	// 一个远端笔记 ID 已经绑定到另一张本地卡片。
	ErrConflict = errors.New("anki note already bound to another card")

	// ErrNotSynced 表示试图在从未成功推送过的记录上写入复习统计。
	ErrNotSynced = errors.New("feedback record has no anki note")
)
