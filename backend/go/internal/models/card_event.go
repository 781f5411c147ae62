package models

import "time"

// CardEventType 枚举了发布到 Kafka 的卡片生命周期事件类型。
type CardEventType string

const (
	EventCardsGenerated    CardEventType = "cards_generated"     // 某个 Context 新生成了一批卡片
	EventCardEvaluated     CardEventType = "card_evaluated"      // 用户更新了卡片评价
	EventContextDeleted    CardEventType = "context_deleted"     // 某个 Context 及其卡片被删除
	EventAnkiSyncCompleted CardEventType = "anki_sync_completed" // 一轮 Anki 同步结束
)

// CardEvent 是写入 card_events 主题的事件包络。
// 发布时以 Context 作为消息键，保证同一文档的事件落在同一分区内有序。
type CardEvent struct {
	Type      CardEventType          `json:"type"`
	Context   string                 `json:"context"`
	CardID    uint                   `json:"card_id,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
