package anki

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
	"github.com/mutusfa/Neurodeck/backend/go/pkg/logger"
)

// CardSource 按 ID 提供只读的卡片数据。引擎不读取任何共享状态，
// 一轮同步涉及的卡片全部通过该接口显式获取。
type CardSource interface {
	GetCard(ctx context.Context, cardID uint) (*models.Card, error)
}

// FeedbackStore 是反馈记录的持久化契约，同步的幂等性依赖它的正确实现。
type FeedbackStore interface {
	// GetFeedback 返回卡片的反馈记录；记录不存在时返回 (nil, nil)。
	GetFeedback(ctx context.Context, cardID uint) (*models.AnkiNoteFeedback, error)

	// UpsertPendingFeedback 在记录缺失时以 pending 状态创建，已存在时原样返回，
	// 使"登记待同步"可以被任意次重复调用。
	UpsertPendingFeedback(ctx context.Context, cardID uint) (*models.AnkiNoteFeedback, error)

	// MarkSynced 记录推送成功：写入远端笔记 ID 与复习统计并清除错误信息。
	// noteID 已绑定到其他卡片时返回 ErrConflict，且两条记录都保持不变。
	MarkSynced(ctx context.Context, cardID uint, noteID int64, stats models.ReviewStats) error

	// RecordReviewStats 刷新记录的复习统计并把状态收敛回 synced。
	// 记录没有远端笔记 ID 时返回 ErrNotSynced。
	RecordReviewStats(ctx context.Context, cardID uint, stats models.ReviewStats) error

	// MarkError 记录一次失败：状态置为 error 并保存消息与时间戳，
	// 已有的远端笔记 ID 与复习统计保持不动。
	MarkError(ctx context.Context, cardID uint, message string) error
}

// OutcomeStatus 标识一张卡片在一轮同步中的处理结果。
type OutcomeStatus string

const (
	OutcomePushed   OutcomeStatus = "pushed"   // 新的远端笔记已创建
	OutcomeRepaired OutcomeStatus = "repaired" // 重复冲突已通过查找既有笔记修复
	OutcomePulled   OutcomeStatus = "pulled"   // 复习统计已刷新
	OutcomeSkipped  OutcomeStatus = "skipped"  // 本轮没有对该卡片做任何远端操作
	OutcomeError    OutcomeStatus = "error"    // 处理失败，Reason 说明原因
)

// Outcome 是一张卡片的同步结果，供调用方逐条展示。
type Outcome struct {
	CardID uint          `json:"card_id"`
	Status OutcomeStatus `json:"status"`
	NoteID int64         `json:"note_id,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// QueryBuilder 为一张卡片构造查找既有笔记的查询串。
// 查询语法取决于远端系统，因此保持可替换；默认实现按牌组与问题全文匹配。
type QueryBuilder func(deck string, card *models.Card) string

// DefaultQueryBuilder 生成 `deck:"<deck>" "<question>"` 形式的查询。
// 问题文本中的双引号会被剔除，避免破坏查询语法。
func DefaultQueryBuilder(deck string, card *models.Card) string {
	question := strings.ReplaceAll(card.Question, `"`, "")
	return fmt.Sprintf("deck:%q %q", deck, question)
}

// Engine 在本地反馈记录与远端牌组之间执行幂等的双向同步。
//
// 一轮同步先推送后拉取，卡片之间相互独立，单张卡片的失败只影响它自己；
// 唯一的例外是 ErrUnavailable：端点整体不可达时，推送集合中剩余的卡片
// 不再发起远端调用，但仍然逐张落下失败记录。整轮过程不构成事务，
// 任何一步中断后留下的状态都可以安全重入。
type Engine struct {
	deck       DeckClient
	store      FeedbackStore
	cards      CardSource
	deckName   string
	tags       []string
	buildQuery QueryBuilder
	log        *logger.Logger
}

// EngineOption 配置 Engine 的可选行为。
type EngineOption func(*Engine)

// WithTags 设置推送笔记时附加的基础标签。
func WithTags(tags []string) EngineOption {
	return func(e *Engine) {
		e.tags = tags
	}
}

// WithQueryBuilder 覆盖默认的既有笔记查询构造器。
func WithQueryBuilder(b QueryBuilder) EngineOption {
	return func(e *Engine) {
		if b != nil {
			e.buildQuery = b
		}
	}
}

// WithLogger 为引擎设置日志器，不设置时引擎静默运行。
func WithLogger(log *logger.Logger) EngineOption {
	return func(e *Engine) {
		e.log = log
	}
}

// NewEngine 创建同步引擎。deckName 是推送新笔记的目标牌组。
func NewEngine(deck DeckClient, store FeedbackStore, cards CardSource, deckName string, opts ...EngineOption) *Engine {
	e := &Engine{
		deck:       deck,
		store:      store,
		cards:      cards,
		deckName:   deckName,
		buildQuery: DefaultQueryBuilder,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// pullItem 是一轮同步中待拉取的条目。
type pullItem struct {
	cardID uint
	noteID int64
}

// RunPass 对候选卡片执行一轮同步，返回逐卡结果，顺序与输入一致（重复 ID 只处理一次）。
//
// 每张卡片按其反馈记录的形态分派：没有远端笔记 ID 的进入推送集合，
// 已有远端笔记 ID 的进入拉取集合；error 状态的记录因此会在下一轮
// 按当前形态自动重试，不存在终态失败。缺失的反馈记录被补建为 pending。
func (e *Engine) RunPass(ctx context.Context, cardIDs []uint) []Outcome {
	outcomes := make(map[uint]Outcome, len(cardIDs))
	order := make([]uint, 0, len(cardIDs))

	var pushSet []uint
	var pullSet []pullItem

	for _, id := range cardIDs {
		if _, seen := outcomes[id]; seen {
			continue
		}
		order = append(order, id)
		outcomes[id] = Outcome{CardID: id, Status: OutcomeSkipped}

		fb, err := e.store.GetFeedback(ctx, id)
		if err == nil && fb == nil {
			fb, err = e.store.UpsertPendingFeedback(ctx, id)
		}
		if err != nil {
			outcomes[id] = Outcome{CardID: id, Status: OutcomeError, Reason: err.Error()}
			continue
		}
		if fb.AnkiNoteID == nil {
			pushSet = append(pushSet, id)
		} else {
			pullSet = append(pullSet, pullItem{cardID: id, noteID: *fb.AnkiNoteID})
		}
	}

	// 推送阶段：为从未绑定过远端笔记的卡片创建笔记。
	unavailable := false
	for _, id := range pushSet {
		if unavailable {
			// 端点已确认不可达，剩余卡片不再发起远端调用，只落下失败记录。
			outcomes[id] = e.errOutcome(ctx, id, fmt.Errorf("%w: 本轮更早的调用已失败", ErrUnavailable))
			continue
		}
		outcome, down := e.push(ctx, id)
		outcomes[id] = outcome
		if down {
			unavailable = true
		}
	}

	// 拉取阶段：一次批量请求刷新所有已绑定卡片的复习统计。
	if len(pullSet) > 0 {
		e.pull(ctx, outcomes, pullSet)
	}

	results := make([]Outcome, 0, len(order))
	for _, id := range order {
		results = append(results, outcomes[id])
	}
	e.logSummary(results)
	return results
}

// push 为一张卡片创建远端笔记。返回的 down 表示端点被判定为不可达，
// 调用方据此跳过推送集合中剩余的远端调用。
func (e *Engine) push(ctx context.Context, cardID uint) (Outcome, bool) {
	card, err := e.cards.GetCard(ctx, cardID)
	if err != nil {
		return e.errOutcome(ctx, cardID, fmt.Errorf("加载卡片失败: %w", err)), false
	}

	noteID, err := e.deck.AddNote(ctx, e.deckName, card.Question, card.Answer, e.tagsFor(card))
	switch {
	case err == nil:
		// 新笔记还没有复习历史，统计填零，下一次拉取会刷新。
		if err := e.store.MarkSynced(ctx, cardID, noteID, models.ReviewStats{}); err != nil {
			return e.errOutcome(ctx, cardID, err), false
		}
		return Outcome{CardID: cardID, Status: OutcomePushed, NoteID: noteID}, false

	case errors.Is(err, ErrDuplicateNote):
		return e.repair(ctx, cardID, card)

	case errors.Is(err, ErrUnavailable):
		return e.errOutcome(ctx, cardID, err), true

	default:
		return e.errOutcome(ctx, cardID, err), false
	}
}

// repair 处理推送时的重复冲突：按问题文本查找既有笔记，恰好一条匹配时直接绑定
// （典型来源是上一轮在写库前中断）；零条或多条匹配时记为错误交给用户处理。
func (e *Engine) repair(ctx context.Context, cardID uint, card *models.Card) (Outcome, bool) {
	ids, err := e.deck.FindNotes(ctx, e.buildQuery(e.deckName, card))
	if err != nil {
		return e.errOutcome(ctx, cardID, fmt.Errorf("查找既有笔记失败: %w", err)), errors.Is(err, ErrUnavailable)
	}
	if len(ids) != 1 {
		return e.errOutcome(ctx, cardID,
			fmt.Errorf("%w: 查找到 %d 条匹配，无法确定对应的远端笔记", ErrDuplicateNote, len(ids))), false
	}
	// 绑定时统计未知，填零并等待下一次拉取刷新。
	if err := e.store.MarkSynced(ctx, cardID, ids[0], models.ReviewStats{}); err != nil {
		return e.errOutcome(ctx, cardID, err), false
	}
	return Outcome{CardID: cardID, Status: OutcomeRepaired, NoteID: ids[0]}, false
}

// pull 批量刷新拉取集合的复习统计。批量调用本身失败时所有条目记为失败；
// 远端已消失的笔记按卡片单独上报，不自动重建以免静默丢失复习历史。
func (e *Engine) pull(ctx context.Context, outcomes map[uint]Outcome, items []pullItem) {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.noteID)
	}

	found, _, err := e.deck.GetNoteInfo(ctx, ids)
	if err != nil {
		for _, item := range items {
			outcomes[item.cardID] = e.errOutcome(ctx, item.cardID, fmt.Errorf("批量获取复习状态失败: %w", err))
		}
		return
	}

	for _, item := range items {
		info, ok := found[item.noteID]
		if !ok {
			outcomes[item.cardID] = e.errOutcome(ctx, item.cardID,
				fmt.Errorf("%w: 笔记 %d 已在远端被删除", ErrNoteNotFound, item.noteID))
			continue
		}
		if err := e.store.RecordReviewStats(ctx, item.cardID, info.Stats); err != nil {
			outcomes[item.cardID] = e.errOutcome(ctx, item.cardID, err)
			continue
		}
		outcomes[item.cardID] = Outcome{CardID: item.cardID, Status: OutcomePulled, NoteID: item.noteID}
	}
}

// errOutcome 把一次失败落到反馈记录并生成对应的结果条目。
// 落库本身失败时只记日志，结果条目仍然带回原始原因。
func (e *Engine) errOutcome(ctx context.Context, cardID uint, cause error) Outcome {
	if err := e.store.MarkError(ctx, cardID, cause.Error()); err != nil && e.log != nil {
		e.log.WithPayload(map[string]interface{}{
			"card_id": cardID,
			"error":   err.Error(),
		}).Warn("记录同步失败状态时出错")
	}
	return Outcome{CardID: cardID, Status: OutcomeError, Reason: cause.Error()}
}

// tagsFor 组合基础标签与卡片主题。Anki 标签不允许空格，主题中的空格替换为下划线。
func (e *Engine) tagsFor(card *models.Card) []string {
	tags := append([]string(nil), e.tags...)
	if topic := strings.TrimSpace(card.Topic); topic != "" {
		tags = append(tags, strings.ReplaceAll(topic, " ", "_"))
	}
	return tags
}

// logSummary 在配置了日志器时输出一轮同步的状态计数。
func (e *Engine) logSummary(results []Outcome) {
	if e.log == nil {
		return
	}
	counts := map[string]interface{}{}
	for _, r := range results {
		key := string(r.Status)
		if n, ok := counts[key].(int); ok {
			counts[key] = n + 1
		} else {
			counts[key] = 1
		}
	}
	counts["total"] = len(results)
	e.log.WithPayload(counts).Info("同步完成")
}
