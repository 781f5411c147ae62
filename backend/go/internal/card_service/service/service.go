package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mutusfa/Neurodeck/backend/go/internal/anki"
	"github.com/mutusfa/Neurodeck/backend/go/internal/card_service/store"
	"github.com/mutusfa/Neurodeck/backend/go/internal/database/kafka"
	"github.com/mutusfa/Neurodeck/backend/go/internal/generation"
	"github.com/mutusfa/Neurodeck/backend/go/internal/ingestion"
	"github.com/mutusfa/Neurodeck/backend/go/internal/media"
	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
	"github.com/mutusfa/Neurodeck/backend/go/internal/similarity"
	"github.com/mutusfa/Neurodeck/backend/go/pkg/logger"

	"github.com/gabriel-vasile/mimetype"
	"gorm.io/datatypes"
)

// ErrInvalidEvaluation 在收到未知的评价值时返回。
var ErrInvalidEvaluation = errors.New("invalid evaluation value")

// Service 封装了卡片生成、管理与 Anki 同步的业务逻辑。
// similarity 与 events 是可选能力，未启用时传 nil。
type Service struct {
	store      *store.Store
	media      media.Store
	ingest     *ingestion.Pipeline
	generator  *generation.Generator
	engine     *anki.Engine
	deck       anki.DeckClient
	similarity *similarity.Index
	events     *kafka.CardEventPublisher
	log        *logger.Logger
}

// NewService 创建一个新的 Service 实例。
func NewService(
	st *store.Store,
	mediaStore media.Store,
	ingest *ingestion.Pipeline,
	generator *generation.Generator,
	engine *anki.Engine,
	deck anki.DeckClient,
	sim *similarity.Index,
	events *kafka.CardEventPublisher,
	log *logger.Logger,
) *Service {
	return &Service{
		store:      st,
		media:      mediaStore,
		ingest:     ingest,
		generator:  generator,
		engine:     engine,
		deck:       deck,
		similarity: sim,
		events:     events,
		log:        log,
	}
}

// ContextCards 是一次生成或查询的结果：Context 与其全部卡片。
type ContextCards struct {
	Context   string        `json:"context"`
	Topic     string        `json:"topic"`
	Cards     []models.Card `json:"cards"`
	FromCache bool          `json:"from_cache"`
}

// --- Card Generation ---

// GenerateFromFile 摄取一个本地文件并为其生成卡片。
// 相同内容的文件重复上传时直接返回既有卡片，不再归档新副本。
func (s *Service) GenerateFromFile(ctx context.Context, path, originalName string) (*ContextCards, error) {
	doc, err := s.ingest.ExtractFile(ctx, path)
	if err != nil {
		return nil, err
	}

	// 内容级去重：按提取文本的哈希查找既有文档。
	contentHash := hashText(doc.Text)
	existing, err := s.store.GetDocumentByContentHash(ctx, contentHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		cards, err := s.store.LoadCards(ctx, existing.Context)
		if err != nil {
			return nil, err
		}
		return &ContextCards{
			Context:   existing.Context,
			Topic:     existing.Topic,
			Cards:     cards,
			FromCache: true,
		}, nil
	}

	// 归档原始文件，媒体 URI 即为新 Context。
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect MIME type: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat uploaded file: %w", err)
	}

	objectName := media.ObjectName(originalName)
	if err := s.media.Save(ctx, objectName, f, stat.Size(), mtype.String()); err != nil {
		return nil, fmt.Errorf("failed to archive media: %w", err)
	}

	// 摄取管道记录的是临时文件名，换成用户看到的原始名称。
	if doc.Metadata == nil {
		doc.Metadata = map[string]interface{}{}
	}
	doc.Metadata[ingestion.MetadataKeyFileName] = originalName

	return s.generateAndStore(ctx, s.media.URI(objectName), models.SourceFile, objectName, contentHash, doc)
}

// GenerateFromURL 抓取一个 URL 并为其生成卡片。URL 本身就是 Context，
// 同一 URL 再次提交时直接返回既有卡片。
func (s *Service) GenerateFromURL(ctx context.Context, rawURL string) (*ContextCards, error) {
	existing, err := s.store.GetDocumentByContext(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		cards, err := s.store.LoadCards(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return &ContextCards{
			Context:   rawURL,
			Topic:     existing.Topic,
			Cards:     cards,
			FromCache: true,
		}, nil
	}

	doc, err := s.ingest.ExtractURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	return s.generateAndStore(ctx, rawURL, models.SourceURL, "", hashText(doc.Text), doc)
}

// generateAndStore 调用 LLM 生成卡片并持久化文档与卡片记录。
func (s *Service) generateAndStore(
	ctx context.Context,
	contextKey string,
	sourceType models.DocumentSourceType,
	mediaObject string,
	contentHash string,
	doc *ingestion.Document,
) (*ContextCards, error) {
	res, err := s.generator.Generate(ctx, doc.Text)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document metadata: %w", err)
	}

	document := &models.Document{
		Context:     contextKey,
		SourceType:  sourceType,
		MediaObject: mediaObject,
		ContentHash: contentHash,
		Topic:       res.Topic,
		Metadata:    datatypes.JSON(metadata),
	}
	if err := s.store.SaveDocument(ctx, document); err != nil {
		return nil, err
	}

	for i := range res.Cards {
		res.Cards[i].Context = contextKey
		res.Cards[i].Topic = res.Topic
		res.Cards[i].Evaluation = models.EvaluationNotEvaluated
	}
	saved, err := s.store.SaveCards(ctx, res.Cards)
	if err != nil {
		return nil, err
	}

	// 向量索引与事件发布都是尽力而为，失败不影响卡片生成结果。
	if err := s.similarity.IndexCards(ctx, saved); err != nil {
		s.warn("索引卡片向量失败", map[string]interface{}{"context": contextKey, "error": err.Error()})
	}
	s.publish(ctx, &models.CardEvent{
		Type:    models.EventCardsGenerated,
		Context: contextKey,
		Payload: map[string]interface{}{
			"card_count": len(saved),
			"topic":      res.Topic,
			"from_cache": res.FromCache,
		},
	})

	return &ContextCards{
		Context:   contextKey,
		Topic:     res.Topic,
		Cards:     saved,
		FromCache: res.FromCache,
	}, nil
}

// --- Card Management ---

// ListContexts 返回全部 Context 及其卡片数量。
func (s *Service) ListContexts(ctx context.Context) ([]store.ContextInfo, error) {
	return s.store.ListContexts(ctx)
}

// LoadCards 返回一个 Context 下的全部卡片。
func (s *Service) LoadCards(ctx context.Context, contextKey string) ([]models.Card, error) {
	return s.store.LoadCards(ctx, contextKey)
}

// DeleteContext 删除一个 Context 及其卡片、反馈记录、媒体对象与向量。
// Context 不存在时直接返回 nil，删除是幂等的。
func (s *Service) DeleteContext(ctx context.Context, contextKey string) error {
	doc, err := s.store.DeleteContext(ctx, contextKey)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	if doc.MediaObject != "" {
		if err := s.media.Remove(ctx, doc.MediaObject); err != nil {
			s.warn("清理媒体对象失败", map[string]interface{}{"object": doc.MediaObject, "error": err.Error()})
		}
	}
	if err := s.similarity.RemoveContext(ctx, contextKey); err != nil {
		s.warn("清理卡片向量失败", map[string]interface{}{"context": contextKey, "error": err.Error()})
	}
	s.publish(ctx, &models.CardEvent{
		Type:    models.EventContextDeleted,
		Context: contextKey,
	})
	return nil
}

// UpdateEvaluation 更新一张卡片的评价，并把已评价的卡片登记为待同步。
// 改回 not_evaluated 不会删除既有的同步映射。
func (s *Service) UpdateEvaluation(ctx context.Context, cardID uint, eval models.CardEvaluation) error {
	if !models.ValidEvaluation(eval) {
		return fmt.Errorf("%w: %s", ErrInvalidEvaluation, eval)
	}

	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return err
	}
	if err := s.store.UpdateEvaluation(ctx, cardID, eval); err != nil {
		return err
	}

	if eval != models.EvaluationNotEvaluated {
		if _, err := s.store.UpsertPendingFeedback(ctx, cardID); err != nil {
			return err
		}
	}

	s.publish(ctx, &models.CardEvent{
		Type:    models.EventCardEvaluated,
		Context: card.Context,
		CardID:  cardID,
		Payload: map[string]interface{}{"evaluation": string(eval)},
	})
	return nil
}

// Similar 返回与指定卡片问题最相近的其他卡片。
func (s *Service) Similar(ctx context.Context, cardID uint, topK int) ([]similarity.Match, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}

	// 多取一条，结果里通常包含卡片自身。
	matches, err := s.similarity.Similar(ctx, card.Question, topK+1)
	if err != nil {
		return nil, err
	}

	filtered := make([]similarity.Match, 0, len(matches))
	for _, m := range matches {
		if m.CardID == int64(cardID) {
			continue
		}
		filtered = append(filtered, m)
		if len(filtered) == topK {
			break
		}
	}
	return filtered, nil
}

// --- Anki Sync ---

// SyncContext 对一个 Context 下所有已评价的卡片执行一轮同步。
func (s *Service) SyncContext(ctx context.Context, contextKey string) ([]anki.Outcome, error) {
	cards, err := s.store.LoadCards(ctx, contextKey)
	if err != nil {
		return nil, err
	}

	var ids []uint
	for _, c := range cards {
		if c.Evaluation != models.EvaluationNotEvaluated {
			ids = append(ids, c.ID)
		}
	}

	outcomes := s.engine.RunPass(ctx, ids)
	s.publishSyncEvent(ctx, contextKey, outcomes)
	return outcomes, nil
}

// SyncCards 对指定的卡片集合执行一轮同步。
func (s *Service) SyncCards(ctx context.Context, cardIDs []uint) ([]anki.Outcome, error) {
	outcomes := s.engine.RunPass(ctx, cardIDs)
	s.publishSyncEvent(ctx, "", outcomes)
	return outcomes, nil
}

// ListDecks 返回远端全部牌组名称。
func (s *Service) ListDecks(ctx context.Context) ([]string, error) {
	return s.deck.ListDecks(ctx)
}

// --- Stats & Health ---

// Stats 在存储层统计之上附加运行时能力信息。
type Stats struct {
	store.Stats
	MediaBackend      string `json:"media_backend"`
	SimilarityEnabled bool   `json:"similarity_enabled"`
	EventsEnabled     bool   `json:"events_enabled"`
}

// Stats 返回全库统计信息。
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Stats:             *st,
		MediaBackend:      s.media.Backend(),
		SimilarityEnabled: s.similarity.Enabled(),
		EventsEnabled:     s.events != nil,
	}, nil
}

// Health 逐个探测依赖。值为 "ok"、"disabled" 或错误消息。
func (s *Service) Health(ctx context.Context) map[string]string {
	health := map[string]string{}

	if db, err := s.store.DB.DB(); err != nil {
		health["database"] = err.Error()
	} else if err := db.PingContext(ctx); err != nil {
		health["database"] = err.Error()
	} else {
		health["database"] = "ok"
	}

	if _, err := s.deck.ListDecks(ctx); err != nil {
		health["anki"] = err.Error()
	} else {
		health["anki"] = "ok"
	}

	if s.similarity.Enabled() {
		health["similarity"] = "ok"
	} else {
		health["similarity"] = "disabled"
	}
	if s.events != nil {
		health["events"] = "ok"
	} else {
		health["events"] = "disabled"
	}
	return health
}

// --- Helpers ---

// hashText 计算提取文本的 SHA-256，十六进制编码。
func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// publish 发布一条事件，失败只记日志。
func (s *Service) publish(ctx context.Context, event *models.CardEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.warn("发布事件失败", map[string]interface{}{"type": string(event.Type), "error": err.Error()})
	}
}

// publishSyncEvent 发布一轮同步的状态计数。
func (s *Service) publishSyncEvent(ctx context.Context, contextKey string, outcomes []anki.Outcome) {
	s.publish(ctx, &models.CardEvent{
		Type:    models.EventAnkiSyncCompleted,
		Context: contextKey,
		Payload: summarize(outcomes),
	})
}

// summarize 统计一轮同步里各状态的数量。
func summarize(outcomes []anki.Outcome) map[string]interface{} {
	counts := map[string]interface{}{}
	for _, o := range outcomes {
		key := string(o.Status)
		if n, ok := counts[key].(int); ok {
			counts[key] = n + 1
		} else {
			counts[key] = 1
		}
	}
	counts["total"] = len(outcomes)
	return counts
}

func (s *Service) warn(msg string, payload map[string]interface{}) {
	if s.log != nil {
		s.log.WithPayload(payload).Warn(msg)
	}
}
