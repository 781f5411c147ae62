package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
)

// --- Document & Card Management ---

// SaveDocument 按 Context 创建或更新一条文档记录。
// 同一 Context 重复摄取时保留原记录的 ID 与创建时间，只刷新内容。
func (s *Store) SaveDocument(ctx context.Context, doc *models.Document) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Document
		err := tx.Where("context = ?", doc.Context).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(doc).Error
		}
		if err != nil {
			return err
		}
		doc.ID = existing.ID
		doc.CreatedAt = existing.CreatedAt
		return tx.Save(doc).Error
	})
}

// GetDocumentByContext 按 Context 查找文档；不存在时返回 (nil, nil)。
func (s *Store) GetDocumentByContext(ctx context.Context, contextKey string) (*models.Document, error) {
	var doc models.Document
	err := s.DB.WithContext(ctx).Where("context = ?", contextKey).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetDocumentByContentHash 按提取文本的哈希查找文档，用于重复内容去重；
// 不存在时返回 (nil, nil)。
func (s *Store) GetDocumentByContentHash(ctx context.Context, contentHash string) (*models.Document, error) {
	var doc models.Document
	err := s.DB.WithContext(ctx).Where("content_hash = ?", contentHash).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// SaveCards 批量保存卡片：没有 ID 的创建，带 ID 的整体更新，整批在一个事务中完成。
// 返回带数据库分配 ID 的卡片切片。
func (s *Store) SaveCards(ctx context.Context, cards []models.Card) ([]models.Card, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range cards {
			if cards[i].ID == 0 {
				if err := tx.Create(&cards[i]).Error; err != nil {
					return err
				}
			} else {
				if err := tx.Save(&cards[i]).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// LoadCards 按 ID 升序加载一个 Context 下的全部卡片。
func (s *Store) LoadCards(ctx context.Context, contextKey string) ([]models.Card, error) {
	var cards []models.Card
	err := s.DB.WithContext(ctx).
		Where("context = ?", contextKey).
		Order("id ASC").
		Find(&cards).Error
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// GetCard 按 ID 加载单张卡片。该方法同时满足同步引擎的 CardSource 接口。
func (s *Store) GetCard(ctx context.Context, cardID uint) (*models.Card, error) {
	var card models.Card
	if err := s.DB.WithContext(ctx).First(&card, cardID).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// ContextInfo 是 Context 列表中的一项。
type ContextInfo struct {
	Context   string `json:"context"`
	CardCount int64  `json:"card_count"`
}

// ListContexts 返回全部去重后的 Context 及其卡片数量，按 Context 排序。
func (s *Store) ListContexts(ctx context.Context) ([]ContextInfo, error) {
	var infos []ContextInfo
	err := s.DB.WithContext(ctx).
		Model(&models.Card{}).
		Select("context, COUNT(*) AS card_count").
		Group("context").
		Order("context ASC").
		Scan(&infos).Error
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// UpdateEvaluation 更新一张卡片的评价。卡片不存在时返回 gorm.ErrRecordNotFound。
func (s *Store) UpdateEvaluation(ctx context.Context, cardID uint, eval models.CardEvaluation) error {
	res := s.DB.WithContext(ctx).
		Model(&models.Card{}).
		Where("id = ?", cardID).
		Update("evaluation", eval)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteContext 级联删除一个 Context：反馈记录、卡片与文档行在同一个事务中移除。
// 返回被删除的文档记录（调用方据此清理媒体对象）；Context 不存在时返回 (nil, nil)。
func (s *Store) DeleteContext(ctx context.Context, contextKey string) (*models.Document, error) {
	var doc *models.Document
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cardIDs []uint
		if err := tx.Model(&models.Card{}).Where("context = ?", contextKey).Pluck("id", &cardIDs).Error; err != nil {
			return err
		}
		if len(cardIDs) > 0 {
			// 反馈记录先于卡片删除，保证不会留下指向已删卡片的映射。
			if err := tx.Where("card_id IN ?", cardIDs).Delete(&models.AnkiNoteFeedback{}).Error; err != nil {
				return err
			}
			if err := tx.Where("context = ?", contextKey).Delete(&models.Card{}).Error; err != nil {
				return err
			}
		}

		var d models.Document
		err := tx.Where("context = ?", contextKey).First(&d).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Delete(&models.Document{}, d.ID).Error; err != nil {
			return err
		}
		doc = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Stats 聚合全库统计信息。
type Stats struct {
	Documents   int64            `json:"documents"`
	Cards       int64            `json:"cards"`
	Evaluations map[string]int64 `json:"evaluations"`
	SyncStatus  map[string]int64 `json:"sync_status"`
}

// Stats 统计文档与卡片总量，以及按评价和同步状态的分布。
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Evaluations: map[string]int64{},
		SyncStatus:  map[string]int64{},
	}

	if err := s.DB.WithContext(ctx).Model(&models.Document{}).Count(&stats.Documents).Error; err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&models.Card{}).Count(&stats.Cards).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		BucketKey string
		Count     int64
	}

	var evaluations []bucket
	err := s.DB.WithContext(ctx).
		Model(&models.Card{}).
		Select("evaluation AS bucket_key, COUNT(*) AS count").
		Group("evaluation").
		Scan(&evaluations).Error
	if err != nil {
		return nil, err
	}
	for _, b := range evaluations {
		stats.Evaluations[b.BucketKey] = b.Count
	}

	var syncStates []bucket
	err = s.DB.WithContext(ctx).
		Model(&models.AnkiNoteFeedback{}).
		Select("sync_status AS bucket_key, COUNT(*) AS count").
		Group("sync_status").
		Scan(&syncStates).Error
	if err != nil {
		return nil, err
	}
	for _, b := range syncStates {
		stats.SyncStatus[b.BucketKey] = b.Count
	}
	return stats, nil
}
