package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mutusfa/Neurodeck/backend/go/internal/anki"
	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
)

// --- Anki 反馈记录 ---
//
// 以下方法实现同步引擎的 anki.FeedbackStore 契约。同步的幂等性建立在
// 这里的两条不变量上：每张卡片至多一条记录，每个远端笔记 ID 至多被一条记录持有。

// GetFeedback 返回卡片的反馈记录；记录不存在时返回 (nil, nil)。
func (s *Store) GetFeedback(ctx context.Context, cardID uint) (*models.AnkiNoteFeedback, error) {
	var fb models.AnkiNoteFeedback
	err := s.DB.WithContext(ctx).Where("card_id = ?", cardID).First(&fb).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

// GetFeedbackByNoteID 按远端笔记 ID 查找反馈记录；不存在时返回 (nil, nil)。
// 用于排查绑定冲突时定位持有者。
func (s *Store) GetFeedbackByNoteID(ctx context.Context, noteID int64) (*models.AnkiNoteFeedback, error) {
	var fb models.AnkiNoteFeedback
	err := s.DB.WithContext(ctx).Where("anki_note_id = ?", noteID).First(&fb).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

// UpsertPendingFeedback 在记录缺失时以 pending 状态创建，已存在时原样返回。
// 任意次重复调用只会留下一条记录，且不会触碰已有记录的任何字段。
func (s *Store) UpsertPendingFeedback(ctx context.Context, cardID uint) (*models.AnkiNoteFeedback, error) {
	var fb models.AnkiNoteFeedback
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("card_id = ?", cardID).First(&fb).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		fb = models.AnkiNoteFeedback{CardID: cardID, SyncStatus: models.SyncStatusPending}
		return tx.Create(&fb).Error
	})
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

// MarkSynced 记录推送成功：写入远端笔记 ID 与复习统计，状态置为 synced 并清除错误信息。
// noteID 已被其他卡片持有时返回 anki.ErrConflict，两条记录都不发生变化。
func (s *Store) MarkSynced(ctx context.Context, cardID uint, noteID int64, stats models.ReviewStats) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var other models.AnkiNoteFeedback
		err := tx.Where("anki_note_id = ? AND card_id <> ?", noteID, cardID).First(&other).Error
		if err == nil {
			return fmt.Errorf("%w: 笔记 %d 已绑定到卡片 %d", anki.ErrConflict, noteID, other.CardID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var fb models.AnkiNoteFeedback
		if err := tx.Where("card_id = ?", cardID).First(&fb).Error; err != nil {
			return err
		}
		now := time.Now()
		fb.AnkiNoteID = &noteID
		fb.ApplyStats(stats)
		fb.SyncStatus = models.SyncStatusSynced
		fb.LastSyncAttemptAt = &now
		fb.LastError = nil
		return tx.Save(&fb).Error
	})
}

// RecordReviewStats 刷新记录的复习统计并把状态收敛回 synced。
// 记录缺失或从未推送成功（没有远端笔记 ID）时返回 anki.ErrNotSynced。
func (s *Store) RecordReviewStats(ctx context.Context, cardID uint, stats models.ReviewStats) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var fb models.AnkiNoteFeedback
		err := tx.Where("card_id = ?", cardID).First(&fb).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: 卡片 %d 没有反馈记录", anki.ErrNotSynced, cardID)
		}
		if err != nil {
			return err
		}
		if fb.AnkiNoteID == nil {
			return fmt.Errorf("%w: 卡片 %d 尚未完成首次推送", anki.ErrNotSynced, cardID)
		}
		now := time.Now()
		fb.ApplyStats(stats)
		fb.SyncStatus = models.SyncStatusSynced
		fb.LastSyncAttemptAt = &now
		fb.LastError = nil
		return tx.Save(&fb).Error
	})
}

// MarkError 记录一次失败：状态置为 error 并保存消息与时间戳。
// 已有的远端笔记 ID 与复习统计保持不动，下一轮同步按记录的当前形态重试。
func (s *Store) MarkError(ctx context.Context, cardID uint, message string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var fb models.AnkiNoteFeedback
		if err := tx.Where("card_id = ?", cardID).First(&fb).Error; err != nil {
			return err
		}
		now := time.Now()
		fb.SyncStatus = models.SyncStatusError
		fb.LastSyncAttemptAt = &now
		fb.LastError = &message
		return tx.Save(&fb).Error
	})
}

// DeleteFeedback 删除一张卡片的反馈记录。删除不存在的记录不是错误。
func (s *Store) DeleteFeedback(ctx context.Context, cardID uint) error {
	return s.DB.WithContext(ctx).Where("card_id = ?", cardID).Delete(&models.AnkiNoteFeedback{}).Error
}

// 编译时检查，确保 Store 同时满足同步引擎的两个依赖接口。
var (
	_ anki.FeedbackStore = (*Store)(nil)
	_ anki.CardSource    = (*Store)(nil)
)
