package models

import (
	"time"
)

// CardEvaluation 定义了用户对一张卡片的评价状态。
type CardEvaluation string

const (
	EvaluationNotEvaluated CardEvaluation = "not_evaluated" // 尚未评价
	EvaluationLiked        CardEvaluation = "liked"         // 喜欢
	EvaluationDisliked     CardEvaluation = "disliked"      // 不喜欢
	EvaluationSeen         CardEvaluation = "seen"          // 已浏览但未表态
)

// ValidEvaluation 检查评价值是否为已定义的枚举值。
func ValidEvaluation(e CardEvaluation) bool {
	switch e {
	case EvaluationNotEvaluated, EvaluationLiked, EvaluationDisliked, EvaluationSeen:
		return true
	}
	return false
}

// Card 代表一张由 LLM 生成的问答卡片。
// ID 是稳定的标识符，删除后不会被重用；Context 是分组键，
// 指向来源文档的存储路径或 URL。
type Card struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Question   string         `gorm:"type:text;not null" json:"question"`
	Answer     string         `gorm:"type:text;not null" json:"answer"`
	Topic      string         `gorm:"size:255" json:"topic"`
	Context    string         `gorm:"index;not null;size:768" json:"context"`
	Evaluation CardEvaluation `gorm:"type:varchar(20);default:'not_evaluated';not null" json:"evaluation"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (Card) TableName() string {
	return "cards"
}
