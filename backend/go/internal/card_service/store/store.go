package store

import (
	"gorm.io/gorm"
)

// Store 封装了卡片服务所有的数据库操作：文档、卡片与 Anki 反馈记录。
type Store struct {
	DB *gorm.DB
}

// NewStore 创建一个新的 Store 实例。
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}
