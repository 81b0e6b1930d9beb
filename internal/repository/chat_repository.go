package repository

import (
	"github.com/patipanbank/MFULearnAi/internal/model"
	"gorm.io/gorm"
)

// ChatRepository 聊天数据访问
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建聊天仓库
func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateChat 创建会话
func (r *ChatRepository) CreateChat(chat *model.Chat) error {
	return r.db.Create(chat).Error
}

// GetChatByID 获取会话
func (r *ChatRepository) GetChatByID(id string) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).Where("id = ?", id).First(&chat).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// ListChatsByUser 列出用户的会话
func (r *ChatRepository) ListChatsByUser(userID string) ([]*model.Chat, error) {
	var chats []*model.Chat
	err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&chats).Error
	return chats, err
}

// CreateMessage 创建消息
func (r *ChatRepository) CreateMessage(msg *model.ChatMessage) error {
	return r.db.Create(msg).Error
}

// GetRecentMessages 获取会话最近的 N 条消息（按时间正序返回）
func (r *ChatRepository) GetRecentMessages(chatID string, limit int) ([]*model.ChatMessage, error) {
	var messages []*model.ChatMessage
	err := r.db.Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	// 反转为时间正序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// TouchChat 更新会话的 updated_at
func (r *ChatRepository) TouchChat(chatID string) error {
	return r.db.Model(&model.Chat{}).Where("id = ?", chatID).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}
