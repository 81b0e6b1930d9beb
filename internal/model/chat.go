package model

import "time"

// Chat 聊天会话（房间）
// ID 为 24 位十六进制字符串，与既有客户端的 chatId 格式保持一致
type Chat struct {
	ID              string        `gorm:"primaryKey;size:24" json:"id"`
	UserID          string        `gorm:"index;size:36" json:"userId"`
	Name            string        `gorm:"size:255" json:"name"`
	AgentID         string        `gorm:"index;size:36" json:"agentId,omitempty"`
	ModelID         string        `gorm:"size:128" json:"modelId,omitempty"`
	CollectionNames []string      `gorm:"serializer:json" json:"collectionNames,omitempty"`
	SystemPrompt    string        `gorm:"type:text" json:"systemPrompt,omitempty"`
	Temperature     float64       `gorm:"default:0.7" json:"temperature"`
	MaxTokens       int           `gorm:"default:4000" json:"maxTokens"`
	CreatedAt       time.Time     `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time     `gorm:"autoUpdateTime" json:"updatedAt"`
	Messages        []ChatMessage `gorm:"foreignKey:ChatID" json:"messages,omitempty"`
}

// ChatMessage 聊天消息
type ChatMessage struct {
	ID          string         `gorm:"primaryKey;size:64" json:"id"`
	ChatID      string         `gorm:"index;size:24" json:"chatId"`
	Role        string         `gorm:"size:20;index" json:"role"` // user, assistant
	Content     string         `gorm:"type:text" json:"content"`
	Images      []ImagePayload `gorm:"serializer:json" json:"images,omitempty"`
	IsStreaming bool           `gorm:"default:false" json:"isStreaming"`
	IsComplete  bool           `gorm:"default:true" json:"isComplete"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index" json:"timestamp"`
}

// ImagePayload 消息附带的图片
type ImagePayload struct {
	Data      string `json:"data"`
	MediaType string `json:"media_type"`
}

// TableName 指定表名
func (Chat) TableName() string {
	return "chats"
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
