package model

import "time"

// Agent 智能体，决定一个房间的生成配置
type Agent struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Name            string    `gorm:"size:255" json:"name"`
	Description     string    `gorm:"type:text" json:"description,omitempty"`
	ModelID         string    `gorm:"size:128" json:"modelId"`
	CollectionNames []string  `gorm:"serializer:json" json:"collectionNames,omitempty"`
	SystemPrompt    string    `gorm:"type:text" json:"systemPrompt,omitempty"`
	Temperature     float64   `gorm:"default:0.7" json:"temperature"`
	MaxTokens       int       `gorm:"default:4000" json:"maxTokens"`
	IsActive        bool      `gorm:"default:true;index" json:"isActive"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (Agent) TableName() string {
	return "agents"
}
