// Package agent 提供智能体配置解析与生成器实现
package agent

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/patipanbank/MFULearnAi/internal/model"
)

// ErrAgentNotFound 智能体不存在
var ErrAgentNotFound = errors.New("agent not found")

// Config 一次生成的配置
type Config struct {
	ModelID         string
	CollectionNames []string
	SystemPrompt    string
	Temperature     float64
	MaxTokens       int
}

// Repository 智能体数据访问接口
type Repository interface {
	GetByID(id string) (*model.Agent, error)
}

// ConfigProvider 基于仓库的智能体配置提供者
type ConfigProvider struct {
	repo Repository
}

// NewConfigProvider 创建配置提供者
func NewConfigProvider(repo Repository) *ConfigProvider {
	return &ConfigProvider{repo: repo}
}

// GetConfig 解析智能体的生成配置
func (p *ConfigProvider) GetConfig(ctx context.Context, agentID string) (*Config, error) {
	agent, err := p.repo.GetByID(agentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	cfg := &Config{
		ModelID:         agent.ModelID,
		CollectionNames: agent.CollectionNames,
		SystemPrompt:    agent.SystemPrompt,
		Temperature:     agent.Temperature,
		MaxTokens:       agent.MaxTokens,
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4000
	}
	return cfg, nil
}
