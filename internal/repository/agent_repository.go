package repository

import (
	"github.com/patipanbank/MFULearnAi/internal/model"
	"gorm.io/gorm"
)

// AgentRepository 智能体数据访问
type AgentRepository struct {
	db *gorm.DB
}

// NewAgentRepository 创建智能体仓库
func NewAgentRepository(db *gorm.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// GetByID 获取智能体
func (r *AgentRepository) GetByID(id string) (*model.Agent, error) {
	var agent model.Agent
	err := r.db.Where("id = ?", id).First(&agent).Error
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// ListActive 列出启用的智能体
func (r *AgentRepository) ListActive() ([]*model.Agent, error) {
	var agents []*model.Agent
	err := r.db.Where("is_active = ?", true).Order("created_at DESC").Find(&agents).Error
	return agents, err
}
