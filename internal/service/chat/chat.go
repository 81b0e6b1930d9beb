// Package chat 提供会话与消息的持久化服务
package chat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/patipanbank/MFULearnAi/internal/model"
)

var (
	// ErrChatNotFound 会话不存在
	ErrChatNotFound = errors.New("chat not found")
	// ErrNotOwner 会话不属于该用户
	ErrNotOwner = errors.New("not authorized to access this chat")
)

// Repository 会话数据访问接口
type Repository interface {
	CreateChat(chat *model.Chat) error
	GetChatByID(id string) (*model.Chat, error)
	ListChatsByUser(userID string) ([]*model.Chat, error)
	CreateMessage(msg *model.ChatMessage) error
	GetRecentMessages(chatID string, limit int) ([]*model.ChatMessage, error)
	TouchChat(chatID string) error
}

// Service 会话服务
type Service struct {
	repo Repository
}

// NewService 创建会话服务
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewChatID 生成 24 位十六进制会话 ID
func NewChatID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand 失败时退化为 uuid 派生
		return uuid.New().String()[:8] + uuid.New().String()[:16]
	}
	return hex.EncodeToString(b)
}

// CreateChat 创建会话
func (s *Service) CreateChat(ctx context.Context, userID, name, agentID, modelID string) (*model.Chat, error) {
	if name == "" {
		name = "New Chat"
	}

	chat := &model.Chat{
		ID:          NewChatID(),
		UserID:      userID,
		Name:        name,
		AgentID:     agentID,
		ModelID:     modelID,
		Temperature: 0.7,
		MaxTokens:   4000,
	}

	if err := s.repo.CreateChat(chat); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

// EnsureChat 按给定 ID 获取会话，不存在时创建
// 兼容旧版客户端自带 session_id 的握手
func (s *Service) EnsureChat(ctx context.Context, chatID, userID string) (*model.Chat, error) {
	chat, err := s.GetChat(ctx, chatID)
	if err == nil {
		if chat.UserID != userID {
			return nil, ErrNotOwner
		}
		return chat, nil
	}
	if !errors.Is(err, ErrChatNotFound) {
		return nil, err
	}

	chat = &model.Chat{
		ID:          chatID,
		UserID:      userID,
		Name:        "New Chat",
		Temperature: 0.7,
		MaxTokens:   4000,
	}
	if err := s.repo.CreateChat(chat); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

// GetChat 获取会话
func (s *Service) GetChat(ctx context.Context, chatID string) (*model.Chat, error) {
	chat, err := s.repo.GetChatByID(chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return chat, nil
}

// GetOwnedChat 获取会话并校验归属
func (s *Service) GetOwnedChat(ctx context.Context, chatID, userID string) (*model.Chat, error) {
	chat, err := s.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.UserID != userID {
		return nil, ErrNotOwner
	}
	return chat, nil
}

// ListChats 列出用户的会话
func (s *Service) ListChats(ctx context.Context, userID string) ([]*model.Chat, error) {
	return s.repo.ListChatsByUser(userID)
}

// AppendMessage 追加消息到会话
func (s *Service) AppendMessage(ctx context.Context, chatID string, msg *model.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("msg_%s", uuid.New().String())
	}
	msg.ChatID = chatID

	if err := s.repo.CreateMessage(msg); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	// 会话活跃时间跟随消息更新，失败不影响追加
	_ = s.repo.TouchChat(chatID)
	return nil
}

// RecentMessages 获取会话最近的 N 条消息
func (s *Service) RecentMessages(ctx context.Context, chatID string, limit int) ([]*model.ChatMessage, error) {
	return s.repo.GetRecentMessages(chatID, limit)
}
