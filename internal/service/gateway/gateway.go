package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/patipanbank/MFULearnAi/internal/model"
	"github.com/patipanbank/MFULearnAi/internal/service/agent"
	"github.com/patipanbank/MFULearnAi/internal/service/chat"
	"github.com/patipanbank/MFULearnAi/internal/service/queue"
	"github.com/patipanbank/MFULearnAi/internal/service/registry"
	"github.com/patipanbank/MFULearnAi/internal/service/stream"
	"github.com/patipanbank/MFULearnAi/pkg/logger"
)

// 关闭码与 RFC 6455 对齐
const (
	CloseInvalidPayload  = 1007
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
)

const errInvalidChatID = "Invalid or missing chatId"

var chatIDPattern = regexp.MustCompile(`^[0-9a-f]{24}$`)

// Conn 抽象一条客户端连接
type Conn interface {
	Send(payload []byte) error
	Read() ([]byte, error)
	Close(code int, reason string) error
}

// TokenVerifier 校验接入凭证并解析用户 ID
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// ChatStore 会话持久化契约
type ChatStore interface {
	CreateChat(ctx context.Context, userID, name, agentID, modelID string) (*model.Chat, error)
	EnsureChat(ctx context.Context, chatID, userID string) (*model.Chat, error)
	GetOwnedChat(ctx context.Context, chatID, userID string) (*model.Chat, error)
	AppendMessage(ctx context.Context, chatID string, msg *model.ChatMessage) error
}

// AgentConfigs 智能体配置查询契约
type AgentConfigs interface {
	GetConfig(ctx context.Context, agentID string) (*agent.Config, error)
}

// Dispatcher 生成任务投递契约
type Dispatcher interface {
	Dispatch(ctx context.Context, job *queue.Job) error
}

// Gateway 持有各连接共享的依赖
type Gateway struct {
	verifier   TokenVerifier
	chats      ChatStore
	agents     AgentConfigs
	registry   *registry.Registry
	dispatcher Dispatcher
}

// New 创建 Gateway
func New(verifier TokenVerifier, chats ChatStore, agents AgentConfigs, reg *registry.Registry, dispatcher Dispatcher) *Gateway {
	return &Gateway{
		verifier:   verifier,
		chats:      chats,
		agents:     agents,
		registry:   reg,
		dispatcher: dispatcher,
	}
}

// inboundFrame 客户端入站帧，兼容新旧两种字段命名
type inboundFrame struct {
	Type            string               `json:"type"`
	ChatID          string               `json:"chatId"`
	SessionID       string               `json:"session_id"`
	Text            string               `json:"text"`
	Message         string               `json:"message"`
	Name            string               `json:"name"`
	AgentID         string               `json:"agent_id"`
	ModelID         string               `json:"model_id"`
	CollectionNames []string             `json:"collection_names"`
	Images          []model.ImagePayload `json:"images"`
}

type ackData struct {
	ChatID string `json:"chatId"`
}

// session 单条连接的协议状态
type session struct {
	gw     *Gateway
	conn   Conn
	userID string

	chat    *model.Chat
	agentID string
	cfg     agent.Config
}

// HandleConnection 运行一条连接的完整生命周期
func (g *Gateway) HandleConnection(ctx context.Context, conn Conn, token string) {
	userID, err := g.verifier.Verify(token)
	if err != nil {
		logger.Warnf("gateway: authentication failed: %v", err)
		_ = conn.Close(ClosePolicyViolation, "authentication failed")
		return
	}

	s := &session{gw: g, conn: conn, userID: userID}
	defer s.cleanup()
	s.run(ctx)
}

// run 接收循环，单帧错误不终止连接
func (s *session) run(ctx context.Context) {
	for {
		payload, err := s.conn.Read()
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			logger.Warnf("gateway: dropping malformed frame from user %s: %v", s.userID, err)
			continue
		}

		switch frame.Type {
		case "ping":
			if err := s.conn.Send([]byte("pong")); err != nil {
				return
			}
		case "create_room":
			if !s.handleCreateRoom(ctx, &frame) {
				return
			}
		case "join_room":
			if !s.handleJoinRoom(ctx, &frame) {
				return
			}
		case "message":
			s.handleMessage(ctx, &frame)
		case "":
			if frame.SessionID != "" || frame.Message != "" {
				s.handleLegacy(ctx, &frame)
			}
		default:
			logger.Debugf("gateway: ignoring unknown frame type %q from user %s", frame.Type, s.userID)
		}
	}
}

// cleanup 断开时从注册表移除当前房间
func (s *session) cleanup() {
	if s.chat != nil {
		s.gw.registry.Disconnect(s.chat.ID, s.conn)
		s.chat = nil
	}
}

// switchRoom 切换当前房间并刷新生成配置
func (s *session) switchRoom(c *model.Chat) {
	if s.chat != nil && s.chat.ID != c.ID {
		s.gw.registry.Disconnect(s.chat.ID, s.conn)
	}
	s.chat = c
	s.agentID = c.AgentID
	s.cfg = agent.Config{
		ModelID:         c.ModelID,
		CollectionNames: c.CollectionNames,
		SystemPrompt:    c.SystemPrompt,
		Temperature:     c.Temperature,
		MaxTokens:       c.MaxTokens,
	}
	s.gw.registry.Connect(c.ID, s.conn)
}

func (s *session) send(frameType string, data interface{}) {
	frame := stream.Frame{Type: frameType, Data: data}
	if err := s.conn.Send(frame.Encode()); err != nil {
		logger.Warnf("gateway: failed to send %s frame to user %s: %v", frameType, s.userID, err)
	}
}

func (s *session) sendError(message string) {
	s.send("error", message)
}

// handleCreateRoom 创建房间，失败时发错误帧并关闭连接
func (s *session) handleCreateRoom(ctx context.Context, frame *inboundFrame) bool {
	agentID := frame.AgentID
	modelID := frame.ModelID

	var agentCfg *agent.Config
	if agentID != "" {
		cfg, err := s.gw.agents.GetConfig(ctx, agentID)
		if err != nil {
			s.sendError(fmt.Sprintf("failed to resolve agent: %v", err))
			_ = s.conn.Close(CloseInternalError, "agent lookup failed")
			return false
		}
		agentCfg = cfg
		if modelID == "" {
			modelID = cfg.ModelID
		}
	}

	c, err := s.gw.chats.CreateChat(ctx, s.userID, frame.Name, agentID, modelID)
	if err != nil {
		s.sendError("failed to create room")
		_ = s.conn.Close(CloseInternalError, "room creation failed")
		return false
	}

	s.switchRoom(c)
	if agentCfg != nil {
		s.cfg = *agentCfg
		s.agentID = agentID
	}
	s.send("room_created", ackData{ChatID: c.ID})
	return true
}

// handleJoinRoom 加入既有房间，校验 ID 形状与归属
func (s *session) handleJoinRoom(ctx context.Context, frame *inboundFrame) bool {
	if !chatIDPattern.MatchString(frame.ChatID) {
		s.sendError(errInvalidChatID)
		_ = s.conn.Close(CloseInvalidPayload, "invalid chat id")
		return false
	}

	c, err := s.gw.chats.GetOwnedChat(ctx, frame.ChatID, s.userID)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrNotOwner):
			s.sendError("not the owner of this room")
			_ = s.conn.Close(ClosePolicyViolation, "not room owner")
		case errors.Is(err, chat.ErrChatNotFound):
			s.sendError("room not found")
			_ = s.conn.Close(CloseInvalidPayload, "room not found")
		default:
			s.sendError("failed to join room")
			_ = s.conn.Close(CloseInternalError, "room lookup failed")
		}
		return false
	}

	s.switchRoom(c)
	s.send("room_joined", ackData{ChatID: c.ID})
	return true
}

// handleMessage 稳态消息帧：校验房间、落库、投递任务、回 accepted
func (s *session) handleMessage(ctx context.Context, frame *inboundFrame) {
	text := frame.Text
	if text == "" {
		text = frame.Message
	}
	if text == "" {
		s.sendError("message text is required")
		return
	}

	chatID := frame.ChatID
	if chatID == "" {
		chatID = frame.SessionID
	}
	if chatID == "" && s.chat != nil {
		chatID = s.chat.ID
	}
	if !chatIDPattern.MatchString(chatID) {
		s.sendError(errInvalidChatID)
		return
	}

	if s.chat == nil || s.chat.ID != chatID {
		c, err := s.gw.chats.GetOwnedChat(ctx, chatID, s.userID)
		if err != nil {
			s.sendError(errInvalidChatID)
			return
		}
		s.switchRoom(c)
	}

	if frame.AgentID != "" && frame.AgentID != s.agentID {
		cfg, err := s.gw.agents.GetConfig(ctx, frame.AgentID)
		if err != nil {
			s.sendError(fmt.Sprintf("failed to resolve agent: %v", err))
			return
		}
		s.cfg = *cfg
		s.agentID = frame.AgentID
	}

	s.submit(ctx, frame, text)
}

// handleLegacy 无 type 的旧格式帧：按需建房、注册、落库、投递
func (s *session) handleLegacy(ctx context.Context, frame *inboundFrame) {
	if !chatIDPattern.MatchString(frame.SessionID) {
		s.sendError(errInvalidChatID)
		return
	}

	if s.chat == nil || s.chat.ID != frame.SessionID {
		c, err := s.gw.chats.EnsureChat(ctx, frame.SessionID, s.userID)
		if err != nil {
			if errors.Is(err, chat.ErrNotOwner) {
				s.sendError("not the owner of this room")
				return
			}
			s.sendError("failed to prepare room")
			return
		}
		s.switchRoom(c)
	}

	s.submit(ctx, frame, frame.Message)
}

// submit 持久化用户消息并投递生成任务，注册先于投递
func (s *session) submit(ctx context.Context, frame *inboundFrame, text string) {
	modelID := s.cfg.ModelID
	if frame.ModelID != "" {
		modelID = frame.ModelID
	}
	collections := s.cfg.CollectionNames
	if len(frame.CollectionNames) > 0 {
		collections = frame.CollectionNames
	}

	userMsg := &model.ChatMessage{
		Role:       "user",
		Content:    text,
		Images:     frame.Images,
		IsComplete: true,
	}
	if err := s.gw.chats.AppendMessage(ctx, s.chat.ID, userMsg); err != nil {
		logger.Errorf("gateway: failed to persist user message for chat %s: %v", s.chat.ID, err)
		s.sendError("failed to save message")
		return
	}

	job := &queue.Job{
		SessionID:       s.chat.ID,
		UserID:          s.userID,
		Message:         text,
		ModelID:         modelID,
		CollectionNames: collections,
		Images:          frame.Images,
		SystemPrompt:    s.cfg.SystemPrompt,
		Temperature:     s.cfg.Temperature,
		MaxTokens:       s.cfg.MaxTokens,
		AgentID:         s.agentID,
	}
	if err := s.gw.dispatcher.Dispatch(ctx, job); err != nil {
		logger.Errorf("gateway: failed to dispatch job for chat %s: %v", s.chat.ID, err)
		s.sendError("failed to queue generation")
		return
	}

	s.send("accepted", ackData{ChatID: s.chat.ID})
}
