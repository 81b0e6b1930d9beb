package agent

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/patipanbank/MFULearnAi/internal/config"
	"github.com/patipanbank/MFULearnAi/internal/model"
	"github.com/patipanbank/MFULearnAi/internal/service/queue"
	"github.com/patipanbank/MFULearnAi/internal/service/stream"
	"github.com/patipanbank/MFULearnAi/pkg/logger"
)

// HistoryLoader 加载会话历史消息
type HistoryLoader interface {
	RecentMessages(ctx context.Context, chatID string, limit int) ([]*model.ChatMessage, error)
}

// Generator 基于 eino ChatModel 的流式生成器
type Generator struct {
	cfg         *config.Config
	history     HistoryLoader
	historySize int
}

// NewGenerator 创建生成器
func NewGenerator(cfg *config.Config, history HistoryLoader) *Generator {
	historySize := cfg.Worker.HistorySize
	if historySize <= 0 {
		historySize = 10
	}
	return &Generator{
		cfg:         cfg,
		history:     history,
		historySize: historySize,
	}
}

// newChatModel 按任务参数创建 ChatModel
func (g *Generator) newChatModel(ctx context.Context, job *queue.Job) (einomodel.BaseChatModel, error) {
	aiCfg := g.cfg.AI

	if aiCfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for provider: %s", aiCfg.Provider)
	}

	modelName := job.ModelID
	if modelName == "" {
		modelName = aiCfg.OpenAI.Model
	}
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}

	temperature := float32(job.Temperature)
	maxTokens := job.MaxTokens

	chatModelCfg := &openai.ChatModelConfig{
		APIKey:      aiCfg.OpenAI.APIKey,
		BaseURL:     aiCfg.OpenAI.BaseURL,
		Model:       modelName,
		Temperature: &temperature,
	}
	if maxTokens > 0 {
		chatModelCfg.MaxTokens = &maxTokens
	}

	return openai.NewChatModel(ctx, chatModelCfg)
}

// buildMessages 构建输入消息：系统提示词 + 最近历史 + 本轮用户消息
func (g *Generator) buildMessages(ctx context.Context, job *queue.Job) []*schema.Message {
	messages := make([]*schema.Message, 0, g.historySize+2)

	if job.SystemPrompt != "" {
		messages = append(messages, schema.SystemMessage(job.SystemPrompt))
	}

	if g.history != nil {
		recent, err := g.history.RecentMessages(ctx, job.SessionID, g.historySize)
		if err != nil {
			logger.Warnf("generator: failed to load history for chat %s: %v", job.SessionID, err)
		}
		for _, msg := range recent {
			// 本轮用户消息已经持久化，避免重复加入
			if msg.Role == "user" && msg.Content == job.Message {
				continue
			}
			if msg.Role == "assistant" {
				messages = append(messages, schema.AssistantMessage(msg.Content, nil))
			} else {
				messages = append(messages, schema.UserMessage(msg.Content))
			}
		}
	}

	userMsg := schema.UserMessage(job.Message)
	if len(job.Images) > 0 {
		parts := []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: job.Message},
		}
		for _, img := range job.Images {
			parts = append(parts, schema.ChatMessagePart{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", img.MediaType, img.Data),
				},
			})
		}
		userMsg = &schema.Message{Role: schema.User, MultiContent: parts}
	}
	messages = append(messages, userMsg)

	return messages
}

// Generate 驱动模型产出单遍消费的流事件序列
func (g *Generator) Generate(ctx context.Context, job *queue.Job) (<-chan stream.Event, error) {
	chatModel, err := g.newChatModel(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	messages := g.buildMessages(ctx, job)

	reader, err := chatModel.Stream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to start stream: %w", err)
	}

	outCh := make(chan stream.Event, 10)

	go func() {
		defer close(outCh)
		defer reader.Close()

		var usage stream.Usage
		for {
			chunk, err := reader.Recv()
			if err == io.EOF {
				outCh <- stream.Event{Type: stream.EventEnd, Data: usage}
				return
			}
			if err != nil {
				outCh <- stream.Event{Type: stream.EventError, Data: err.Error()}
				return
			}

			if chunk.ResponseMeta != nil && chunk.ResponseMeta.Usage != nil {
				usage.InputTokens = chunk.ResponseMeta.Usage.PromptTokens
				usage.OutputTokens = chunk.ResponseMeta.Usage.CompletionTokens
			}

			if chunk.Content != "" {
				outCh <- stream.Event{Type: stream.EventChunk, Data: chunk.Content}
			}
		}
	}()

	return outCh, nil
}
