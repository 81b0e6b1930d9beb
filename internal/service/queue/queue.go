// Package queue 提供生成任务的分发与消费
// 网关进程 LPUSH 任务后立即返回，Worker 进程 BRPOP 消费
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patipanbank/MFULearnAi/internal/model"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName 默认任务队列名
const DefaultQueueName = "chat_tasks"

// Job 生成任务，携带复现一次生成所需的全部参数
// 不引用发起连接，Worker 可在任意进程执行
type Job struct {
	SessionID       string               `json:"sessionId"`
	UserID          string               `json:"userId"`
	Message         string               `json:"message"`
	ModelID         string               `json:"modelId"`
	CollectionNames []string             `json:"collectionNames"`
	Images          []model.ImagePayload `json:"images,omitempty"`
	SystemPrompt    string               `json:"systemPrompt,omitempty"`
	Temperature     float64              `json:"temperature"`
	MaxTokens       int                  `json:"maxTokens"`
	AgentID         string               `json:"agentId,omitempty"`
}

// envelope 队列中的任务信封
type envelope struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Payload   *Job      `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

const taskTypeGenerate = "generate_response"

// Dispatcher 任务分发器，即发即忘
type Dispatcher struct {
	rdb       *redis.Client
	queueName string
}

// NewDispatcher 创建分发器
func NewDispatcher(rdb *redis.Client, queueName string) *Dispatcher {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &Dispatcher{rdb: rdb, queueName: queueName}
}

// Dispatch 提交任务，不返回任务句柄
func (d *Dispatcher) Dispatch(ctx context.Context, job *Job) error {
	env := envelope{
		ID:        fmt.Sprintf("task_%s", uuid.New().String()),
		Type:      taskTypeGenerate,
		Payload:   job,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := d.rdb.LPush(ctx, d.queueName, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Consumer 任务消费者
type Consumer struct {
	rdb       *redis.Client
	queueName string
}

// NewConsumer 创建消费者
func NewConsumer(rdb *redis.Client, queueName string) *Consumer {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &Consumer{rdb: rdb, queueName: queueName}
}

// ErrUnknownTask 未知的任务类型
var ErrUnknownTask = errors.New("unknown task type")

// Next 阻塞等待下一个任务，context 取消时返回其错误
func (c *Consumer) Next(ctx context.Context) (*Job, error) {
	for {
		result, err := c.rdb.BRPop(ctx, 5*time.Second, c.queueName).Result()
		if err == redis.Nil {
			// 超时无任务，继续等待
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to pop job: %w", err)
		}

		// BRPop 返回 [queueName, value]
		if len(result) != 2 {
			continue
		}
		return decodeEnvelope([]byte(result[1]))
	}
}

func decodeEnvelope(data []byte) (*Job, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if env.Type != taskTypeGenerate {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, env.Type)
	}
	if env.Payload == nil {
		return nil, errors.New("job envelope has no payload")
	}
	return env.Payload, nil
}
