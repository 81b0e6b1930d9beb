package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/patipanbank/MFULearnAi/internal/model"
	"github.com/patipanbank/MFULearnAi/internal/service/queue"
	"github.com/patipanbank/MFULearnAi/internal/service/stream"
	"github.com/patipanbank/MFULearnAi/pkg/logger"
)

// Generator 按任务产出流事件
type Generator interface {
	Generate(ctx context.Context, job *queue.Job) (<-chan stream.Event, error)
}

// Store 持久化生成完成的助手消息
type Store interface {
	AppendMessage(ctx context.Context, chatID string, msg *model.ChatMessage) error
}

// Publisher 向会话频道发布帧
type Publisher interface {
	Publish(ctx context.Context, chatID string, payload []byte) error
}

// Worker 消费生成任务并转播流式结果
type Worker struct {
	generator Generator
	store     Store
	publisher Publisher
}

// New 创建 Worker
func New(generator Generator, store Store, publisher Publisher) *Worker {
	return &Worker{
		generator: generator,
		store:     store,
		publisher: publisher,
	}
}

// publish 发布一帧，发布失败只记日志不中断生成
func (w *Worker) publish(ctx context.Context, chatID string, frame stream.Frame) {
	if err := w.publisher.Publish(ctx, chatID, frame.Encode()); err != nil {
		logger.Warnf("worker: failed to publish %s frame for chat %s: %v", frame.Type, chatID, err)
	}
}

// Process 执行单个生成任务
func (w *Worker) Process(ctx context.Context, job *queue.Job) error {
	if job.SessionID == "" {
		return fmt.Errorf("job missing session id")
	}

	logger.Debugf("worker: starting job for chat %s", job.SessionID)

	events, err := w.generator.Generate(ctx, job)
	if err != nil {
		w.publish(ctx, job.SessionID, stream.Frame{Type: string(stream.EventError), Data: err.Error()})
		return fmt.Errorf("failed to start generation for chat %s: %w", job.SessionID, err)
	}

	var buffer strings.Builder
	var usage stream.Usage
	errored := false

	for event := range events {
		switch event.Type {
		case stream.EventChunk:
			text := stream.NormalizeChunk(event.Data)
			buffer.WriteString(text)
			w.publish(ctx, job.SessionID, stream.Frame{Type: string(stream.EventChunk), Data: text})
		case stream.EventToolStart, stream.EventToolResult, stream.EventToolError:
			w.publish(ctx, job.SessionID, stream.Frame{Type: string(event.Type), Data: event.Data})
		case stream.EventEnd:
			if u, ok := event.Data.(stream.Usage); ok {
				usage = u
			}
		case stream.EventError:
			errored = true
			w.publish(ctx, job.SessionID, stream.Frame{Type: string(stream.EventError), Data: event.Data})
		default:
			logger.Warnf("worker: unknown event type %q for chat %s", event.Type, job.SessionID)
		}
		if errored {
			break
		}
	}

	if errored {
		return fmt.Errorf("generation failed for chat %s", job.SessionID)
	}

	msg := &model.ChatMessage{
		Role:       "assistant",
		Content:    buffer.String(),
		IsComplete: true,
	}
	if err := w.store.AppendMessage(ctx, job.SessionID, msg); err != nil {
		w.publish(ctx, job.SessionID, stream.Frame{Type: string(stream.EventError), Data: "failed to save response"})
		return fmt.Errorf("failed to persist message for chat %s: %w", job.SessionID, err)
	}

	w.publish(ctx, job.SessionID, stream.Frame{Type: string(stream.EventEnd), Data: usage})
	logger.Infof("worker: completed job for chat %s (%d output tokens)", job.SessionID, usage.OutputTokens)
	return nil
}

// Consumer 从队列取出下一个任务
type Consumer interface {
	Next(ctx context.Context) (*queue.Job, error)
}

// Pool 并发消费任务的协程池
type Pool struct {
	worker      *Worker
	concurrency int
}

// NewPool 创建协程池
func NewPool(worker *Worker, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{worker: worker, concurrency: concurrency}
}

// Run 阻塞消费任务直到 ctx 取消
func (p *Pool) Run(ctx context.Context, consumer Consumer) {
	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				job, err := consumer.Next(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Errorf("worker %d: failed to fetch task: %v", id, err)
					continue
				}
				if err := p.worker.Process(ctx, job); err != nil {
					logger.Errorf("worker %d: task failed: %v", id, err)
				}
			}
		}(i)
	}
	wg.Wait()
}
