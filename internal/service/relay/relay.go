// Package relay 将总线上的生成事件转发到本进程的活跃连接
package relay

import (
	"context"

	"github.com/patipanbank/MFULearnAi/internal/service/bus"
	"github.com/patipanbank/MFULearnAi/internal/service/registry"
	"github.com/patipanbank/MFULearnAi/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Relay 总线中继
// 每个网关进程在启动时订阅一次通配模式；
// 没有本地连接的会话消息静默跳过（水平扩容下属正常现象）
type Relay struct {
	bus      *bus.Bus
	registry *registry.Registry
	pubsub   *redis.PubSub
	done     chan struct{}
}

// New 创建中继
func New(b *bus.Bus, r *registry.Registry) *Relay {
	return &Relay{
		bus:      b,
		registry: r,
		done:     make(chan struct{}),
	}
}

// Start 订阅总线并开始转发
func (r *Relay) Start(ctx context.Context) error {
	r.pubsub = r.bus.Subscribe(ctx)

	// 等待订阅确认，保证返回后不会丢消息
	if _, err := r.pubsub.Receive(ctx); err != nil {
		return err
	}

	logger.Infof("relay: subscribed to %s", bus.Pattern)
	go r.loop()
	return nil
}

func (r *Relay) loop() {
	defer close(r.done)
	for msg := range r.pubsub.Channel() {
		r.handleMessage(msg.Channel, []byte(msg.Payload))
	}
}

// handleMessage 将单条总线消息转发到对应会话的本地连接
// 负载已经是网关可直接下发的 JSON 字符串，不做解析
func (r *Relay) handleMessage(channel string, payload []byte) {
	chatID, ok := bus.ChatFromChannel(channel)
	if !ok {
		logger.Debugf("relay: ignoring message on foreign channel %s", channel)
		return
	}
	r.registry.Broadcast(chatID, payload)
}

// Stop 停止转发并关闭订阅
func (r *Relay) Stop() {
	if r.pubsub == nil {
		return
	}
	if err := r.pubsub.Close(); err != nil {
		logger.Warnf("relay: failed to close subscription: %v", err)
	}
	<-r.done
}
