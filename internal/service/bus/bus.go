// Package bus 提供跨进程的发布/订阅通道
// Worker 发布分块，网关进程的 Relay 订阅并分发到本地连接
package bus

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// 聊天通道前缀，发布端与订阅端必须一致
const channelPrefix = "chat:"

// Pattern 订阅所有聊天通道的通配模式
const Pattern = channelPrefix + "*"

// ChannelForChat 返回会话对应的通道名
func ChannelForChat(chatID string) string {
	return channelPrefix + chatID
}

// ChatFromChannel 从通道名还原会话 ID，是 ChannelForChat 的逆函数
func ChatFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, channelPrefix) {
		return "", false
	}
	chatID := strings.TrimPrefix(channel, channelPrefix)
	if chatID == "" {
		return "", false
	}
	return chatID, true
}

// Bus Redis 发布/订阅封装
type Bus struct {
	rdb *redis.Client
}

// New 创建 Bus
func New(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

// Publish 向会话通道发布负载
func (b *Bus) Publish(ctx context.Context, chatID string, payload []byte) error {
	return b.rdb.Publish(ctx, ChannelForChat(chatID), payload).Err()
}

// Subscribe 订阅所有聊天通道
func (b *Bus) Subscribe(ctx context.Context) *redis.PubSub {
	return b.rdb.PSubscribe(ctx, Pattern)
}
