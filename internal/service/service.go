// Package service 组装实时生成转播所需的全部服务
package service

import (
	"github.com/redis/go-redis/v9"

	"github.com/patipanbank/MFULearnAi/internal/config"
	"github.com/patipanbank/MFULearnAi/internal/repository"
	"github.com/patipanbank/MFULearnAi/internal/service/agent"
	"github.com/patipanbank/MFULearnAi/internal/service/bus"
	"github.com/patipanbank/MFULearnAi/internal/service/chat"
	"github.com/patipanbank/MFULearnAi/internal/service/gateway"
	"github.com/patipanbank/MFULearnAi/internal/service/queue"
	"github.com/patipanbank/MFULearnAi/internal/service/registry"
	"github.com/patipanbank/MFULearnAi/internal/service/relay"
)

// Services 服务集合
// 注册表与总线客户端在进程启动时显式构造并注入，不使用全局状态
type Services struct {
	Config *config.Config

	Chat       *chat.Service
	Agents     *agent.ConfigProvider
	Verifier   *gateway.JWTVerifier
	Registry   *registry.Registry
	Bus        *bus.Bus
	Relay      *relay.Relay
	Dispatcher *queue.Dispatcher
	Gateway    *gateway.Gateway
}

// NewServices 创建所有服务
func NewServices(repo *repository.Repositories, cfg *config.Config, redisClient *redis.Client) *Services {
	chatSvc := chat.NewService(repo.Chat)
	agents := agent.NewConfigProvider(repo.Agent)

	reg := registry.New()
	msgBus := bus.New(redisClient)
	busRelay := relay.New(msgBus, reg)
	dispatcher := queue.NewDispatcher(redisClient, cfg.Worker.QueueName)

	verifier := gateway.NewJWTVerifier(cfg.JWT.Secret)
	gw := gateway.New(verifier, chatSvc, agents, reg, dispatcher)

	return &Services{
		Config:     cfg,
		Chat:       chatSvc,
		Agents:     agents,
		Verifier:   verifier,
		Registry:   reg,
		Bus:        msgBus,
		Relay:      busRelay,
		Dispatcher: dispatcher,
		Gateway:    gw,
	}
}
