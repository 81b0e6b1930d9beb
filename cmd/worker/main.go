package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/patipanbank/MFULearnAi/internal/config"
	"github.com/patipanbank/MFULearnAi/internal/database"
	"github.com/patipanbank/MFULearnAi/internal/repository"
	"github.com/patipanbank/MFULearnAi/internal/service/agent"
	"github.com/patipanbank/MFULearnAi/internal/service/bus"
	"github.com/patipanbank/MFULearnAi/internal/service/chat"
	"github.com/patipanbank/MFULearnAi/internal/service/queue"
	"github.com/patipanbank/MFULearnAi/internal/service/worker"
	"github.com/patipanbank/MFULearnAi/pkg/logger"
)

func main() {
	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	// 初始化数据库
	db, err := database.New(cfg)
	if err != nil {
		logger.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	// 初始化 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// 组装 Worker 管线：队列消费 → 生成 → 总线发布 → 落库
	repos := repository.NewRepositories(db.DB)
	chatSvc := chat.NewService(repos.Chat)
	generator := agent.NewGenerator(cfg, chatSvc)
	msgBus := bus.New(redisClient)
	consumer := queue.NewConsumer(redisClient, cfg.Worker.QueueName)

	w := worker.New(generator, chatSvc, msgBus)
	pool := worker.NewPool(w, cfg.Worker.Concurrency)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Infof("Shutting down worker...")
		cancel()
	}()

	logger.Infof("Worker starting with %d slots on queue %s", cfg.Worker.Concurrency, cfg.Worker.QueueName)
	pool.Run(ctx, consumer)

	logger.Infof("Worker exited")
}
