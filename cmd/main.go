package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"memoji/internal/api"
	"memoji/internal/bot"
	"memoji/internal/config"
	"memoji/internal/db"
	"memoji/internal/events"
	"memoji/internal/gateway"
	"memoji/internal/models"
	"memoji/internal/policy"
	"memoji/internal/services"
	"memoji/internal/storage"
	"memoji/internal/tasks"
	"memoji/internal/utils/logger"
)

func main() {
	logger := logger.New("memoji")

	// check if .env file exists
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		logger.Info("No .env file found, skipping environment variable loading")
	} else {
		logger.Info("Loading environment variables from .env file")
		if err := godotenv.Load(); err != nil {
			log.Fatalf("Failed to load environment variables: %v", err)
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := db.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("Failed to close database connection: %v", err)
		}
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Policy rules live in a JSON file next to the process; the
	// manager loads them once and keeps them in memory.
	policies, err := policy.NewManager(policy.NewStore(cfg.Policy.RuleFile))
	if err != nil {
		logger.Fatal("Failed to load policy rules", err)
	}

	store, err := storage.NewProvider(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize storage provider", err)
	}

	gatewayClient := gateway.NewClient(cfg.Gateway.APIBase, cfg.Gateway.AccessToken)
	adminCache := gateway.NewAdminCache(rdb, gatewayClient)

	taskClient := tasks.NewTaskClient(cfg.Redis.Addr, cfg.Redis.Username, cfg.Redis.Password, cfg.Redis.DB)
	defer taskClient.Close()

	repo := services.NewEmojiRepository(db.GetDB())
	emojiService := services.NewEmojiService(repo, store, policies, taskClient)

	events.On(events.EmojiRemoved, func(data interface{}) {
		emoji, ok := data.(*models.Emoji)
		if !ok {
			return
		}
		logger.Info("Emoji %s (%s) removed from scope %s", emoji.Name, emoji.ID, emoji.Scope)
	})

	contexts := bot.NewContextBuilder(cfg.Bot, adminCache)
	chatBot := bot.New(emojiService, policies, gatewayClient, contexts)

	// Initialize task server
	taskHandler := tasks.NewTaskHandler(emojiService)
	taskServer := tasks.NewServer(
		cfg.Redis.Addr,
		cfg.Redis.Username,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Worker.Concurrency,
		taskHandler,
		logger,
	)
	go func() {
		if err := taskServer.Start(); err != nil {
			logger.Error("Task server error", err)
		}
	}()

	// Initialize task scheduler
	taskScheduler := tasks.NewScheduler(
		cfg.Redis.Addr,
		cfg.Redis.Username,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Worker.CleanupCron,
		logger,
	)
	go func() {
		if err := taskScheduler.Start(); err != nil {
			logger.Error("Task scheduler error", err)
		}
	}()

	// Initialize API server
	apiServer := api.NewServer(cfg, chatBot, policies, repo)
	go func() {
		logger.Success("API server started on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := apiServer.Start(); err != nil {
			logger.Error("API server error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the servers
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	taskScheduler.Stop()
	taskServer.Shutdown()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown API server", err)
	}

	logger.Info("Servers shutdown gracefully")
}
