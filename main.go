package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"turnitinbot/internal/api"
	"turnitinbot/internal/config"
	"turnitinbot/internal/flow"
	"turnitinbot/internal/intake"
	"turnitinbot/internal/logger"
	"turnitinbot/internal/redis"
	"turnitinbot/internal/storage"
	"turnitinbot/internal/telegram"
	"turnitinbot/internal/turnitin"
	"turnitinbot/internal/wordcount"
	"turnitinbot/internal/worker"
)

const resultFilePath = "response.pdf"

func main() {
	// Local development keeps credentials in .env; absence is fine.
	_ = godotenv.Load()

	cfgPath := os.Getenv("TURNITINBOT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logMode := os.Getenv("TURNITINBOT_LOG")
	if logMode == "" {
		logMode = "prod"
	}
	zlog, err := logger.New(logMode)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zlog.Sync()

	dbType := os.Getenv("TURNITINBOT_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		zlog.Fatal("open database", "db_type", dbType, "error", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		zlog.Fatal("migrate database", "error", err)
	}

	docs, err := storage.NewDocumentStore(db, cfg.BasicConfig.UploadDir)
	if err != nil {
		zlog.Fatal("init document store", "error", err)
	}
	subs := storage.NewSubmissionStore(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionTTL := time.Duration(cfg.BasicConfig.SessionTTL) * time.Minute
	if sessionTTL <= 0 {
		sessionTTL = flow.DefaultSessionTTL
	}

	// Redis is optional: with it, conversation state and submission status
	// survive restarts; without it, in-memory state with a janitor.
	var rdb *redis.Client
	var flows *flow.Tracker
	if cfg.Redis.Host != "" {
		rdb, err = redis.NewClient(cfg)
		if err != nil {
			zlog.Fatal("create redis client", "error", err)
		}
		defer rdb.Close()
		sessions, err := flow.NewRedisStore(rdb, sessionTTL)
		if err != nil {
			zlog.Fatal("init session store", "error", err)
		}
		flows = flow.NewTracker(sessions)
	} else {
		sessions := flow.NewMemoryStore(sessionTTL, cfg.BasicConfig.SessionCapacity)
		sessions.StartJanitor(ctx, 0)
		flows = flow.NewTracker(sessions)
	}

	counter := wordcount.New()

	checker, err := turnitin.NewClient(cfg.Turnitin.BaseURL, cfg.Turnitin.APIKey,
		turnitin.WithPollInterval(time.Duration(cfg.Turnitin.PollInterval)*time.Second),
		turnitin.WithMaxAttempts(cfg.Turnitin.MaxAttempts),
	)
	if err != nil {
		zlog.Fatal("init turnitin client", "error", err)
	}
	cache := worker.NewStatusCache(rdb)
	manager := worker.NewManager(checker, subs, cache, nil, 0, zlog)
	checks := worker.NewDispatcher(worker.DispatcherConfig{
		MinWorkers:        cfg.BasicConfig.MinWorkers,
		MaxWorkers:        cfg.BasicConfig.MaxWorkers,
		QueueSize:         cfg.BasicConfig.QueueSize,
		WorkerIdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
	}, manager)

	service := intake.NewService(flows, docs, counter, checks, resultFilePath, zlog)

	bot, err := telegram.NewBot(cfg.BotToken, service, zlog)
	if err != nil {
		zlog.Fatal("init telegram bot", "error", err)
	}
	manager.SetReplier(bot)

	router := gin.Default()
	api.NewHandler(docs, subs, cache).RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	go func() {
		if err := router.Run(addr); err != nil {
			zlog.Fatal("http server stopped", "error", err)
		}
	}()

	zlog.Info("starting", "addr", addr, "db_type", dbType)
	bot.Start()
}
