// Package app wires the CyberGuide components from a Config. The HTTP server,
// the index worker and the CLI all build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DerMichael0408/CyberGuide/internal/ai"
	"github.com/DerMichael0408/CyberGuide/internal/chat"
	"github.com/DerMichael0408/CyberGuide/internal/config"
	"github.com/DerMichael0408/CyberGuide/internal/db"
	"github.com/DerMichael0408/CyberGuide/internal/httpapi/handlers"
	"github.com/DerMichael0408/CyberGuide/internal/knowledge"
	"github.com/DerMichael0408/CyberGuide/internal/logger"
	"github.com/DerMichael0408/CyberGuide/internal/store/rabbitmq"
	"github.com/DerMichael0408/CyberGuide/internal/store/redisstore"
	"github.com/DerMichael0408/CyberGuide/internal/training"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const turnLockTTL = 2 * time.Minute

type App struct {
	Cfg config.Config
	Log *zap.Logger
	DB  *gorm.DB

	Registry  *ai.Registry
	Embedder  ai.Embedder
	Indexer   *knowledge.Indexer
	Retriever *knowledge.Retriever
	Jobs      *knowledge.JobRepo
	Runner    *knowledge.JobRunner

	Training *training.Service
	Expert   *chat.Service

	Redis  *redis.Client
	Rabbit *rabbitmq.Publisher
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg config.Config) (*zap.Logger, error) {
	return logger.New(logger.Options{
		Level:       cfg.LogLevel,
		File:        cfg.LogFile,
		MaxSizeMB:   cfg.LogMaxSizeMB,
		MaxBackups:  cfg.LogMaxBackups,
		MaxAgeDays:  cfg.LogMaxAgeDays,
		ConsoleJSON: cfg.LogConsoleJSON,
	})
}

// NewRegistry registers every chat provider and selects cfg.AIProvider as
// the default.
func NewRegistry(cfg config.Config) (*ai.Registry, error) {
	reg := ai.NewRegistry()

	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})

	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		if cfg.OpenRouterAPIKey == "" {
			return nil, errors.New("openrouter: OPENROUTER_API_KEY is not set")
		}
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})

	if err := reg.SetDefault(cfg.AIProvider); err != nil {
		return nil, err
	}
	return reg, nil
}

func NewEmbedder(cfg config.Config) (ai.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "", "ollama":
		return ai.NewOllamaEmbedder(cfg.OllamaBaseURL, cfg.EmbeddingModel), nil
	case "hash":
		return ai.NewHashEmbedder(0), nil
	default:
		return nil, fmt.Errorf("unsupported EMBEDDING_PROVIDER=%q", cfg.EmbeddingProvider)
	}
}

// New connects to the database, migrates it and builds every service.
// Redis and RabbitMQ are only dialed when cfg asks for them.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	log = logger.OrNop(log)

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	return Build(ctx, cfg, gdb, log)
}

// Build is New for a caller that already holds a *gorm.DB.
func Build(ctx context.Context, cfg config.Config, gdb *gorm.DB, log *zap.Logger) (*App, error) {
	log = logger.OrNop(log)

	if err := Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	reg, err := NewRegistry(cfg)
	if err != nil {
		return nil, err
	}
	embedder, err := NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Cfg: cfg, Log: log, DB: gdb, Registry: reg, Embedder: embedder}

	vs := knowledge.NewGormStore(gdb)
	splitter := knowledge.NewSplitter(
		knowledge.WithChunkSize(cfg.KnowledgeChunkSize),
		knowledge.WithOverlap(cfg.KnowledgeChunkOverlap),
	)
	a.Indexer = knowledge.NewIndexer(vs, embedder, splitter, log)
	a.Retriever = knowledge.NewRetriever(vs, embedder, cfg.RetrieverTopK, log)
	a.Jobs = knowledge.NewJobRepo(gdb)
	a.Runner = knowledge.NewJobRunner(a.Jobs, a.Indexer, log)

	catalog, err := training.LoadCatalog(cfg.ScenariosFile)
	if err != nil {
		return nil, err
	}
	locker, err := a.turnLocker(ctx)
	if err != nil {
		return nil, err
	}
	trainer, err := reg.Get(ctx, "", "")
	if err != nil {
		return nil, err
	}
	a.Training = training.NewService(catalog, training.NewRepo(gdb), trainer, locker, log)

	adapter := chat.NewAdapter(a.Retriever, nil, cfg.ExpertIncludeRankedContext, log)
	a.Expert = chat.NewService(chat.NewRepo(gdb), reg, adapter, cfg.ChatContextWindowSize, log)

	log.Info("app ready",
		zap.String("ai_provider", reg.DefaultName()),
		zap.String("embedding_provider", cfg.EmbeddingProvider),
		zap.String("turn_lock", cfg.TurnLockBackend),
		zap.Int("scenarios", len(catalog.List())),
	)
	return a, nil
}

func Migrate(gdb *gorm.DB) error {
	var models []any
	models = append(models, knowledge.Models()...)
	models = append(models, training.Models()...)
	models = append(models, chat.Models()...)
	return gdb.AutoMigrate(models...)
}

func (a *App) turnLocker(ctx context.Context) (training.Locker, error) {
	switch a.Cfg.TurnLockBackend {
	case "", "memory":
		return training.NewMemoryLocker(turnLockTTL), nil
	case "redis":
		rdb := redisstore.NewClient(a.Cfg.RedisAddr, a.Cfg.RedisPassword, a.Cfg.RedisDB)
		if err := redisstore.Ping(ctx, rdb); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.Redis = rdb
		return redisstore.NewTurnLocker(rdb, turnLockTTL), nil
	default:
		return nil, fmt.Errorf("unsupported TURN_LOCK_BACKEND=%q", a.Cfg.TurnLockBackend)
	}
}

// ConnectRabbit dials the broker for async index jobs. Failure is not fatal
// for the server: uploads then index inline.
func (a *App) ConnectRabbit() error {
	if a.Cfg.RabbitURL == "" {
		return nil
	}
	p, err := rabbitmq.NewPublisher(a.Cfg.RabbitURL, a.Cfg.RabbitQueue)
	if err != nil {
		return err
	}
	a.Rabbit = p
	return nil
}

func (a *App) Handler() *handlers.Handler {
	h := &handlers.Handler{
		Cfg:       a.Cfg,
		Training:  a.Training,
		Expert:    a.Expert,
		Indexer:   a.Indexer,
		Retriever: a.Retriever,
		Jobs:      a.Jobs,
		Log:       a.Log,
	}
	// keep the interface nil when there is no broker
	if a.Rabbit != nil {
		h.Rabbit = a.Rabbit
	}
	return h
}

func (a *App) Close() {
	if a.Rabbit != nil {
		_ = a.Rabbit.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = a.Log.Sync()
}
