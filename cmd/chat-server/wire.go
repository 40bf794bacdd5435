package main

import (
	"context"
	"fmt"
	"time"

	"dibs-assistant/internal/chat"
	"dibs-assistant/internal/common/config"
	"dibs-assistant/internal/common/database"
	"dibs-assistant/internal/common/logger"
	"dibs-assistant/internal/common/observability"
	"dibs-assistant/internal/common/validation"
	"dibs-assistant/internal/conversation"
	"dibs-assistant/internal/crm/augment"
	"dibs-assistant/internal/crm/intent"
	"dibs-assistant/internal/crm/resolver"
	"dibs-assistant/internal/crm/store"

	"go.uber.org/zap"
)

const serviceName = "dibs-assistant"

type app struct {
	cfg *config.Config
	zap *zap.Logger
	log logger.Logger
	obs *observability.Observability

	pg    *database.PostgresClient
	redis *database.RedisClient
	es    *database.ElasticsearchClient

	validator     *validation.Validator
	clients       store.ClientStore
	extractor     *intent.Extractor
	resolver      *resolver.Resolver
	conversations *conversation.Service
	queue         *chat.Queue
	orchestrator  *chat.Orchestrator
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// retryWithBackoff attempts operation up to maxRetries times, doubling the
// delay after each failure.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}
		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// wireApp connects to the backing stores and assembles the chat pipeline.
// Redis and Elasticsearch are optional; Postgres is not.
func wireApp(ctx context.Context, cfg *config.Config, connectRetries int) (*app, error) {
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zapLog).With(map[string]interface{}{"service": serviceName})

	a := &app{cfg: cfg, zap: zapLog, log: log}
	a.obs = observability.New(serviceName, log)

	err := retryWithBackoff(func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		a.pg = pg
		return nil
	}, connectRetries, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	log.Info("PostgreSQL connected successfully", nil)

	backends := store.Backends{Primary: a.pg}

	if cfg.Database.Redis.Address != "" {
		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err == nil {
			err = rdb.Ping(ctx)
		}
		if err != nil {
			log.Warn("redis unavailable, client lookups are not cached", map[string]interface{}{"error": err.Error()})
		} else {
			a.redis = rdb
			backends.Cache = rdb.Client
			log.Info("Redis connected successfully", nil)
		}
	}

	if cfg.CRM.SearchBackend == config.SearchBackendElasticsearch {
		err := retryWithBackoff(func() error {
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			if err := es.Ping(ctx); err != nil {
				return err
			}
			a.es = es
			return nil
		}, connectRetries, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		backends.Search = a.es.Client
		log.Info("Elasticsearch connected successfully", nil)
	}

	a.validator, err = validation.NewValidator()
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	crmLog := logger.ForComponent(log, "crm", cfg.CRM.Debug)
	a.clients = store.Compose(cfg.CRM, backends, crmLog)
	a.extractor = intent.NewExtractor(crmLog)
	a.resolver = resolver.New(a.clients, crmLog)
	a.conversations = conversation.NewService(a.pg, logger.ForComponent(log, "conversation", false))

	generator, err := chat.NewOpenAIGenerator(cfg.LLM, nil)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	chatLog := logger.ForComponent(log, "chat", false)
	a.queue = chat.NewQueue(cfg.Chat.PersistenceWorkers, cfg.Chat.PersistenceQueue, nil, chatLog)
	a.orchestrator = chat.NewOrchestrator(chat.Deps{
		Extractor:     a.extractor,
		Resolver:      a.resolver,
		Augmenter:     augment.New(cfg.CRM.MaxRecordsShow, crmLog),
		Generator:     generator,
		Store:         a.conversations,
		Queue:         a.queue,
		Observability: a.obs,
	}, cfg.Chat, chatLog)

	return a, nil
}

// close drains the persistence queue and releases every connection.
func (a *app) close(ctx context.Context) {
	if a.queue != nil {
		drainCtx, cancel := context.WithTimeout(ctx, config.GetDuration(a.cfg.Chat.PersistenceDeadline))
		if err := a.queue.Close(drainCtx); err != nil {
			a.log.Warn("persistence queue not fully drained", map[string]interface{}{"error": err.Error()})
		}
		cancel()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if err := a.obs.Shutdown(ctx); err != nil {
		a.log.Warn("observability shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	_ = a.zap.Sync()
}
