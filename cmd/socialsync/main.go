package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/amitsajwan/AgenticAiProperties/internal/adapter/cache"
	"github.com/amitsajwan/AgenticAiProperties/internal/adapter/graph"
	"github.com/amitsajwan/AgenticAiProperties/internal/config"
	httptransport "github.com/amitsajwan/AgenticAiProperties/internal/http"
	"github.com/amitsajwan/AgenticAiProperties/internal/http/handler"
	"github.com/amitsajwan/AgenticAiProperties/internal/metrics"
	apimiddleware "github.com/amitsajwan/AgenticAiProperties/internal/middleware"
	"github.com/amitsajwan/AgenticAiProperties/internal/repository"
	"github.com/amitsajwan/AgenticAiProperties/internal/server"
	"github.com/amitsajwan/AgenticAiProperties/internal/service"
	"github.com/amitsajwan/AgenticAiProperties/internal/telemetry"
	"github.com/amitsajwan/AgenticAiProperties/internal/webhook"
	"github.com/amitsajwan/AgenticAiProperties/internal/worker"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newMongoCollection,
			newAgentRepository,
			newRedisClient,
			newDeliveryCache,
			newGraphClient,
			newMetrics,
			newVerifier,
			newRateLimiter,
			newTokenService,
			newSyncService,
			newPool,
			newScheduler,
			newWebhookHandler,
			handler.NewAgentHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startPool, startScheduler, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

func newMongoCollection(lc fx.Lifecycle, cfg config.Config) (*mongo.Collection, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})

	return client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection), nil
}

func newAgentRepository(collection *mongo.Collection) repository.AgentRepository {
	return repository.NewMongoAgentRepo(collection)
}

// newRedisClient returns nil when REDIS_ADDR is unset; delivery
// deduplication is advisory and the service runs without it.
func newRedisClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (redis.UniversalClient, error) {
	if cfg.RedisAddr == "" {
		logger.Info("redis disabled, delivery dedupe off")
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newDeliveryCache(client redis.UniversalClient) repository.DeliveryCache {
	if client == nil {
		return nil
	}
	return cacheadapter.NewRedisDeliveryCache(client)
}

func newGraphClient(cfg config.Config) graph.Client {
	return graph.NewHTTPClient(graph.Config{
		BaseURL:    cfg.FBGraphBaseURL,
		APIVersion: cfg.FBAPIVersion,
		AppID:      cfg.FBAppID,
		AppSecret:  cfg.FBAppSecret,
	}, nil)
}

func newMetrics() *metrics.Metrics {
	return metrics.New()
}

func newVerifier(cfg config.Config) *webhook.Verifier {
	return webhook.NewVerifier(cfg.FBAppSecret)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newTokenService(repo repository.AgentRepository, graphClient graph.Client, cfg config.Config, logger *zap.Logger, m *metrics.Metrics) *service.TokenService {
	return service.NewTokenService(repo, graphClient, cfg.TokenExpiryMargin, logger, m)
}

func newSyncService(repo repository.AgentRepository, tokens *service.TokenService, graphClient graph.Client, dedupe repository.DeliveryCache, logger *zap.Logger, m *metrics.Metrics) *service.SyncService {
	return service.NewSyncService(repo, tokens, graphClient, dedupe, logger, m)
}

func newPool(cfg config.Config, logger *zap.Logger, m *metrics.Metrics) *worker.Pool {
	return worker.NewPool(cfg.WorkerCount, cfg.QueueSize, cfg.TaskTimeout, logger, m)
}

func newScheduler(repo repository.AgentRepository, tokens *service.TokenService, syncService *service.SyncService, cfg config.Config, logger *zap.Logger) *worker.Scheduler {
	return worker.NewScheduler(repo, tokens, syncService, cfg.SyncInterval, cfg.TokenRefreshWin, logger)
}

func newWebhookHandler(verifier *webhook.Verifier, cfg config.Config, syncService *service.SyncService, pool *worker.Pool, node *snowflake.Node, logger *zap.Logger, m *metrics.Metrics) *handler.WebhookHandler {
	return handler.NewWebhookHandler(verifier, cfg.FBVerifyToken, syncService, pool, node, logger, m)
}

func startPool(lc fx.Lifecycle, pool *worker.Pool) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			pool.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return pool.Shutdown(ctx)
		},
	})
}

func startScheduler(lc fx.Lifecycle, sched *worker.Scheduler, logger *zap.Logger) {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				sched.Run(runCtx)
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
