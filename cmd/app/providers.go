package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/zephyre/internal/domain/analysis"
	"github.com/yanqian/zephyre/internal/domain/session"
	"github.com/yanqian/zephyre/internal/domain/skincare"
	"github.com/yanqian/zephyre/internal/domain/weather"
	"github.com/yanqian/zephyre/internal/infra/capturestore"
	"github.com/yanqian/zephyre/internal/infra/config"
	"github.com/yanqian/zephyre/internal/infra/jobqueue"
	"github.com/yanqian/zephyre/internal/infra/sessionstore"
	"github.com/yanqian/zephyre/internal/infra/weathercache"
	"github.com/yanqian/zephyre/internal/infra/weatherdir"
	"github.com/yanqian/zephyre/pkg/util"
)

// provideValkeyClient returns nil when valkey is disabled or unreachable so callers fall back to memory.
func provideValkeyClient(cfg *config.Config, logger *slog.Logger) (valkey.Client, func()) {
	noop := func() {}
	if !cfg.Valkey.Enabled {
		logger.Info("valkey disabled, using in-process stores")
		return nil, noop
	}
	opt, err := buildValkeyOptions(cfg)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory stores", "error", err)
		return nil, noop
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory stores", "error", err)
		return nil, noop
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory stores", "error", err)
		client.Close()
		return nil, noop
	}
	logger.Info("valkey enabled", "addr", cfg.Valkey.Addr)
	return client, client.Close
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	if strings.Contains(cfg.Valkey.Addr, "://") {
		return valkey.ParseURL(cfg.Valkey.Addr)
	}
	return valkey.ClientOption{InitAddress: []string{cfg.Valkey.Addr}}, nil
}

func valkeyKey(cfg *config.Config, name string) string {
	if cfg.Valkey.Prefix == "" {
		return name
	}
	return cfg.Valkey.Prefix + ":" + name
}

func provideWeatherDirectory(cfg *config.Config, logger *slog.Logger) (weather.Directory, func()) {
	fallback := weatherdir.NewMemoryDirectory()
	noop := func() {}
	dsn := strings.TrimSpace(cfg.Weather.Postgres.DSN)
	if dsn == "" {
		logger.Info("weather postgres dsn not set, using built-in directory")
		return fallback, noop
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using built-in directory", "error", err)
		return fallback, noop
	}
	if cfg.Weather.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Weather.Postgres.MaxConns
	}
	if cfg.Weather.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Weather.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using built-in directory", "error", err)
		return fallback, noop
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using built-in directory", "error", err)
		pool.Close()
		return fallback, noop
	}
	directory := weatherdir.NewPostgresDirectory(pool)
	if err := directory.EnsureSchema(ctx); err != nil {
		logger.Error("weather schema setup failed, using built-in directory", "error", err)
		pool.Close()
		return fallback, noop
	}
	logger.Info("weather postgres directory enabled")
	return directory, pool.Close
}

func provideWeatherCache(cfg *config.Config, client valkey.Client) weather.Cache {
	if client == nil {
		return weathercache.NewMemoryCache()
	}
	return weathercache.NewValkeyCache(client, valkeyKey(cfg, "weather"))
}

func provideWeatherService(cfg *config.Config, directory weather.Directory, cache weather.Cache, logger *slog.Logger) weather.Service {
	return weather.NewService(weather.Config{
		Latency:      cfg.Weather.Latency,
		CacheTTL:     cfg.Weather.CacheTTL,
		PopularLimit: cfg.Weather.PopularLimit,
	}, directory, cache, util.NewLockedRand(seedOrNow(cfg.Weather.Seed)), logger)
}

func provideImageStore(cfg *config.Config, logger *slog.Logger) analysis.ImageStore {
	storage := cfg.Analysis.Storage
	if !strings.EqualFold(strings.TrimSpace(storage.Driver), "s3") {
		return capturestore.NewMemoryStore()
	}
	store, err := capturestore.NewS3Store(capturestore.S3Options{
		Endpoint:  storage.Endpoint,
		AccessKey: storage.AccessKey,
		SecretKey: storage.SecretKey,
		Bucket:    storage.Bucket,
		Region:    storage.Region,
	}, logger)
	if err != nil {
		logger.Error("failed to create object storage client, using memory store", "error", err)
		return capturestore.NewMemoryStore()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ctx); err != nil {
		logger.Error("capture bucket unavailable, using memory store", "bucket", storage.Bucket, "error", err)
		return capturestore.NewMemoryStore()
	}
	logger.Info("object storage capture store enabled", "bucket", storage.Bucket)
	return store
}

func provideAnalysisService(cfg *config.Config, images analysis.ImageStore, logger *slog.Logger) analysis.Service {
	return analysis.NewService(analysis.Config{
		Latency:       cfg.Analysis.Latency,
		MaxImageBytes: cfg.HTTP.MaxUploadBytes,
	}, images, util.NewLockedRand(seedOrNow(cfg.Analysis.Seed)), logger)
}

func provideSkincareEngine(cfg *config.Config) *skincare.Engine {
	if !cfg.Recommendation.RandomizeTips {
		return skincare.NewEngine()
	}
	return skincare.NewEngine(skincare.WithRandomTips(util.NewLockedRand(seedOrNow(cfg.Recommendation.Seed))))
}

func provideSessionStore(cfg *config.Config, client valkey.Client) session.Store {
	if client == nil {
		return sessionstore.NewMemoryStore()
	}
	return sessionstore.NewValkeyStore(client, valkeyKey(cfg, "session"))
}

func provideSessionLocker(cfg *config.Config, client valkey.Client, logger *slog.Logger) session.Locker {
	if client == nil {
		return sessionstore.NewMemoryLocker()
	}
	return sessionstore.NewValkeyLocker(client, valkeyKey(cfg, "lock"), logger)
}

func provideJobQueue(cfg *config.Config, client valkey.Client, logger *slog.Logger) (jobqueue.HandlerQueue, func()) {
	var queue jobqueue.HandlerQueue
	if client == nil {
		queue = jobqueue.NewImmediateQueue()
	} else {
		queue = jobqueue.NewValkeyQueue(client, valkeyKey(cfg, "jobs"), logger)
	}
	return queue, queue.Close
}

func provideSessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		TTL:          cfg.Session.TTL,
		LockTTL:      cfg.Session.LockTTL,
		LockTimeout:  cfg.Session.LockTimeout,
		AsyncCapture: cfg.Session.AsyncCapture,
	}
}

// provideSessionService attaches the session service as the consumer of its own job queue.
func provideSessionService(sessionCfg session.Config, store session.Store, locker session.Locker, weatherSvc weather.Service, analysisSvc analysis.Service, plans session.PlanGenerator, queue jobqueue.HandlerQueue, logger *slog.Logger) session.Service {
	svc := session.NewService(sessionCfg, store, locker, weatherSvc, analysisSvc, plans, queue, logger)
	queue.SetHandler(svc.HandleJob)
	return svc
}

func seedOrNow(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return time.Now().UnixNano()
}
