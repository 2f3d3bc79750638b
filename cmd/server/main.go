package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/shplep/homecontentslistpro-sub000/internal/config"
	"github.com/shplep/homecontentslistpro-sub000/internal/core"
	"github.com/shplep/homecontentslistpro-sub000/internal/events"
	"github.com/shplep/homecontentslistpro-sub000/internal/logging"
	"github.com/shplep/homecontentslistpro-sub000/internal/metrics"
	"github.com/shplep/homecontentslistpro-sub000/internal/ratelimit"
	"github.com/shplep/homecontentslistpro-sub000/internal/session"
	"github.com/shplep/homecontentslistpro-sub000/internal/store"
	"github.com/shplep/homecontentslistpro-sub000/internal/web"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func main() {
	// Overload lets a local .env win over the shell environment.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"redis_enabled", cfg.Redis.Enabled,
		"kafka_enabled", cfg.Kafka.Enabled,
		"max_concurrent_commits", cfg.Import.MaxConcurrentCommits,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	db, err := store.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	normalizer, err := store.NewNormalizer(cfg)
	if err != nil {
		slog.Error("invalid column aliases", "error", err)
		os.Exit(1)
	}

	// Background jobs stop when jobCtx is cancelled.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	var (
		rdb      *redis.Client
		sessions session.Store
		locker   session.Locker
	)
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		sessions = session.NewRedisStore(rdb, cfg.Redis.Prefix)
		if cfg.Import.OwnerLock {
			locker = session.NewRedisLocker(rdb, cfg.Redis.Prefix)
		}
		slog.Info("connected to redis", "addr", cfg.Redis.Addr)
	} else {
		mem := session.NewMemoryStore()
		go mem.RunSweeper(jobCtx, cfg.Import.SweepInterval)
		sessions = mem
		if cfg.Import.OwnerLock {
			locker = session.NewMemoryLocker()
		}
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Kafka.Enabled {
		kp, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
		if err != nil {
			slog.Error("failed to create kafka publisher", "error", err)
			os.Exit(1)
		}
		publisher = kp
		slog.Info("publishing import events", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	limiter := core.NewCommitLimiter(cfg.Import.MaxConcurrentCommits, cfg.Import.MaxWaitTime)

	service, err := core.NewService(core.Deps{
		Store:      db.Store,
		Normalizer: normalizer,
		Sessions:   sessions,
		Locker:     locker,
		Limiter:    limiter,
		Publisher:  publisher,
		Metrics:    m,
		Audit:      core.NewAuditLog(slog.Default(), 1000),
		Logger:     slog.Default(),
	}, core.Config{
		PreviewTTL:    cfg.Import.PreviewTTL,
		CommitTimeout: cfg.Import.CommitTimeout,
		LockTTL:       cfg.Import.LockTTL,
		MaxRows:       cfg.Import.MaxRows,
		MaxFileSize:   cfg.Import.MaxFileSize,
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	deps := web.Deps{Service: service, Metrics: m}
	if db.Ping != nil {
		deps.Store = pingFunc(db.Ping)
	}
	if cfg.Rate.Enabled {
		deps.GlobalLimiter = newLimiter(jobCtx, rdb, cfg.Redis.Prefix+"global:", int64(cfg.Rate.RequestsPerMinute))
		if cfg.Rate.ImportLimit > 0 {
			deps.ImportLimiter = newLimiter(jobCtx, rdb, cfg.Redis.Prefix+"imports:", int64(cfg.Rate.ImportLimit))
		}
	}

	server, err := web.NewServer(cfg, deps)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Commits keep running after their request has been answered.
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for commits to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("commits did not complete in time", "error", err)
			} else {
				slog.Info("all commits completed")
			}
		}
	}()

	if err := server.Start(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("server stopped")
}

// newLimiter counts per minute in Redis when it is available so limits
// hold across instances, otherwise in process.
func newLimiter(ctx context.Context, rdb *redis.Client, prefix string, perMinute int64) ratelimit.Limiter {
	if rdb != nil {
		return ratelimit.NewRedis(rdb, prefix, perMinute, time.Minute)
	}
	mem := ratelimit.NewMemory(perMinute, time.Minute)
	go mem.RunCleanup(ctx)
	return mem
}
