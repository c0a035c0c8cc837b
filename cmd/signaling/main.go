package main

import (
	"context"
	"expvar"
	"log"
	"runtime"

	"github.com/hilthontt/rendezvous/internal/domain"
	"github.com/hilthontt/rendezvous/internal/infrastructure/configs"
	"github.com/hilthontt/rendezvous/internal/infrastructure/events"
	"github.com/hilthontt/rendezvous/internal/infrastructure/logging"
	"github.com/hilthontt/rendezvous/internal/infrastructure/messaging"
	"github.com/hilthontt/rendezvous/internal/infrastructure/metrics"
	"github.com/hilthontt/rendezvous/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/rendezvous/internal/infrastructure/tracing"
	"github.com/hilthontt/rendezvous/internal/infrastructure/ws"
	"github.com/hilthontt/rendezvous/internal/persistence/db"
	"github.com/hilthontt/rendezvous/internal/persistence/repository"
	"github.com/hilthontt/rendezvous/internal/presentation/api"
	"github.com/hilthontt/rendezvous/internal/presentation/handler/health"
	"github.com/hilthontt/rendezvous/internal/presentation/handler/rooms"
	"github.com/hilthontt/rendezvous/internal/presentation/handler/rtc"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Logger,
	})

	sh, err := tracing.InitTracer(tracing.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to initialize the tracer", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sh(ctx)

	m := metrics.NewWithRuntime()
	var checks []health.Check

	var redisClient *redis.Client
	if cfg.RateLimiter.Enabled && cfg.RateLimiter.Store == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		checks = append(checks, health.Check{Name: "redis", Probe: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	limiter, closeLimiter, err := newRateLimiter(ctx, cfg.RateLimiter, cfg.Redis, redisClient)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to create rate limiter", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer closeLimiter()

	var publisher domain.RoomEventPublisher = domain.NopRoomEventPublisher{}
	if cfg.RabbitMQ.Enabled {
		rabbitmq, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Fatal(logging.RabbitMQ, logging.Startup, "failed to connect to rabbitmq", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		defer rabbitmq.Close()

		logger.Info(logging.RabbitMQ, logging.Startup, "rabbitmq connection established", nil)
		publisher = events.NewRoomPublisher(rabbitmq)

		if cfg.Audit.Enabled {
			mongoClient, err := db.NewMongoClient(ctx, cfg.Mongo, logger)
			if err != nil {
				logger.Fatal(logging.MongoDB, logging.Startup, "failed to connect to mongodb", map[logging.ExtraKey]any{
					logging.ErrorMessage: err.Error(),
				})
			}
			defer db.DisconnectMongo(context.Background(), mongoClient, logger)

			auditRepository := repository.NewRoomAuditLogRepository(db.GetDatabase(mongoClient, cfg.Mongo))
			if err := auditRepository.EnsureIndexes(ctx, cfg.Audit.Retention); err != nil {
				logger.Warn(logging.MongoDB, logging.Startup, "failed to create audit indexes", map[logging.ExtraKey]any{
					logging.ErrorMessage: err.Error(),
				})
			}

			roomConsumer := events.NewRoomConsumer(rabbitmq, auditRepository, logger)
			if err := roomConsumer.Listen(); err != nil {
				logger.Fatal(logging.RabbitMQ, logging.Consume, "failed to start room consumer", map[logging.ExtraKey]any{
					logging.ErrorMessage: err.Error(),
				})
			}

			checks = append(checks, health.Check{Name: "mongodb", Probe: func(ctx context.Context) error {
				return mongoClient.Ping(ctx, readpref.Primary())
			}})
		}
	}

	core := ws.NewCore(ws.NewRegistry(cfg.Room.Capacity), ws.CoreOptions{
		Logger:    logger,
		Metrics:   m,
		Publisher: publisher,
		Presence:  cfg.WS.PresenceEvents,
	})

	app := api.NewApplication(
		*cfg,
		core,
		rooms.NewHandler(core, *cfg, logger),
		health.NewHandler(core, checks...),
		rtc.NewHandler(cfg.RTC),
		m,
		logger,
		limiter,
	)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))
	expvar.Publish("rooms", expvar.Func(func() any {
		return core.Registry().Len()
	}))

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Fatal(logging.General, logging.Shutdown, "server stopped with error", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}

// newRateLimiter returns a nil Limiter when HTTP rate limiting is disabled.
func newRateLimiter(ctx context.Context, cfg configs.RateLimiterConfig, redisCfg configs.RedisConfig, client *redis.Client) (ratelimiter.Limiter, func(), error) {
	noop := func() {}
	if !cfg.Enabled {
		return nil, noop, nil
	}

	if cfg.Strategy == "fixed_window" {
		rl := ratelimiter.NewFixedWindowRateLimiter(cfg.MaxBurst, cfg.Window, cfg.SourceHeaderKey)
		return rl, func() { _ = rl.Close() }, nil
	}

	var cache ratelimiter.GetterSetter
	closeCache := noop
	if client != nil {
		cache = ratelimiter.NewRedis(client, redisCfg.Prefix)
	} else {
		mem := ratelimiter.NewInMemory(ctx, ratelimiter.InMemoryOptions{SweepInterval: cfg.Window})
		cache, closeCache = mem, func() { _ = mem.Close() }
	}

	rl, err := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.MaxRatePerSecond,
		MaxBurst:         cfg.MaxBurst,
		Cache:            cache,
		CacheTTL:         cfg.CacheTTL,
		SourceHeaderKey:  cfg.SourceHeaderKey,
	})
	if err != nil {
		closeCache()
		return nil, noop, err
	}

	return rl, closeCache, nil
}
