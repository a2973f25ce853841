package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/adminkit/pkg/api"
	"github.com/platinummonkey/adminkit/pkg/audit"
	"github.com/platinummonkey/adminkit/pkg/auth"
	"github.com/platinummonkey/adminkit/pkg/cache"
	"github.com/platinummonkey/adminkit/pkg/config"
	"github.com/platinummonkey/adminkit/pkg/events"
	"github.com/platinummonkey/adminkit/pkg/middleware"
	"github.com/platinummonkey/adminkit/pkg/observability"
	"github.com/platinummonkey/adminkit/pkg/rbac"
	"github.com/platinummonkey/adminkit/pkg/storage/objects"
	"github.com/platinummonkey/adminkit/pkg/storage/postgres"
	"github.com/platinummonkey/adminkit/pkg/todos"
	"github.com/platinummonkey/adminkit/pkg/users"
)

func main() {
	seed := flag.Bool("seed", false, "Insert the default roles, resources and accounts if the database is empty")
	migrateOnly := flag.Bool("migrate-only", false, "Apply schema migrations and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), nil)
	if cfg.Observability.LogFile != "" {
		logger = observability.NewLogger(cfg.Observability.Level(), observability.FileOutput(cfg.Observability.LogFile, 100, 5, 28))
	}

	if err := run(cfg, logger, *seed, *migrateOnly); err != nil {
		logger.WithError(err).Error("adminkit exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger, seed, migrateOnly bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.App.Debug && cfg.JWT.Secret == "" {
		cfg.JWT.Secret = uuid.NewString()
		logger.Warn("no JWT secret configured, using a random one; tokens will not survive a restart")
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	defer func() {
		if err := shutdown.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("shutdown finished with errors")
		}
	}()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// OpenTelemetry
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return err
	}
	if providers != nil {
		shutdown.Register("otel", providers.Shutdown)
	}

	// Database
	conns, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.DSN(),
		ReplicaURLs: cfg.Database.ReplicaURLs,
		MaxConns:    cfg.Database.MaxOpenConns,
		MinConns:    cfg.Database.MaxIdleConns,
		MaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return err
	}
	shutdown.Register("postgres", func(context.Context) error { return conns.Close() })

	applied, err := postgres.Migrate(ctx, conns.Primary())
	if err != nil {
		return err
	}
	logger.WithField("applied", applied).Info("database schema up to date")
	if migrateOnly {
		return nil
	}

	hasher := auth.NewBcryptHasher()
	if seed {
		res, err := rbac.Seed(ctx, conns.Primary(), hasher)
		if err != nil {
			return err
		}
		logger.WithFields(map[string]interface{}{
			"resources": res.Resources,
			"roles":     res.Roles,
			"users":     res.Users,
		}).Info("seed data inserted")
	}

	// Redis
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = postgres.NewRedisClient(ctx, postgres.RedisConfig{
			URL:      cfg.Redis.URL,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return err
		}
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	} else {
		logger.Info("redis not configured, cache and rate limits are per process")
	}

	// Response cache
	var respCache *cache.ResponseCache
	if cfg.Cache.Enabled {
		respCache = cache.New(&cache.Config{TTL: cfg.Cache.TTL, L1Size: cfg.Cache.L1Size}, redisClient, metrics)
	}

	// Rate limiting
	var limiter middleware.Limiter
	if cfg.RateLimit.Enabled {
		rl := &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			WindowDuration:    cfg.RateLimit.Window,
			BurstSize:         cfg.RateLimit.Burst,
		}
		if redisClient != nil {
			limiter = middleware.NewDistributedRateLimiter(redisClient, rl, "")
		} else {
			local := middleware.NewRateLimiter(rl)
			local.StartCleanup(ctx)
			limiter = local
		}
	}

	// Events
	var publisher events.Publisher = events.Noop{}
	if cfg.MQTT.Broker != "" {
		mqttPublisher, err := events.NewMQTTPublisher(events.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, metrics, logger)
		if err != nil {
			return err
		}
		publisher = mqttPublisher
	}
	shutdown.Register("events", func(context.Context) error {
		publisher.Close()
		return nil
	})

	// Services
	tokens, err := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.Algorithm, cfg.JWT.TTL())
	if err != nil {
		return err
	}

	userStore := users.NewStore(conns.Primary(), conns.Replica())
	roleStore := rbac.NewStore(conns.Primary(), conns.Replica())

	serviceOpts := []users.Option{users.WithPublisher(publisher)}
	var roleInvalidator rbac.Invalidator
	if respCache != nil {
		serviceOpts = append(serviceOpts, users.WithInvalidator(respCache))
		roleInvalidator = respCache
	}
	if cfg.S3.Bucket != "" {
		avatars, err := objects.NewS3Store(ctx, objects.Config{
			Endpoint:     cfg.S3.Endpoint,
			Region:       cfg.S3.Region,
			Bucket:       cfg.S3.Bucket,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
			PublicURL:    cfg.S3.PublicURL,
		})
		if err != nil {
			return err
		}
		serviceOpts = append(serviceOpts, users.WithAvatarStore(avatars))
	}
	service := users.NewService(userStore, hasher, serviceOpts...)

	deps := api.Dependencies{
		Users:    api.NewUserHandlers(service, tokens),
		Resolver: auth.NewPrincipalResolver(tokens, userStore, roleStore, metrics),
		Roles:    rbac.NewHandlers(roleStore, roleInvalidator),
		Todos:    todos.NewHandlers(todos.NewStore(conns.Primary())),
		Cache:    respCache,
		Limiter:  limiter,
		Metrics:  metrics,
		Logger:   logger,
	}

	if cfg.Audit.Enabled {
		auditStore := audit.NewStore(conns.Primary(), conns.Replica())
		recorder := audit.NewRecorder(auditStore, cfg.Audit.BufferSize, middleware.ClientIP, metrics, logger)
		shutdown.Register("audit recorder", func(context.Context) error {
			return recorder.Close(cfg.Server.ShutdownTimeout)
		})
		deps.Recorder = recorder
		deps.Audit = audit.NewHandlers(auditStore)
	}

	proxies, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	apiServer := &http.Server{
		Addr: cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: api.NewServer(api.Options{
			APIPrefix:      cfg.App.APIPrefix,
			CORSOrigins:    cfg.CORS.Origins,
			TrustedProxies: proxies,
		}, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:           api.HealthHandler(observability.NewHealthChecker(conns.Primary(), redisClient, cfg.App.Version), registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	shutdown.Register("api server", apiServer.Shutdown)
	shutdown.Register("health server", healthServer.Shutdown)

	g, gctx := errgroup.WithContext(ctx)
	conns.StartMaintenance(gctx, 30*time.Second, metrics)
	if path := os.Getenv(config.FileEnv); path != "" {
		watcher, err := config.NewWatcher(path, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return watcher.Run(gctx) })
	}
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("starting adminkit API server")
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("starting health server")
		return serve(healthServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}
