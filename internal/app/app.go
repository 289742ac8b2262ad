package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	generationhttp "github.com/uniedit/imagegen/internal/adapter/inbound/http/generation"
	"github.com/uniedit/imagegen/internal/adapter/outbound/mediaprovider"
	"github.com/uniedit/imagegen/internal/adapter/outbound/memory"
	redisadapter "github.com/uniedit/imagegen/internal/adapter/outbound/redis"
	s3adapter "github.com/uniedit/imagegen/internal/adapter/outbound/s3"
	"github.com/uniedit/imagegen/internal/domain/generation"
	"github.com/uniedit/imagegen/internal/infra/config"
	"github.com/uniedit/imagegen/internal/infra/httpclient"
	"github.com/uniedit/imagegen/internal/infra/task"
	"github.com/uniedit/imagegen/internal/model"
	"github.com/uniedit/imagegen/internal/port/outbound"
	"github.com/uniedit/imagegen/internal/utils/logger"
	"github.com/uniedit/imagegen/internal/utils/metrics"
	"github.com/uniedit/imagegen/internal/utils/middleware"
)

// App represents the application.
type App struct {
	config   *config.Config
	logger   *zap.Logger
	redis    redis.UniversalClient
	router   *gin.Engine
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	runner   *task.Runner
	domain   *generation.Domain
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return NewWithLogger(cfg, log)
}

// NewWithLogger creates a new application instance that logs to log.
func NewWithLogger(cfg *config.Config, log *zap.Logger) (*App, error) {
	app := &App{
		config:   cfg,
		logger:   log,
		registry: prometheus.NewRegistry(),
	}

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.NewWithRegistry(cfg.Metrics.Namespace, app.registry)

	if cfg.Provider.APIKey == "" {
		log.Warn("Provider API key is not configured; generations will fail with a configuration error")
	}

	store, err := app.initTaskStore()
	if err != nil {
		return nil, err
	}

	publisher, err := app.initPublisher(context.Background())
	if err != nil {
		return nil, err
	}

	app.runner = task.NewRunner(log, &task.Config{
		MaxConcurrent: cfg.Generation.MaxConcurrent,
		RunTimeout:    cfg.Provider.Timeout,
	})

	app.domain = generation.NewDomain(
		app.initProvider(),
		store,
		publisher,
		app.runner,
		app.metrics,
		&generation.Config{
			Provider: model.ProviderConfig{
				APIKey:  cfg.Provider.APIKey,
				BaseURL: cfg.Provider.BaseURL,
			},
			PollInterval: cfg.Generation.PollInterval,
			WaitTimeout:  cfg.Generation.WaitTimeout,
		},
		log,
	)

	app.router = app.setupRouter()
	generationhttp.NewHandler(app.domain).RegisterRoutes(app.router.Group("/v1"))

	return app, nil
}

// initProvider builds the getimg adapter behind a circuit breaker.
func (a *App) initProvider() outbound.GenerationProviderPort {
	client := httpclient.New(a.config.HTTPClient, a.config.Provider.Timeout)
	return mediaprovider.NewBreakerProvider(
		mediaprovider.NewGetimgAdapter(client),
		mediaprovider.BreakerConfig{
			FailureThreshold: a.config.Breaker.FailureThreshold,
			MaxRequests:      a.config.Breaker.MaxRequests,
			Interval:         a.config.Breaker.Interval,
			Timeout:          a.config.Breaker.Timeout,
		},
		a.logger,
	)
}

// initTaskStore selects Redis when configured and falls back to memory.
func (a *App) initTaskStore() (outbound.GenerationTaskStorePort, error) {
	ttl := a.config.Generation.TaskTTL

	if !a.config.Redis.Enabled() {
		a.logger.Info("Using in-memory task store")
		return memory.NewGenerationTaskAdapter(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.config.Redis.Address,
		Password: a.config.Redis.Password,
		DB:       a.config.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.redis = client

	a.logger.Info("Using Redis task store", zap.String("address", a.config.Redis.Address))
	return redisadapter.NewGenerationTaskAdapter(client, ttl), nil
}

// initPublisher returns nil when object storage is not configured.
func (a *App) initPublisher(ctx context.Context) (outbound.ArtifactPublisherPort, error) {
	if !a.config.Storage.Enabled() {
		return nil, nil
	}

	storageCfg := s3adapter.Config{
		Endpoint:        a.config.Storage.Endpoint,
		Region:          a.config.Storage.Region,
		AccessKeyID:     a.config.Storage.AccessKeyID,
		SecretAccessKey: a.config.Storage.SecretAccessKey,
		Bucket:          a.config.Storage.Bucket,
		Prefix:          a.config.Storage.Prefix,
		PublicBaseURL:   a.config.Storage.PublicBaseURL,
	}
	client, err := s3adapter.NewClient(ctx, storageCfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	a.logger.Info("Publishing public artifacts", zap.String("bucket", storageCfg.Bucket))
	return s3adapter.NewArtifactPublisher(client, storageCfg), nil
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	if a.config.Server.Mode != "" {
		gin.SetMode(a.config.Server.Mode)
	}

	r := gin.New()

	corsCfg := middleware.DefaultCORSConfig()
	if len(a.config.CORS.AllowOrigins) > 0 {
		corsCfg.AllowOrigins = a.config.CORS.AllowOrigins
	}

	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.CORS(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	return r
}

// Router returns the HTTP handler.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop drains background generations and releases resources.
func (a *App) Stop() {
	if a.runner != nil {
		a.runner.Stop()
	}

	if a.redis != nil {
		_ = a.redis.Close()
	}

	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
