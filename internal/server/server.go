// Package server builds the service's dependency graph and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/concept-modules/internal/api"
	"github.com/JakeFAU/concept-modules/internal/clock/system"
	"github.com/JakeFAU/concept-modules/internal/config"
	"github.com/JakeFAU/concept-modules/internal/content"
	"github.com/JakeFAU/concept-modules/internal/curriculum"
	"github.com/JakeFAU/concept-modules/internal/id/uuid"
	"github.com/JakeFAU/concept-modules/internal/nodes"
	nodesMemory "github.com/JakeFAU/concept-modules/internal/nodes/memory"
	nodesRedis "github.com/JakeFAU/concept-modules/internal/nodes/redis"
	"github.com/JakeFAU/concept-modules/internal/progress"
	progresssinks "github.com/JakeFAU/concept-modules/internal/progress/sinks"
	gcppublisher "github.com/JakeFAU/concept-modules/internal/publisher/pubsub"
	"github.com/JakeFAU/concept-modules/internal/ratelimit"
	"github.com/JakeFAU/concept-modules/internal/session"
	blobstorage "github.com/JakeFAU/concept-modules/internal/storage"
	gcsstorage "github.com/JakeFAU/concept-modules/internal/storage/gcs"
	localstorage "github.com/JakeFAU/concept-modules/internal/storage/local"
	memoryStorage "github.com/JakeFAU/concept-modules/internal/storage/memory"
	pgstore "github.com/JakeFAU/concept-modules/internal/storage/postgres"
	"github.com/JakeFAU/concept-modules/internal/store"
	"github.com/JakeFAU/concept-modules/internal/telemetry"
)

// App contains the application's dependencies.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	catalog      *curriculum.Catalog
	apiServer    *api.Server
	sessions     *session.Manager
	progressHub  *progress.Hub
	pubsubClient *pubsub.Client
	publisher    *gcppublisher.Publisher
	storage      *storage.Client
	progressRepo store.ProgressRepository
	tracker      nodes.Tracker
	limiter      *ratelimit.Limiter
	tracer       *sdktrace.TracerProvider
	registry     prometheus.Registerer
}

// Option customises Build.
type Option func(*App)

// WithRegisterer registers event collectors on reg instead of the default registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *App) { a.registry = reg }
}

// Build creates the application's dependencies. The logger is owned by the caller.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(app)
	}
	app.logger.Info("building application dependencies", zap.Int("port", cfg.Server.Port))

	var err error
	if cfg.Telemetry.Enabled {
		app.tracer, err = telemetry.InitTracerProvider(ctx, cfg.Telemetry.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("tracer init failed: %w", err)
		}
	}

	app.catalog, err = curriculum.LoadFile(cfg.Catalog.Path)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	app.logger.Info("catalog loaded",
		zap.String("path", cfg.Catalog.Path),
		zap.Int("modules", app.catalog.Len()),
	)

	renderer, err := setupContent(ctx, app)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	if err = setupLedger(ctx, app); err != nil {
		app.Close(ctx)
		return nil, err
	}
	if err = setupTracker(ctx, app); err != nil {
		app.Close(ctx)
		return nil, err
	}
	if err = setupPublisher(ctx, app); err != nil {
		app.Close(ctx)
		return nil, err
	}
	emitter, err := setupProgress(ctx, app)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	app.sessions, err = session.NewManager(app.catalog, session.Config{
		Clock:          system.New(),
		IDs:            uuid.New(),
		Emitter:        emitter,
		Tracker:        app.tracker,
		IdleTTL:        cfg.Session.IdleTTL,
		TrackerTimeout: cfg.Session.TrackerTimeout,
		Logger:         app.logger,
	})
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("session manager init failed: %w", err)
	}

	app.limiter = ratelimit.New(ratelimit.Config{
		RPS:   cfg.Server.RateLimitRPS,
		Burst: cfg.Server.RateLimitBurst,
	})
	if app.limiter.Enabled() {
		app.logger.Info("per-client rate limiting enabled",
			zap.Float64("rps", cfg.Server.RateLimitRPS),
			zap.Int("burst", cfg.Server.RateLimitBurst),
		)
	}

	app.apiServer, err = api.NewServer(api.Dependencies{
		Sessions: app.sessions,
		Content:  renderer,
		Tracker:  app.tracker,
		Ledger:   app.progressRepo,
		Ready:    app.ready,
		Limiter:  app.limiter,
	}, cfg, app.logger)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("api server init failed: %w", err)
	}
	return app, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP and sweeps idle sessions until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	go func() {
		a.logger.Info("session sweeper started", zap.Duration("interval", a.cfg.Session.SweepInterval))
		a.sessions.Run(ctx, a.cfg.Session.SweepInterval)
	}()
	if a.limiter.Enabled() {
		go a.pruneLimiter(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close(shutdownCtx)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

func (a *App) pruneLimiter(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Session.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.Prune(); n > 0 {
				a.logger.Debug("pruned idle rate limit buckets", zap.Int("count", n))
			}
		}
	}
}

// Close ends every session, flushes events, and releases clients. Sessions
// are closed before the hub so their final events still reach the sinks.
func (a *App) Close(ctx context.Context) {
	if a.sessions != nil {
		a.sessions.Close()
	}
	a.closeInfrastructure(ctx)
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if pgRepo, ok := a.progressRepo.(*pgstore.ProgressStore); ok {
		pgRepo.Close()
	}
	if rt, ok := a.tracker.(*nodesRedis.Tracker); ok {
		if err := rt.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
}

// ready reports whether the ledger can still be queried.
func (a *App) ready(ctx context.Context) error {
	if a.progressRepo == nil {
		return nil
	}
	if _, err := a.progressRepo.ListSessions(ctx, nil, 1, 0); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	return nil
}

func setupContent(ctx context.Context, app *App) (*content.Renderer, error) {
	var (
		blobs blobstorage.BlobStore
		err   error
	)
	switch app.cfg.Content.Backend {
	case config.BackendGCS:
		app.logger.Info("using GCS content backend")
		app.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		blobs, err = gcsstorage.New(app.storage, gcsstorage.Config{Bucket: app.cfg.Content.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Debug("GCS content backend", zap.String("bucket", app.cfg.Content.GCSBucket))
	case config.BackendLocal:
		app.logger.Info("using local content backend")
		blobs, err = localstorage.New(localstorage.Config{BaseDir: app.cfg.Content.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Debug("local content backend", zap.String("path", app.cfg.Content.LocalDir))
	default:
		app.logger.Info("using in-memory content backend")
		blobs = memoryStorage.NewBlobStore()
	}

	if app.cfg.Content.Seed {
		n, err := content.Seed(ctx, blobs, app.cfg.Content.Prefix, app.catalog.InlineContent(), app.logger.Named("seed"))
		if err != nil {
			return nil, fmt.Errorf("seed content: %w", err)
		}
		app.logger.Info("seeded inline content", zap.Int("objects", n))
	}
	return content.NewRenderer(blobs, app.catalog, app.cfg.Content.Prefix, app.logger), nil
}

func setupLedger(ctx context.Context, app *App) error {
	switch app.cfg.Progress.Ledger {
	case config.BackendPostgres:
		repo, err := pgstore.NewProgressStore(ctx, pgstore.ProgressStoreConfig{
			DSN:             app.cfg.DB.DSN,
			MaxConns:        app.cfg.DB.MaxConns,
			MinConns:        app.cfg.DB.MinConns,
			MaxConnLifetime: app.cfg.DB.MaxConnLifetime,
			Migrate:         app.cfg.DB.Migrate,
		})
		if err != nil {
			return fmt.Errorf("progress store init failed: %w", err)
		}
		app.progressRepo = repo
		app.logger.Info("postgres completion ledger initialized", zap.Bool("migrate", app.cfg.DB.Migrate))
	case config.BackendNone:
		app.logger.Warn("completion ledger disabled")
	default:
		app.progressRepo = memoryStorage.NewProgressStore()
		app.logger.Info("using in-memory completion ledger")
	}
	return nil
}

func setupTracker(ctx context.Context, app *App) error {
	if app.cfg.Progress.Nodes != config.BackendRedis {
		app.tracker = nodesMemory.New()
		app.logger.Info("using in-memory node tracker")
		return nil
	}
	t, err := nodesRedis.New(ctx, nodesRedis.Options{
		Addr:      app.cfg.Redis.Addr,
		Password:  app.cfg.Redis.Password,
		DB:        app.cfg.Redis.DB,
		KeyPrefix: app.cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return fmt.Errorf("node tracker init failed: %w", err)
	}
	app.tracker = t
	app.logger.Info("redis node tracker initialized", zap.String("addr", app.cfg.Redis.Addr))
	return nil
}

func setupPublisher(ctx context.Context, app *App) error {
	if !app.cfg.PubSub.Enabled {
		app.logger.Info("Pub/Sub notifications disabled")
		return nil
	}
	var err error
	app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.publisher = gcppublisher.New(app.pubsubClient, app.cfg.PubSub.TopicName)
	app.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return nil
}

func setupProgress(ctx context.Context, app *App) (progress.Emitter, error) {
	promSink, err := progresssinks.NewPrometheusSink(app.registry)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink init failed: %w", err)
	}
	sinkList := []progress.Sink{promSink}
	if app.progressRepo != nil {
		sinkList = append(sinkList, progresssinks.NewStoreSink(app.progressRepo, app.logger.Named("progress_store")))
		app.logger.Debug("Added progress store sink")
	}
	if app.publisher != nil {
		sinkList = append(sinkList,
			progresssinks.NewPublisherSink(app.publisher, app.cfg.PubSub.TopicName, app.logger.Named("progress_publisher")))
		app.logger.Debug("Added progress publisher sink")
	}
	if app.cfg.Progress.LogEvents {
		sinkList = append(sinkList, progresssinks.NewLogSink(app.logger.Named("progress_log")))
		app.logger.Debug("Added progress log sink")
	}
	hubCfg := progress.Config{
		BufferSize:     app.cfg.Progress.BufferSize,
		MaxBatchEvents: app.cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   app.cfg.Progress.MaxBatchWait,
		SinkTimeout:    app.cfg.Progress.SinkTimeout,
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         app.logger.Named("progress_hub"),
	}
	app.progressHub = progress.NewHub(hubCfg, sinkList...)
	app.logger.Info("progress hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
		zap.Duration("sink_timeout", hubCfg.SinkTimeout),
	)
	return app.progressHub, nil
}
