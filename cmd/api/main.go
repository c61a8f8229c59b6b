package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/Unit659z/Clover-studio/internal/di"
	"github.com/Unit659z/Clover-studio/internal/handlers"
	"github.com/Unit659z/Clover-studio/internal/platform/auth"
	"github.com/Unit659z/Clover-studio/internal/platform/config"
	"github.com/Unit659z/Clover-studio/internal/platform/idempotency"
	"github.com/Unit659z/Clover-studio/internal/platform/jobs"
	"github.com/Unit659z/Clover-studio/internal/platform/observability"
	ppostgres "github.com/Unit659z/Clover-studio/internal/platform/postgres"
	"github.com/Unit659z/Clover-studio/internal/platform/secrets"
	"github.com/Unit659z/Clover-studio/internal/repositories"
	pgrepo "github.com/Unit659z/Clover-studio/internal/repositories/postgres"
	"github.com/Unit659z/Clover-studio/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets(requiredSecretNames()...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	pool, err := ppostgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if cfg.Database.MigrateOnStart {
		if err := ppostgres.Migrate(ctx, pool, observability.NewPrintfAdapter(logger.Named("migrations"))); err != nil {
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	checks := []repositories.DependencyCheck{
		{Name: "postgres", Check: ppostgres.HealthCheck(pool)},
	}

	var idempotencyStore idempotency.Store
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
		store, err := idempotency.NewRedisStore(redisClient)
		if err != nil {
			logger.Fatal("failed to initialise idempotency store", zap.Error(err))
		}
		idempotencyStore = store
		checks = append(checks, repositories.DependencyCheck{Name: "redis", Check: idempotency.HealthCheck(redisClient)})
	} else {
		logger.Warn("redis address not configured; idempotency records are kept in memory")
		idempotencyStore = idempotency.NewMemoryStore()
	}

	healthRepo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		logger.Fatal("failed to initialise health repository", zap.Error(err))
	}

	registry, err := pgrepo.NewRegistry(pool, healthRepo)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	containerOpts := []di.Option{
		di.WithLogger(logger),
		di.WithBuildInfo(services.BuildInfo{
			Version:     buildVersion(),
			Environment: cfg.Security.Environment,
			StartedAt:   startedAt,
		}),
	}

	publisher, stopPublisher, err := newEventPublisher(ctx, cfg.Events)
	if err != nil {
		logger.Fatal("failed to initialise event publisher", zap.Error(err))
	}
	if publisher != nil {
		defer stopPublisher()
		containerOpts = append(containerOpts, di.WithEventPublisher(publisher))
	} else {
		logger.Info("event publishing disabled")
	}

	container, err := di.NewContainer(ctx, cfg, registry, containerOpts...)
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}

	verifier, err := newTokenVerifier(ctx, cfg.Auth)
	if err != nil {
		logger.Fatal("failed to initialise token verifier", zap.Error(err), zap.String("mode", cfg.Auth.Mode))
	}
	authenticator := auth.NewAuthenticator(verifier)

	guard := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
	)

	svc := container.Services
	orderHandlers := handlers.NewOrderHandlers(authenticator, svc.Orders).WithIdempotency(guard)
	cartHandlers := handlers.NewCartHandlers(authenticator, svc.Cart, svc.Pricing).WithIdempotency(guard)
	messageHandlers := handlers.NewMessageHandlers(authenticator, svc.Messages).WithIdempotency(guard)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.TraceMiddleware(),
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(svc.System)),
		handlers.WithOrderStatusRoutes(orderHandlers.StatusRoutes),
		handlers.WithServiceRoutes(handlers.NewServiceHandlers(authenticator, svc.Catalog).Routes),
		handlers.WithExecutorRoutes(handlers.NewExecutorHandlers(authenticator, svc.Catalog, svc.Pricing).Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithReviewRoutes(handlers.NewReviewHandlers(authenticator, svc.Reviews).Routes),
		handlers.WithNewsRoutes(handlers.NewNewsHandlers(authenticator, svc.News).Routes),
		handlers.WithMessageRoutes(messageHandlers.Routes),
		handlers.WithPortfolioRoutes(handlers.NewPortfolioHandlers(authenticator, svc.Portfolio).Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("clover api listening", zap.String("auth_mode", cfg.Auth.Mode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := container.Close(shutdownCtx); err != nil {
		logger.Warn("container close error", zap.Error(err))
	}
}

// newSecretFetcher reads its own settings ahead of config.Load, which needs the fetcher to
// resolve secret references.
func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	projectID, err := config.Value("CLOVER_SECRETS_PROJECT_ID")
	if err != nil {
		return nil, err
	}
	if projectID == "" {
		if projectID, err = config.Value("CLOVER_FIREBASE_PROJECT_ID"); err != nil {
			return nil, err
		}
	}
	fallback, err := config.Value("CLOVER_SECRETS_LOCAL_FILE")
	if err != nil {
		return nil, err
	}
	if fallback == "" {
		fallback = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallback),
		secrets.WithMeter(otel.Meter("github.com/Unit659z/Clover-studio/secrets")),
	}
	if projectID != "" {
		opts = append(opts, secrets.WithProject(projectID))
	}
	return secrets.NewFetcher(ctx, opts...)
}

func requiredSecretNames() []string {
	required := []string{"Database.URL"}
	if mode, _ := config.Value("CLOVER_AUTH_MODE"); strings.EqualFold(mode, config.AuthModeJWT) {
		required = append(required, "Auth.JWTSecret")
	}
	return required
}

func newTokenVerifier(ctx context.Context, cfg config.AuthConfig) (auth.TokenVerifier, error) {
	switch cfg.Mode {
	case config.AuthModeJWT:
		return auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	case config.AuthModeFirebase, "":
		return auth.NewFirebaseVerifier(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Mode)
	}
}

// newEventPublisher returns a nil publisher when no project or topic is configured.
func newEventPublisher(ctx context.Context, cfg config.EventsConfig) (*jobs.EventPublisher, func(), error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	topicID := strings.TrimSpace(cfg.Topic)
	if projectID == "" || topicID == "" {
		return nil, func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	publisher, err := jobs.NewEventPublisher(client.Topic(topicID))
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	stop := func() {
		publisher.Stop()
		_ = client.Close()
	}
	return publisher, stop, nil
}

func buildVersion() string {
	if version, _ := config.Value("CLOVER_BUILD_VERSION"); version != "" {
		return version
	}
	return "dev"
}
