package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"

	cacheadapter "github.com/maidsofhonourafrica/escrow-service/internal/adapters/cache"
	eventadapter "github.com/maidsofhonourafrica/escrow-service/internal/adapters/events"
	"github.com/maidsofhonourafrica/escrow-service/internal/adapters/gateway"
	grpcadapter "github.com/maidsofhonourafrica/escrow-service/internal/adapters/grpc"
	httpadapter "github.com/maidsofhonourafrica/escrow-service/internal/adapters/http"
	"github.com/maidsofhonourafrica/escrow-service/internal/adapters/postgres"
	"github.com/maidsofhonourafrica/escrow-service/internal/adapters/security"
	"github.com/maidsofhonourafrica/escrow-service/internal/application"
	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

// Runtime owns the process-wide connections. The API, the worker and the operator CLI
// all start from one.
type Runtime struct {
	cfg       Config
	logger    *slog.Logger
	db        *gorm.DB
	redis     *redis.Client
	repos     postgres.Repositories
	service   *application.Service
	verifier  *security.JWTVerifier
	publisher ports.EventPublisher
	cleanupFn func()
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping escrow service", "service", cfg.ServiceID, "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// The idempotency gate fails open, so a cold Redis is logged rather than fatal.
		logger.Warn("redis unreachable at startup", "operation", "bootstrap_redis", "outcome", "fail_open", "error", err)
	}

	gatewayClient, err := gateway.NewClient(gateway.Config{
		BaseURL:               cfg.GatewayBaseURL,
		ClientID:              cfg.GatewayClientID,
		ClientSecret:          cfg.GatewayClientSecret,
		CollectionCallbackURL: cfg.GatewayCallbackURL,
		DisbursementResultURL: cfg.GatewayResultURL,
		Timeout:               cfg.GatewayTimeout,
		TokenRefreshSkew:      cfg.GatewayTokenRefreshSkew,
		RateLimit:             cfg.GatewayRateLimit,
		RateBurst:             cfg.GatewayRateBurst,
	})
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init gateway client: %w", err)
	}

	verifier, err := security.NewJWTVerifier(security.VerifierConfig{
		PublicKeyPEM: cfg.JWTPublicKeyPEM,
		HMACSecret:   cfg.JWTHMACSecret,
		Issuer:       cfg.JWTIssuer,
		Audience:     cfg.JWTAudience,
	})
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init jwt verifier: %w", err)
	}

	var publisher ports.EventPublisher = eventadapter.NewLoggingPublisher(logger)
	closePublisher := func() {}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, eventadapter.DefaultTopics())
		if err != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init kafka publisher: %w", err)
		}
		publisher = kafkaPublisher
		closePublisher = func() { _ = kafkaPublisher.Close() }
	}

	repos := postgres.NewRepositories(db)
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:        cfg.ServiceID,
			IdempotencyTTL:     cfg.IdempotencyTTL,
			IdempotencyLease:   cfg.IdempotencyLeaseTTL,
			Commission:         cfg.Commission,
			ReconcileAfter:     cfg.ReconcileAfter,
			ReconcileBatchSize: cfg.ReconcileBatchSize,
		},
		Transactions:  repos.Transactions,
		Escrows:       repos.Escrows,
		Disbursements: repos.Disbursements,
		Users:         repos.Users,
		Idempotency:   cacheadapter.NewRedisIdempotencyStore(redisClient),
		Gateway:       gatewayClient,
	})

	return &Runtime{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		redis:     redisClient,
		repos:     repos,
		service:   svc,
		verifier:  verifier,
		publisher: publisher,
		cleanupFn: func() {
			closePublisher()
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

// Service exposes the application service to the operator CLI.
func (r *Runtime) Service() *application.Service {
	return r.service
}

func (r *Runtime) Close() {
	r.cleanupFn()
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.cleanupFn()

	handler, err := httpadapter.NewHandler(r.service, r.verifier, map[string]httpadapter.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return postgres.Ping(ctx, r.db) },
		"redis":    func(ctx context.Context) error { return r.redis.Ping(ctx).Err() },
	})
	if err != nil {
		return fmt.Errorf("init http handler: %w", err)
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", r.cfg.HTTPPort),
		Handler:           httpadapter.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewEscrowInternalServer(r.service, r.verifier))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen gRPC: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	return runErr
}

// RunWorker runs the outbox relay and the stale-collection reconciler until signalled.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.cleanupFn()

	outbox := eventadapter.NewOutboxWorker(
		r.logger,
		r.repos.Outbox,
		r.publisher,
		r.cfg.OutboxPollInterval,
		r.cfg.OutboxBatchSize,
		r.cfg.OutboxClaimTTL,
		r.cfg.OutboxMaxRetries,
	)
	reconciler := eventadapter.NewReconcileWorker(r.logger, r.service, r.cfg.ReconcileInterval)

	r.logger.Info("workers started", "operation", "run_worker", "outcome", "started")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return outbox.Run(gctx) })
	g.Go(func() error { return reconciler.Run(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
