package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Abdurahmanit/GroupProject/cart-service/internal/adapter/memory"
	natsadapter "github.com/Abdurahmanit/GroupProject/cart-service/internal/adapter/nats"
	redisadapter "github.com/Abdurahmanit/GroupProject/cart-service/internal/adapter/redis"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/app/config"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/platform/tracer"
	grpcserver "github.com/Abdurahmanit/GroupProject/cart-service/internal/port/grpc"
	natsport "github.com/Abdurahmanit/GroupProject/cart-service/internal/port/nats"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/port/ops"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/repository"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/service"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const metricsNamespace = "cart"

type App struct {
	cfg            *config.Config
	log            logger.Logger
	grpcServer     *grpcserver.Server
	opsServer      *ops.Server
	natsHandler    *natsport.Handler
	prober         *grpcserver.HealthProber
	cartRepo       repository.CartRepository
	memoryRepo     *memory.CartRepository
	redisClient    *redis.Client
	natsConn       *nats.Conn
	tracerProvider *sdktrace.TracerProvider
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	logCfg := logger.ZapLoggerConfig{
		Level:      cfg.Logger.Level,
		Encoding:   cfg.Logger.Encoding,
		TimeFormat: cfg.Logger.TimeFormat,
	}
	appLogger, err := logger.NewZapLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	appLogger.Info("Logger initialized")
	appLogger.Infof("Configuration loaded: Env=%s, Store=%s, GRPC Port: %s, HTTP Port: %s",
		cfg.Env, cfg.Cart.Store, cfg.GRPCServer.Port, cfg.HTTPServer.Port)

	tp, err := tracer.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	appLogger.Info("Tracer provider initialized")

	cartMetrics := metrics.NewCartMetrics(metricsNamespace)

	application := &App{
		cfg:            cfg,
		log:            appLogger,
		tracerProvider: tp,
	}

	switch cfg.Cart.Store {
	case config.StoreMemory:
		memRepo := memory.NewCartRepository(memory.Config{TTL: cfg.Cart.TTL}, appLogger)
		application.memoryRepo = memRepo
		application.cartRepo = memRepo
		appLogger.Info("In-memory CartRepository initialized")
	default:
		appLogger.Info("Initializing Redis client...")
		redisClient, err := redisadapter.NewClient(ctx, cfg.Redis)
		if err != nil {
			appLogger.Errorf("Failed to initialize Redis client: %v", err)
			_ = tp.Shutdown(ctx)
			return nil, fmt.Errorf("failed to initialize Redis client: %w", err)
		}
		appLogger.Info("Redis client initialized successfully")
		application.redisClient = redisClient
		application.cartRepo = redisadapter.NewCartRepository(redisClient, redisadapter.CartRepositoryConfig{
			TTL:          cfg.Cart.TTL,
			MaxAttempts:  cfg.Cart.MaxAttempts,
			RetryBackoff: cfg.Cart.RetryBackoff,
			Metrics:      cartMetrics,
		}, appLogger)
		appLogger.Info("Redis CartRepository initialized")
	}

	appLogger.Info("Connecting to NATS...")
	natsConn, err := natsadapter.NewConnection(cfg.NATS, appLogger)
	if err != nil {
		appLogger.Errorf("Failed to connect to NATS: %v", err)
		application.closeStores()
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	application.natsConn = natsConn

	publisher, err := natsadapter.NewNATSPublisher(natsConn)
	if err != nil {
		natsConn.Close()
		application.closeStores()
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
	}
	appLogger.Info("NATS publisher initialized")

	cartService := service.NewCartService(application.cartRepo, publisher, cartMetrics, appLogger)
	appLogger.Info("CartService initialized")

	application.natsHandler = natsport.NewHandler(cartService, appLogger, cfg.NATS.RequestTimeout)

	application.grpcServer = grpcserver.NewServer(
		appLogger,
		cfg.GRPCServer.Port,
		cfg.GRPCServer.TimeoutGraceful,
		cfg.GRPCServer.MaxConnectionIdle,
	)
	application.prober = grpcserver.NewHealthProber(
		application.cartRepo,
		application.grpcServer.Health(),
		cartMetrics,
		appLogger,
		cfg.GRPCServer.HealthInterval,
	)
	appLogger.Info("gRPC server instance created")

	application.opsServer = ops.NewServer(
		cfg.HTTPServer.Port,
		ops.NewRouter(cartMetrics.Registry, application.cartRepo),
		appLogger,
	)

	return application, nil
}

func (a *App) Run() {
	a.log.Info("Starting application components...")

	runCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	if err := a.natsHandler.Subscribe(a.natsConn, a.cfg.NATS.QueueGroup); err != nil {
		a.log.Fatalf("Failed to subscribe cart handlers: %v", err)
	}

	go func() {
		if err := a.grpcServer.Start(); err != nil {
			a.log.Fatalf("Failed to start gRPC server: %v", err)
		}
	}()
	a.log.Info("gRPC server started in a goroutine")

	go func() {
		if err := a.opsServer.Start(); err != nil {
			a.log.Errorf("Ops HTTP server stopped: %v", err)
		}
	}()

	go a.prober.Run(runCtx)

	if a.memoryRepo != nil {
		go a.memoryRepo.Run(runCtx, a.cfg.Cart.SweepInterval)
		a.log.Infof("In-memory sweeper running every %s", a.cfg.Cart.SweepInterval)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit
	a.log.Infof("Received shutdown signal: %v. Shutting down application...", receivedSignal)

	stopBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GRPCServer.TimeoutGraceful+5*time.Second)
	defer cancel()

	a.natsHandler.Unsubscribe()
	if err := a.natsConn.Drain(); err != nil {
		a.log.Errorf("Error draining NATS connection: %v", err)
	} else {
		a.log.Info("NATS connection drained")
	}

	if err := a.grpcServer.Stop(shutdownCtx); err != nil {
		a.log.Errorf("Error during gRPC server graceful shutdown: %v", err)
	} else {
		a.log.Info("gRPC server stopped successfully")
	}

	if err := a.opsServer.Stop(shutdownCtx); err != nil {
		a.log.Errorf("Error during ops HTTP server shutdown: %v", err)
	} else {
		a.log.Info("Ops HTTP server stopped successfully")
	}

	a.closeStores()

	if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
		a.log.Errorf("Error shutting down tracer provider: %v", err)
	}

	a.log.Info("Application shut down successfully")
	_ = a.log.Sync()
}

func (a *App) closeStores() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Errorf("Error closing Redis client: %v", err)
		} else {
			a.log.Info("Redis client closed successfully")
		}
	}
}
