// services/payment-gateway/cmd/server/main.go
// HTTP Server
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/config"
	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/handler"
	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/models"
	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/repository"
	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/service"
	"github.com/tae5567/globalpay-gateway/shared/pkg/database"
	"github.com/tae5567/globalpay-gateway/shared/pkg/logger"
	"github.com/tae5567/globalpay-gateway/shared/pkg/middleware"
	"github.com/tae5567/globalpay-gateway/shared/pkg/mongodb"
	"github.com/tae5567/globalpay-gateway/shared/pkg/redis"
	"github.com/tae5567/globalpay-gateway/shared/pkg/tracing"
)

const serviceName = "payment-gateway"

type listingStore interface {
	service.ListingStore
	repository.PriceSource
}

// storage is the backend selected by STORAGE_DRIVER.
type storage struct {
	payments service.PaymentStore
	listings listingStore
	ping     func(ctx context.Context) error
	close    func(ctx context.Context) error
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.ForEnvironment(serviceName, cfg.Environment)
	defer log.Sync()

	// Initialize tracing
	endpoint := ""
	if cfg.TracingEnabled {
		endpoint = cfg.OTLPEndpoint
	}
	shutdown, err := tracing.InitTracer(serviceName, endpoint)
	if err != nil {
		log.Fatal("failed to initialize tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	ctx := context.Background()

	// Initialize database
	store, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer store.close(context.Background())

	// Initialize Redis
	redisClient := redis.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		log.Fatal("failed to register metrics", zap.Error(err))
	}

	// Initialize services
	random, err := service.NewLockedRandomSource()
	if err != nil {
		log.Fatal("failed to initialize random source", zap.Error(err))
	}
	decider, err := service.NewRiskTieredDecider(service.SettlementConfig{
		DeclineSuffix:         cfg.Settlement.DeclineSuffix,
		HighValueThreshold:    cfg.Settlement.HighValueThreshold,
		StandardApprovalRate:  cfg.Settlement.StandardApprovalRate,
		HighValueApprovalRate: cfg.Settlement.HighValueApprovalRate,
	}, random, metrics, log)
	if err != nil {
		log.Fatal("invalid settlement configuration", zap.Error(err))
	}

	// Checkout reads the store directly; the cache only serves displayed prices.
	displayPrices := repository.NewCachedPriceLookup(store.listings, redisClient, cfg.PriceCacheTTL, log)
	paymentService := service.NewPaymentService(store.listings, store.payments, decider, log,
		service.WithMetrics(metrics),
		service.WithIdempotencyCache(service.NewRedisIdempotencyCache(redisClient, cfg.IdempotencyTTL)),
	)
	listingService := service.NewListingService(store.listings, displayPrices, log)

	// Initialize handlers
	paymentHandler := handler.NewPaymentHandler(paymentService, log)
	listingHandler := handler.NewListingHandler(listingService, log)

	// Setup router
	router := setupRouter(cfg, paymentHandler, listingHandler, registry, log, func(ctx context.Context) error {
		if err := store.ping(ctx); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		if err := redisClient.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      tracing.WrapHandler(router, serviceName),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info("starting server",
			zap.String("port", cfg.Port),
			zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMongo:
		client, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		payments := repository.NewMongoPaymentRepository(client.Database())
		if err := payments.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &storage{
			payments: payments,
			listings: repository.NewMongoListingRepository(client.Database()),
			ping:     client.Ping,
			close:    client.Disconnect,
		}, nil

	default:
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, models.ListingSchema, models.PaymentSchema); err != nil {
			db.Close()
			return nil, err
		}
		return &storage{
			payments: repository.NewPaymentRepository(db.DB),
			listings: repository.NewListingRepository(db.DB),
			ping:     db.Ping,
			close:    func(context.Context) error { return db.Close() },
		}, nil
	}
}

func setupRouter(cfg *config.Config, payments *handler.PaymentHandler, listings *handler.ListingHandler,
	registry *prometheus.Registry, log *zap.Logger, ready func(context.Context) error) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Middleware
	router.Use(middleware.RequestID())
	router.Use(tracing.Route())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())
	router.Use(middleware.RateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))

	// Health checks
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// API routes
	handler.RegisterRoutes(router, payments, listings)

	return router
}
