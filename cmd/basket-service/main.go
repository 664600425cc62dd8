package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/api/handlers"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/api/middleware"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/clients"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/config"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/events"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/health"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/metrics"
	repository "github.com/aaravmahajanofficial/ecommerce-basket/internal/repositories"
	service "github.com/aaravmahajanofficial/ecommerce-basket/internal/services"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {

	// Logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load config
	cfg := config.MustLoad()

	// Registered first so it runs after every other deferred cleanup.
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName, &cfg.Tracing)
	if err != nil {
		slog.Error("❌ Error initializing tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Redis setup
	redisClient, err := repository.NewRedisClient(cfg)
	if err != nil {
		slog.Error("❌ Error accessing the redis instance", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if err := redisClient.Close(); err != nil {
			slog.Error("⚠️ Error closing redis connection", slog.String("error", err.Error()))
		} else {
			slog.Info("✅ Redis connection closed")
		}
	}()

	catalogClient, err := clients.NewCatalogClient(&cfg.Catalog)
	if err != nil {
		slog.Error("❌ Invalid catalog configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	basketRepo := repository.NewBasketRepo(redisClient, &cfg.Cache)
	basketService := service.NewBasketService(basketRepo, catalogClient)
	basketHandler := handlers.NewBasketHandler(basketService)
	jwtPublicKey, err := middleware.ParseRSAPublicKey(cfg.Security.JWTPublicKey)
	if err != nil {
		slog.Error("❌ Invalid security configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	authMiddleware := middleware.NewAuthMiddleware([]byte(cfg.Security.JWTKey), jwtPublicKey)
	rateLimiter := middleware.NewRateLimitMiddleware(repository.NewRateLimitRepo(redisClient, &cfg.RateConfig))

	// RabbitMQ setup
	amqpConn, err := events.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		slog.Error("❌ Error connecting to RabbitMQ", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if err := amqpConn.Close(); err != nil {
			slog.Error("⚠️ Error closing RabbitMQ connection", slog.String("error", err.Error()))
		}
	}()

	consumer := events.NewConsumer(
		amqpConn,
		&cfg.RabbitMQ,
		events.BasketPriceChangedQueue(),
		events.ProductPriceChangedRoutingKey,
		events.PriceChangedHandler(basketService),
	)

	consumerDone, err := consumer.Start(ctx)
	if err != nil {
		slog.Error("❌ Error starting price change consumer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	healthHandler, err := health.NewHealthHandler(cfg, &health.Endpoints{AMQP: amqpConn})
	if err != nil {
		slog.Error("❌ Error creating health handler", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("basket service initialized", slog.String("env", cfg.Env), slog.String("version", "1.0.0"))

	// Setup router
	routerMux := http.NewServeMux()
	routerMux.HandleFunc("GET /api/v1/basket/{userName}", authMiddleware.Authenticate(basketHandler.GetBasket()))
	routerMux.HandleFunc("POST /api/v1/basket", authMiddleware.Authenticate(rateLimiter.Limit(basketHandler.UpdateBasket())))
	routerMux.HandleFunc("DELETE /api/v1/basket/{userName}", authMiddleware.Authenticate(basketHandler.DeleteBasket()))
	routerMux.Handle("GET /health", healthHandler.Handler())
	routerMux.Handle("GET /metrics", metrics.Handler())

	// Middleware chaining; metrics sits innermost so the matched pattern is visible to it
	var handler http.Handler = metrics.Middleware(routerMux)
	handler = middleware.Logging(handler)
	handler = otelhttp.NewHandler(handler, cfg.ServiceName)

	// Setup http server
	server := http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("🚀 Server is starting...", slog.String("address", cfg.Addr))

	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("❌ Failed to start server", slog.Any("error", err.Error()))
			stop()
		}
	}()

	consumerErr := awaitShutdown(ctx, consumerDone)
	if consumerErr != nil {
		// Without a consumer baskets stop tracking catalog prices; exit so the
		// orchestrator restarts the service with a fresh broker connection.
		slog.Error("❌ Price change consumer stopped unexpectedly", slog.String("error", consumerErr.Error()))
		exitCode = 1
		stop()
	} else {
		slog.Warn("🛑 Shutdown signal received. Preparing to stop the server...")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("⚠️ Server shutdown encountered an issue", slog.String("error", err.Error()))
	} else {
		slog.Info("✅ Server shut down gracefully. All connections closed.")
	}

	select {
	case <-consumerDone:
		if consumerErr == nil {
			slog.Info("✅ Price change consumer stopped")
		}
	case <-shutdownCtx.Done():
		slog.Warn("⚠️ Price change consumer did not stop in time")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("⚠️ Error flushing traces", slog.String("error", err.Error()))
	}
}
