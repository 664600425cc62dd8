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
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/cache"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName, &cfg.Tracing)
	if err != nil {
		slog.Error("❌ Error initializing tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Database setup
	repos, err := repository.New(cfg)
	if err != nil {
		slog.Error("❌ Error accessing the database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if err := repos.Close(); err != nil {
			slog.Error("⚠️ Error closing database connection", slog.String("error", err.Error()))
		} else {
			slog.Info("✅ Database connection closed")
		}
	}()

	// Redis setup
	redisClient, err := repository.NewRedisClient(cfg)
	if err != nil {
		slog.Error("❌ Error accessing the redis instance", slog.String("error", err.Error()))
		os.Exit(1)
	}

	productCache := cache.NewRedisCache(redisClient, &cfg.Cache)
	defer productCache.Close()

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

	publisher, err := events.NewPublisher(amqpConn, cfg.RabbitMQ.Exchange, events.CatalogServiceName)
	if err != nil {
		slog.Error("❌ Error creating event publisher", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer publisher.Close()

	productService := service.NewProductService(repos.Product, productCache, publisher, cfg.Cache.ProductTTL)
	productHandler := handlers.NewProductHandler(productService)

	healthHandler, err := health.NewHealthHandler(cfg, &health.Endpoints{DB: repos.DB, AMQP: amqpConn})
	if err != nil {
		slog.Error("❌ Error creating health handler", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog service initialized", slog.String("env", cfg.Env), slog.String("version", "1.0.0"))

	// Setup router
	routerMux := http.NewServeMux()
	routerMux.HandleFunc("POST /products", productHandler.CreateProduct())
	routerMux.HandleFunc("GET /products", productHandler.ListProducts())
	routerMux.HandleFunc("GET /products/{id}", productHandler.GetProduct())
	routerMux.HandleFunc("PUT /products/{id}", productHandler.UpdateProduct())
	routerMux.HandleFunc("DELETE /products/{id}", productHandler.DeleteProduct())
	routerMux.HandleFunc("GET /products/search/{query}", productHandler.SearchProducts())
	routerMux.Handle("GET /health", healthHandler.Handler())
	routerMux.Handle("GET /metrics", metrics.Handler())

	var handler http.Handler = metrics.Middleware(routerMux)
	handler = middleware.Logging(handler)
	handler = otelhttp.NewHandler(handler, cfg.ServiceName)

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

	<-ctx.Done()

	slog.Warn("🛑 Shutdown signal received. Preparing to stop the server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("⚠️ Server shutdown encountered an issue", slog.String("error", err.Error()))
	} else {
		slog.Info("✅ Server shut down gracefully. All connections closed.")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("⚠️ Error flushing traces", slog.String("error", err.Error()))
	}
}
