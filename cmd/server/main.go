package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/lunchbox-market/order-composer/internal/backend"
	"github.com/lunchbox-market/order-composer/internal/config"
	"github.com/lunchbox-market/order-composer/internal/draft"
	"github.com/lunchbox-market/order-composer/internal/handlers"
	"github.com/lunchbox-market/order-composer/internal/middleware"
	"github.com/lunchbox-market/order-composer/internal/payment"
	"github.com/lunchbox-market/order-composer/internal/service"
	"github.com/lunchbox-market/order-composer/pkg/logger"
)

// rootCapacity sizes the issued-root filter; it is rebuilt on restart.
const rootCapacity = 1_000_000

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	log.Info("starting order composer server",
		"port", cfg.Server.Port,
		"host", cfg.Server.Host,
		"log_level", cfg.LogLevel,
		"draft_driver", cfg.Draft.Driver,
	)

	loc, err := cfg.Session.Location()
	if err != nil {
		log.Error("failed to load calendar zone", "error", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.Tracing {
		otel.SetTextMapPropagator(
			propagation.NewCompositeTextMapPropagator(
				propagation.TraceContext{}, propagation.Baggage{}))
	}

	drafts, closeDrafts, err := openDrafts(ctx, cfg.Draft)
	if err != nil {
		log.Error("failed to open draft storage", "error", err)
		os.Exit(1)
	}
	defer closeDrafts()

	// Initialize clients
	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout,
		backend.WithLocation(loc),
		backend.WithLogger(log.With("component", "backend")),
	)
	gateway := payment.NewHTTPGateway(cfg.Payment.GatewayURL, cfg.Payment.APIKey, cfg.Payment.Timeout)
	go warmupGateway(ctx, gateway, log)

	pipeline := payment.NewPipeline(gateway, backendClient, payment.PipelineConfig{
		PG:        cfg.Payment.PG,
		PayMethod: cfg.Payment.PayMethod,
	}, log.With("component", "payment"))

	// Initialize services
	checkoutService := service.NewCheckoutService(service.CheckoutDeps{
		Cart:        backendClient,
		RestDays:    backendClient,
		Drafts:      drafts,
		Roots:       payment.NewRootIssuer(rootCapacity),
		Payer:       pipeline,
		Location:    loc,
		IdleTimeout: cfg.Session.IdleTimeout,
	}, log)
	go checkoutService.RunSweeper(ctx, cfg.Session.SweepInterval)

	cartService := service.NewCartService(backendClient)
	addressService := service.NewAddressService(backendClient)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(log, gateway, checkoutService)
	cartHandler := handlers.NewCartHandler(cartService, log)
	addressHandler := handlers.NewAddressHandler(addressService, log)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, loc, log)

	// Create router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Register health check endpoint
	r.Get("/health", healthHandler.ServeHTTP)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.JWTAuth(cfg.Auth))

		r.Get("/cart", cartHandler.ListCart)
		r.Get("/cart/vendors", cartHandler.ListVendors)
		r.Get("/cart/{itemId}", cartHandler.GetItem)

		r.Get("/addresses", addressHandler.List)
		r.Post("/addresses", addressHandler.Create)

		r.Route("/checkout", checkoutHandler.Routes)
	})

	var handler http.Handler = r
	if cfg.Tracing {
		handler = otelhttp.NewHandler(handler, "order-composer")
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	stop()

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped gracefully")
}

// openDrafts picks the draft KV backend named by the config.
func openDrafts(ctx context.Context, cfg config.DraftConfig) (draft.KV, func(), error) {
	switch cfg.Driver {
	case config.DraftFile:
		kv, err := draft.NewFileKV(cfg.Dir)
		return kv, func() {}, err
	case config.DraftPostgres:
		pool, err := draft.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return draft.NewPostgresKV(pool), pool.Close, nil
	}
	return draft.NewMemoryKV(), func() {}, nil
}

// warmupGateway probes the payment gateway until it answers. Pay requests are
// refused with 503 until then.
func warmupGateway(ctx context.Context, gateway *payment.HTTPGateway, log *slog.Logger) {
	backoff := time.Second
	for {
		err := gateway.Warmup(ctx)
		if err == nil {
			log.Info("payment gateway ready")
			return
		}
		log.Warn("payment gateway not ready", "error", err, "retry_in", backoff.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
