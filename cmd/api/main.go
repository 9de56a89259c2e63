package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"b-resto/internal/catalog"
	"b-resto/internal/config"
	"b-resto/internal/database"
	"b-resto/internal/handler"
	"b-resto/internal/notify"
	"b-resto/internal/payment"
	"b-resto/internal/realtime"
	"b-resto/internal/repository"
	"b-resto/internal/router"
	"b-resto/internal/service"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger, cfg.Server.ServiceName)
	logger.Info().Msg("starting b-resto API server")

	// Amounts are JSON numbers for the storefront.
	decimal.MarshalJSONWithoutQuotes = true

	loc, err := cfg.Checkout.Location()
	if err != nil {
		return fmt.Errorf("failed to load time zone %q: %w", cfg.Checkout.TimeZone, err)
	}

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// Initialize repositories
	menuRepo := repository.NewMenuRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)

	menuService := service.NewMenuService(menuRepo, logger)
	if err := importCatalog(ctx, cfg, menuService, logger); err != nil {
		return err
	}

	// Change feed shared by the services and the live subscriptions
	broker, err := newBroker(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer broker.Close()

	hub := realtime.NewHub(broker, orderRepo, logger)
	if err := hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start subscription hub: %w", err)
	}

	notifier, closeNotifier, err := newNotifier(cfg.AMQP, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	redirector := payment.NewPayTech(cfg.Payment, cfg.Checkout.StatusPageURL, logger)
	verifier := payment.NewVerifier(cfg.Payment.APIKey, cfg.Payment.APISecret)
	if !cfg.Payment.Configured() {
		logger.Warn().Msg("PayTech credentials missing, mobile money checkout and IPN are disabled")
	}

	// Initialize services
	orderService := service.NewOrderService(orderRepo, menuRepo, broker, notifier, redirector, service.CheckoutConfig{
		TaxRate:        cfg.Checkout.TaxRate,
		WhatsAppNumber: cfg.Checkout.WhatsAppNumber,
		StatusPageURL:  cfg.Checkout.StatusPageURL,
	}, logger)
	boardService := service.NewBoardService(orderRepo, broker, loc, logger)
	paymentService := service.NewPaymentService(orderRepo, verifier, broker, logger)

	// Initialize HTTP handlers
	menuHandler := handler.NewMenuHandler(menuService, logger)
	orderHandler := handler.NewOrderHandler(orderService, cfg.Checkout.TaxRate, logger)
	adminHandler := handler.NewAdminHandler(boardService, logger)
	liveHandler := handler.NewLiveHandler(hub, boardService, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, logger)

	// Initialize router
	mux := router.New(
		menuHandler,
		orderHandler,
		adminHandler,
		liveHandler,
		paymentHandler,
		cfg.Auth.APIKey,
		cfg.Server.ServiceName,
		logger,
	)

	// Create HTTP server. Live streams are long-lived, so writes are bounded
	// per frame by the live handler instead of a server-wide WriteTimeout.
	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// importCatalog upserts the configured menu catalogues, from S3 when enabled
// with the local file system as fallback.
func importCatalog(ctx context.Context, cfg *config.Config, menu service.MenuService, logger zerolog.Logger) error {
	if len(cfg.Catalog.Sources) == 0 {
		logger.Info().Msg("no catalogue sources configured, serving the stored menu")
		return nil
	}

	fileLoader := catalog.NewFileLoader(logger)
	var s3Loader catalog.Loader
	if cfg.S3.Enabled {
		loader, err := catalog.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			s3Loader = loader
		}
	} else {
		logger.Info().Msg("using local file system for catalogue files (S3 disabled)")
	}

	loader := catalog.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, s3Loader != nil, logger)
	items, err := catalog.LoadAll(ctx, loader, cfg.Catalog.Sources, logger)
	if err != nil {
		return fmt.Errorf("failed to load menu catalogue: %w", err)
	}

	if err := menu.Import(ctx, items); err != nil {
		return fmt.Errorf("failed to import menu catalogue: %w", err)
	}
	return nil
}

func newBroker(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (realtime.Broker, error) {
	if !cfg.Enabled() {
		logger.Info().Msg("REDIS_URL not set, using in-process change broker")
		return realtime.NewLocalBroker(256), nil
	}

	broker, err := realtime.NewRedisBroker(ctx, cfg.URL, cfg.Channel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return broker, nil
}

func newNotifier(cfg config.AMQPConfig, logger zerolog.Logger) (notify.Notifier, func(), error) {
	if !cfg.Enabled() {
		logger.Info().Msg("AMQP_URL not set, kitchen notifications are logged only")
		return notify.NewNopNotifier(logger), func() {}, nil
	}

	pool, err := notify.NewChannelPool(cfg.URL, cfg.Queue, cfg.PoolSize, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	return notify.NewAMQPNotifier(pool, cfg.Queue, logger), pool.Close, nil
}
