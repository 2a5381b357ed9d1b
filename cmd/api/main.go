package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/cartloop/cartloop-backend/api/routes"
	"github.com/cartloop/cartloop-backend/internal/address"
	"github.com/cartloop/cartloop-backend/internal/cart"
	"github.com/cartloop/cartloop-backend/internal/delivery"
	"github.com/cartloop/cartloop-backend/internal/ledger"
	"github.com/cartloop/cartloop-backend/internal/orders"
	"github.com/cartloop/cartloop-backend/internal/payments"
	razorpaywebhook "github.com/cartloop/cartloop-backend/internal/webhooks/razorpay"
	"github.com/cartloop/cartloop-backend/pkg/config"
	"github.com/cartloop/cartloop-backend/pkg/db"
	"github.com/cartloop/cartloop-backend/pkg/logger"
	"github.com/cartloop/cartloop-backend/pkg/metrics"
	"github.com/cartloop/cartloop-backend/pkg/migrate"
	"github.com/cartloop/cartloop-backend/pkg/razorpay"
	"github.com/cartloop/cartloop-backend/pkg/redis"
)

// provider retries span up to a couple of days, so dedup keys must
// outlive the retry window
const webhookDedupTTL = 72 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	providerClient, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to initialize razorpay client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	commerce := metrics.NewCommerceMetrics(registry)

	gdb := dbClient.DB()
	ledgerSvc, err := ledger.NewService(dbClient, ledger.NewRepository(gdb))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}
	addressSvc, err := address.NewService(address.NewRepository(gdb))
	if err != nil {
		logg.Error(context.Background(), "failed to create address service", err)
		os.Exit(1)
	}
	cartSvc, err := cart.NewService(cart.NewRepository(gdb))
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}
	ordersSvc, err := orders.NewService(dbClient, orders.NewRepository(gdb), ledgerSvc, addressSvc, cart.NewRepository(gdb), cfg.Checkout)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}
	paymentsSvc, err := payments.NewService(dbClient, payments.NewRepository(gdb), ordersSvc, orders.NewRepository(gdb), cart.NewRepository(gdb), ledgerSvc, providerClient, commerce)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}
	deliverySvc, err := delivery.NewService(dbClient, delivery.NewRepository(gdb), ordersSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery service", err)
		os.Exit(1)
	}

	webhookGuard, err := razorpaywebhook.NewIdempotencyGuard(redisClient, webhookDedupTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}
	webhookSvc, err := razorpaywebhook.NewService(razorpaywebhook.ServiceParams{
		Verifier: providerClient,
		Payments: paymentsSvc,
		Guard:    webhookGuard,
		Logger:   logg,
		Metrics:  commerce,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			Registry:        registry,
			CartService:     cartSvc,
			OrdersService:   ordersSvc,
			PaymentsService: paymentsSvc,
			DeliveryService: deliverySvc,
			LedgerService:   ledgerSvc,
			WebhookService:  webhookSvc,
			Commerce:        commerce,
		}),
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stopCtx.Done():
		logg.Info(ctx, "shutdown signal received, draining")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "error draining http server", err)
		}
	}

	if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
		logg.Error(ctx, "error closing backing stores", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
