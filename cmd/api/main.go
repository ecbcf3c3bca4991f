package main

import (
	"context"
	"net/http"
	"os"

	"github.com/jadorel/afrimarket-backend/api/routes"
	cartsvc "github.com/jadorel/afrimarket-backend/internal/cart"
	checkoutsvc "github.com/jadorel/afrimarket-backend/internal/checkout"
	"github.com/jadorel/afrimarket-backend/internal/customers"
	"github.com/jadorel/afrimarket-backend/internal/inventory"
	"github.com/jadorel/afrimarket-backend/internal/notifications"
	"github.com/jadorel/afrimarket-backend/internal/orders"
	"github.com/jadorel/afrimarket-backend/internal/payments"
	"github.com/jadorel/afrimarket-backend/internal/promotions"
	fedapaywebhook "github.com/jadorel/afrimarket-backend/internal/webhooks/fedapay"
	"github.com/jadorel/afrimarket-backend/pkg/auth/session"
	"github.com/jadorel/afrimarket-backend/pkg/config"
	"github.com/jadorel/afrimarket-backend/pkg/db"
	"github.com/jadorel/afrimarket-backend/pkg/fedapay"
	"github.com/jadorel/afrimarket-backend/pkg/logger"
	"github.com/jadorel/afrimarket-backend/pkg/migrate"
	"github.com/jadorel/afrimarket-backend/pkg/outbox"
	"github.com/jadorel/afrimarket-backend/pkg/redis"
	"github.com/joho/godotenv"
)

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
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	inventoryRepo := inventory.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)

	promotionsService, err := promotions.NewService(promotions.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create promotions service", err)
		os.Exit(1)
	}

	inventoryService, err := inventory.NewService(inventoryRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	cartRepo := cartsvc.NewRepository(gormDB)
	cartService, err := cartsvc.NewService(cartRepo, inventoryRepo, promotionsService, cfg.Cart.GuestTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(
		dbClient,
		cartRepo,
		ordersRepo,
		inventoryRepo,
		inventoryService,
		promotionsService,
		outboxService,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxService, inventoryService)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	fedapayClient, err := fedapay.NewClient(context.Background(), cfg.FedaPay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create fedapay client", err)
		os.Exit(1)
	}

	callbackGuard, err := payments.NewIdempotencyGuard(redisClient, cfg.Eventing.IdempotencyTTL, "fedapay-callback")
	if err != nil {
		logg.Error(context.Background(), "failed to create payment callback guard", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(
		payments.NewRepository(gormDB),
		ordersRepo,
		dbClient,
		fedapayClient,
		callbackGuard,
		outboxService,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	webhookService, err := fedapaywebhook.NewService(paymentsService)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	customersService, err := customers.NewService(customers.ServiceParams{
		Repo:           customers.NewRepository(gormDB),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create customers service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, redisClient, sessionManager, routes.Services{
			Customers:     customersService,
			Cart:          cartService,
			Checkout:      checkoutService,
			Orders:        ordersService,
			Payments:      paymentsService,
			Notifications: notificationsService,
			Webhook:       webhookService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
