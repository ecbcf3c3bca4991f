package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jadorel/afrimarket-backend/api/controllers"
	webhookcontrollers "github.com/jadorel/afrimarket-backend/api/controllers/webhooks"
	"github.com/jadorel/afrimarket-backend/api/middleware"
	"github.com/jadorel/afrimarket-backend/internal/cart"
	checkoutsvc "github.com/jadorel/afrimarket-backend/internal/checkout"
	"github.com/jadorel/afrimarket-backend/internal/customers"
	"github.com/jadorel/afrimarket-backend/internal/notifications"
	"github.com/jadorel/afrimarket-backend/internal/orders"
	"github.com/jadorel/afrimarket-backend/internal/payments"
	"github.com/jadorel/afrimarket-backend/pkg/auth/session"
	"github.com/jadorel/afrimarket-backend/pkg/config"
	"github.com/jadorel/afrimarket-backend/pkg/logger"
	"github.com/jadorel/afrimarket-backend/pkg/redis"
)

// Services bundles everything the router hands to controllers.
type Services struct {
	Customers     customers.Service
	Cart          cart.Service
	Checkout      checkoutsvc.Service
	Orders        orders.Service
	Payments      payments.Service
	Notifications notifications.Service
	Webhook       webhookcontrollers.FedaPayWebhookService
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg))
	})

	// The gateway is configured with the unversioned path; the versioned
	// alias keeps older dashboard configurations working.
	fedapayHook := webhookcontrollers.FedaPayWebhook(svcs.Webhook, cfg.FedaPay.WebhookSecret, logg)
	r.Post("/webhooks/fedapay", fedapayHook)
	r.Post("/api/v1/webhooks/fedapay", fedapayHook)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(svcs.Customers, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(svcs.Customers, logg))
		r.Post("/refresh", controllers.AuthRefresh(svcs.Customers, logg))
		r.Post("/logout", controllers.AuthLogout(svcs.Customers, cfg.JWT, logg))
	})

	// Cart and checkout serve both guests and authenticated customers.
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/api/v1/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(svcs.Cart, logg))
			r.Post("/items", controllers.CartAddItem(svcs.Cart, logg))
			r.Put("/items/{itemID}", controllers.CartUpdateItem(svcs.Cart, logg))
			r.Delete("/items/{itemID}", controllers.CartRemoveItem(svcs.Cart, logg))
			r.Post("/coupon", controllers.CartApplyCoupon(svcs.Cart, logg))
			r.Delete("/coupon", controllers.CartRemoveCoupon(svcs.Cart, logg))
		})

		r.Post("/api/v1/checkout", controllers.Checkout(svcs.Checkout, svcs.Payments, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/api/v1/customers/me", func(r chi.Router) {
			r.Get("/", controllers.CustomerProfile(svcs.Customers, logg))
			r.Patch("/", controllers.CustomerProfileUpdate(svcs.Customers, logg))
		})

		r.Route("/api/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(svcs.Orders, logg))
			r.Get("/{orderID}", controllers.OrderGet(svcs.Orders, logg))
			r.Post("/{orderID}/cancel", controllers.OrderCancel(svcs.Orders, logg))
			r.Post("/{orderID}/payment", controllers.OrderPaymentInitialize(svcs.Orders, svcs.Payments, logg))
		})

		r.Route("/api/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationsCount(svcs.Notifications, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
		})
	})

	return r
}
