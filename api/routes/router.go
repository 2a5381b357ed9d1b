package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cartloop/cartloop-backend/api/controllers"
	"github.com/cartloop/cartloop-backend/api/middleware"
	"github.com/cartloop/cartloop-backend/internal/cart"
	"github.com/cartloop/cartloop-backend/internal/delivery"
	"github.com/cartloop/cartloop-backend/internal/ledger"
	"github.com/cartloop/cartloop-backend/internal/orders"
	"github.com/cartloop/cartloop-backend/internal/payments"
	razorpaywebhook "github.com/cartloop/cartloop-backend/internal/webhooks/razorpay"
	"github.com/cartloop/cartloop-backend/pkg/config"
	"github.com/cartloop/cartloop-backend/pkg/db"
	"github.com/cartloop/cartloop-backend/pkg/enums"
	"github.com/cartloop/cartloop-backend/pkg/logger"
	"github.com/cartloop/cartloop-backend/pkg/metrics"
	"github.com/cartloop/cartloop-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Registry *prometheus.Registry

	CartService     cart.Service
	OrdersService   orders.Service
	PaymentsService payments.Service
	DeliveryService delivery.Service
	LedgerService   ledger.Service
	WebhookService  *razorpaywebhook.Service
	Commerce        *metrics.CommerceMetrics
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var cache redis.Pinger
	if p.Redis != nil {
		cache = p.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.DB, cache, logg))
	})

	if p.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	// provider deliveries authenticate by signature, not bearer token
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", controllers.RazorpayWebhook(p.WebhookService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		if p.Redis != nil {
			r.Use(middleware.Idempotency(p.Redis, logg))
		}

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(p.CartService, logg))
			r.Post("/items", controllers.AddCartItem(p.CartService, logg))
			r.Patch("/items/{itemId}", controllers.UpdateCartItem(p.CartService, logg))
			r.Delete("/items/{itemId}", controllers.RemoveCartItem(p.CartService, logg))
			r.Delete("/", controllers.ClearCart(p.CartService, logg))
		})

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(p.OrdersService, logg))
			r.Post("/", controllers.PlaceOrder(p.OrdersService, p.Commerce, logg))
			r.Post("/cart", controllers.PlaceOrderFromCart(p.OrdersService, p.Commerce, logg))
			r.Get("/{orderId}", controllers.GetOrder(p.OrdersService, logg))
		})

		r.Route("/v1/payments", func(r chi.Router) {
			r.Post("/session", controllers.OpenPaymentSession(p.PaymentsService, logg))
			r.Post("/verify", controllers.VerifyPayment(p.PaymentsService, logg))
		})

		r.Route("/v1/deliveries", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.MemberRoleDeliveryPartner, logg))
			r.Get("/", controllers.ListMyDeliveries(p.DeliveryService, logg))
			r.Patch("/{deliveryId}", controllers.UpdateDeliveryStatus(p.DeliveryService, logg))
		})

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.MemberRoleAdmin, logg))
			r.Patch("/orders/{orderId}/status", controllers.UpdateOrderStatus(p.OrdersService, logg))
			r.Post("/deliveries", controllers.AssignDelivery(p.DeliveryService, logg))
			r.Route("/inventory", func(r chi.Router) {
				r.Post("/restock", controllers.Restock(p.LedgerService, p.Commerce, logg))
				r.Post("/reserve", controllers.ReserveStock(p.LedgerService, p.Commerce, logg))
				r.Get("/{productId}/summary", controllers.StockSummary(p.LedgerService, logg))
				r.Get("/{productId}/entries", controllers.StockEntries(p.LedgerService, logg))
			})
		})
	})

	return r
}
