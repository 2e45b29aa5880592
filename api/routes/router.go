package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minhdang/storefront-backend/api/controllers"
	"github.com/minhdang/storefront-backend/api/middleware"
	cartsvc "github.com/minhdang/storefront-backend/internal/cart"
	checkoutsvc "github.com/minhdang/storefront-backend/internal/checkout"
	ordersvc "github.com/minhdang/storefront-backend/internal/orders"
	vouchersvc "github.com/minhdang/storefront-backend/internal/voucher"
	"github.com/minhdang/storefront-backend/pkg/config"
	"github.com/minhdang/storefront-backend/pkg/db"
	"github.com/minhdang/storefront-backend/pkg/logger"
	"github.com/minhdang/storefront-backend/pkg/redis"
)

// Services bundles everything the HTTP surface depends on.
type Services struct {
	Cart     cartsvc.Service
	Checkout checkoutsvc.Service
	Orders   ordersvc.Service
	Vouchers *vouchersvc.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	registry *prometheus.Registry,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ExtractIdentity(logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(svcs.Cart, logg))
			r.Post("/items", controllers.CartAddItem(svcs.Cart, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(svcs.Cart, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(svcs.Cart, logg))
			r.Patch("/items/{itemId}/selected", controllers.CartSelectItem(svcs.Cart, logg))
			r.Patch("/selected", controllers.CartSelectAll(svcs.Cart, logg))
			r.Delete("/", controllers.CartClear(svcs.Cart, logg))
			r.Post("/merge", controllers.CartMerge(svcs.Cart, logg))
		})

		r.Post("/vouchers/preview", controllers.VoucherPreview(svcs.Vouchers, logg))

		r.Post("/checkout", controllers.CheckoutCreateOrder(svcs.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(svcs.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(svcs.Orders, logg))
			r.Post("/{orderId}/return", controllers.OrderRequestReturn(svcs.Orders, logg))
		})
	})

	// Admin and payment-provider surfaces sit behind the gateway's own
	// authentication, same as the identity headers above.
	r.Route("/api/admin/v1/orders", func(r chi.Router) {
		r.Post("/{orderId}/transition", controllers.AdminOrderTransition(svcs.Orders, logg))
		r.Post("/{orderId}/cancel", controllers.AdminOrderCancel(svcs.Orders, logg))
		r.Post("/{orderId}/return/approve", controllers.AdminOrderApproveReturn(svcs.Orders, logg))
	})

	r.Post("/api/v1/payments/{orderId}/callback", controllers.OrderPaymentCallback(svcs.Orders, logg))

	return r
}
