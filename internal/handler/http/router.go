package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Innie4/LaceandLegacy/internal/cart"
	"github.com/Innie4/LaceandLegacy/internal/catalog"
	"github.com/Innie4/LaceandLegacy/internal/checkout"
	"github.com/Innie4/LaceandLegacy/internal/order"
	"github.com/Innie4/LaceandLegacy/internal/user"
	"github.com/Innie4/LaceandLegacy/pkg/health"
	"github.com/Innie4/LaceandLegacy/pkg/middleware"
)

const serviceName = "storefront"

// RouterConfig bundles the dependencies the router needs.
type RouterConfig struct {
	UserService     *user.Service
	CatalogService  *catalog.Service
	CartService     *cart.Service
	CheckoutService *checkout.Service
	OrderService    *order.Service
	HealthHandler   *health.Handler
	TokenValidator  middleware.TokenValidator
	CORS            middleware.CORSConfig
	Logger          *slog.Logger

	// PprofAllowedCIDRs restricts who may reach the /debug/pprof endpoints.
	PprofAllowedCIDRs []string
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(cfg.Logger))

	// Health check endpoints
	r.Get("/health/live", cfg.HealthHandler.LivenessHandler())
	r.Get("/health/ready", cfg.HealthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Profiling endpoints, gated by an IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, cfg.Logger)

	authHandler := NewAuthHandler(cfg.UserService, cfg.Logger)
	catalogHandler := NewCatalogHandler(cfg.CatalogService, cfg.Logger)
	cartHandler := NewCartHandler(cfg.CartService, cfg.Logger)
	checkoutHandler := NewCheckoutHandler(cfg.CheckoutService, cfg.Logger)
	orderHandler := NewOrderHandler(cfg.OrderService, cfg.Logger)

	requireAuth := middleware.Auth(cfg.TokenValidator)

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
		})

		r.Route("/products", func(r chi.Router) {
			// The catalog changes rarely, so public reads are cacheable
			// for a short window.
			r.Use(middleware.CacheControl(60))

			r.Get("/", catalogHandler.ListProducts)
			r.Get("/facets", catalogHandler.GetFacets)
			r.Get("/{idOrSlug}", catalogHandler.GetProduct)
		})

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", authHandler.GetProfile)
				r.Put("/", authHandler.UpdateProfile)
				r.Post("/password", authHandler.ChangePassword)
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)

				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{productId}/{size}", cartHandler.UpdateItemQuantity)
				r.Delete("/items/{productId}/{size}", cartHandler.RemoveItem)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", checkoutHandler.Submit)
				r.Get("/{id}", checkoutHandler.GetSession)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", orderHandler.ListOrders)
				r.Get("/{id}", orderHandler.GetOrder)
			})
		})

		// Admin endpoints
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireRole(user.RoleAdmin))

			r.Route("/admin", func(r chi.Router) {
				r.Post("/products", catalogHandler.CreateProduct)
				r.Patch("/products/{id}/stock", catalogHandler.SetStock)
				r.Post("/reindex", catalogHandler.Reindex)
				r.Patch("/orders/{id}/status", orderHandler.UpdateStatus)
			})
		})
	})

	return r
}
