package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/EcommerceGo/pkg/health"
	"github.com/utafrali/EcommerceGo/pkg/middleware"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/relay"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/session"
)

const serviceName = "storefront"

// catalogMaxAge is the Cache-Control max-age for public catalog reads.
const catalogMaxAge = 60

// RouterConfig carries the HTTP-facing settings of the storefront.
type RouterConfig struct {
	Environment        string
	CORSAllowedOrigins []string
	PprofCIDRs         []string
	LoginPath          string
	SecureCookie       bool
}

// Dependencies are the collaborators the routes delegate to.
type Dependencies struct {
	Registry     *session.Registry
	Codec        *session.Codec
	Relay        http.Handler
	RelayLimiter *RateLimiter
	Auth         AuthService
	Catalog      CatalogService
	Orders       OrderService
	Settings     SettingsService
	Health       *health.Handler
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(cfg RouterConfig, deps Dependencies, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		ExposedHeaders:   []string{middleware.CorrelationIDHeader},
		AllowCredentials: true,
		Environment:      cfg.Environment,
	}))

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	// Image relay
	r.With(deps.RelayLimiter.Middleware).
		Get(relay.RoutePrefix+"*", deps.Relay.ServeHTTP)

	catalogHandler := NewCatalogHandler(deps.Catalog, logger)
	cartHandler := NewCartHandler(logger)
	sessionHandler := NewSessionHandler(deps.Auth, logger)
	accountHandler := NewAccountHandler(deps.Orders, cfg.LoginPath, logger)
	checkoutHandler := NewCheckoutHandler(deps.Settings, logger)
	adminHandler := NewAdminHandler(deps.Orders, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Use(middleware.CacheControl(catalogMaxAge))

			r.Get("/products", catalogHandler.ListProducts)
			r.Get("/products/{slug}", catalogHandler.GetProduct)
			r.Get("/categories", catalogHandler.ListCategories)
			r.Get("/brands", catalogHandler.ListBrands)
		})

		// Everything below is bound to the browser session.
		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Use(session.Middleware(deps.Registry, deps.Codec, cfg.SecureCookie, logger))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)

				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{productId}", cartHandler.UpdateQuantity)
				r.Delete("/items/{productId}", cartHandler.RemoveItem)
			})

			r.Route("/session", func(r chi.Router) {
				r.Get("/", sessionHandler.GetSession)
				r.Post("/login", sessionHandler.Login)
				r.Post("/logout", sessionHandler.Logout)
			})

			r.Route("/account", func(r chi.Router) {
				r.Get("/orders", accountHandler.ListOrders)
				r.Get("/orders/{orderId}", accountHandler.GetOrder)
			})

			r.Get("/checkout/summary", checkoutHandler.Summary)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAuth())
				r.Use(middleware.RequireRole(middleware.RoleAdmin))

				r.Get("/", adminHandler.Overview)
				r.Get("/orders", adminHandler.ListOrders)
			})
		})
	})

	return r
}
