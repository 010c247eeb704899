package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/storefront/internal/cache"
	"github.com/geocoder89/storefront/internal/catalog"
	"github.com/geocoder89/storefront/internal/config"
	"github.com/geocoder89/storefront/internal/http/handlers"
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

// Deps is everything the router needs from main. Prom, Gatherer, Views,
// Checks and Draining are optional.
type Deps struct {
	Log    *slog.Logger
	Config config.Config

	Guard    middlewares.Resolver
	Users    handlers.UserDirectory
	Identity handlers.LocalIdentity
	Catalog  *catalog.Service
	Views    *cache.Cache[catalog.View]

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Checks   map[string]handlers.Pinger
	Draining func() bool
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(observability.ServiceName))
	r.Use(middlewares.RequestLogger(d.Log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Config.CORSOrigins))

	// ops
	health := handlers.NewHealthHandler(d.Checks, d.Draining)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	authHandler := handlers.NewAuthHandler(d.Users, d.Identity, handlers.AuthConfig{
		SecureCookie: d.Config.Env == "prod",
	}, d.Log)
	adminHandler := handlers.NewAdminHandler(d.Guard, d.Catalog, d.Users, d.Log)
	catalogHandler := handlers.NewCatalogHandler(d.Catalog, d.Views, d.Log)

	api := r.Group("/api")
	api.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	api.Use(middlewares.RequireJSON())

	limiter := middlewares.NewRateLimiter(10, time.Minute)

	auth := api.Group("/auth")
	{
		auth.POST("/signup", authHandler.SignUp)
		auth.GET("/check-role", middlewares.ResolveCaller(d.Guard), authHandler.CheckRole)
		auth.POST("/register", limiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Register)
		auth.POST("/signin", limiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.SignIn)
		auth.POST("/signout", authHandler.SignOut)

		if d.Config.SelfElevationEnabled() {
			d.Log.Warn("self elevation route enabled", "route", "/api/auth/set-admin")
			auth.POST("/set-admin", middlewares.ResolveCaller(d.Guard), authHandler.SetAdmin)
		}
	}

	api.GET("/catalog", catalogHandler.Browse)

	// the shell answers for every decision, so it sits outside RequireAdmin
	api.GET("/admin/shell", adminHandler.Shell)

	admin := api.Group("/admin", middlewares.RequireAdmin(d.Guard))
	{
		admin.GET("/dashboard", adminHandler.Dashboard)
		admin.POST("/users/:authId/elevate", adminHandler.Elevate)

		admin.GET("/categories", catalogHandler.ListCategories)
		admin.POST("/categories", catalogHandler.CreateCategory)
		admin.PUT("/categories/:id", catalogHandler.UpdateCategory)
		admin.DELETE("/categories/:id", catalogHandler.DeleteCategory)

		admin.GET("/products", catalogHandler.ListProducts)
		admin.POST("/products", catalogHandler.CreateProduct)
		admin.PUT("/products/:id", catalogHandler.UpdateProduct)
		admin.DELETE("/products/:id", catalogHandler.DeleteProduct)
	}

	pages := r.Group("/admin", middlewares.AdminGate(d.Guard, d.Config.LoginPath))
	{
		pages.GET("", adminHandler.Shell)
		pages.GET("/*path", adminHandler.Shell)
	}

	return r
}
