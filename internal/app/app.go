package app

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/uniedit/mediaupload/cmd/server/docs" // swagger docs
	"github.com/uniedit/mediaupload/internal/infra/config"
	"github.com/uniedit/mediaupload/internal/utils/middleware"
)

// App is the authorization broker server.
type App struct {
	config  *config.Config
	deps    *Dependencies
	cleanup func()
	router  *gin.Engine
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	deps, cleanup, err := InitializeDependencies(cfg)
	if err != nil {
		return nil, fmt.Errorf("init dependencies: %w", err)
	}
	return NewWithDependencies(deps, cleanup), nil
}

// NewWithDependencies builds the application around already constructed
// dependencies. cleanup may be nil.
func NewWithDependencies(deps *Dependencies, cleanup func()) *App {
	if cleanup == nil {
		cleanup = func() {}
	}
	a := &App{
		config:  deps.Config,
		deps:    deps,
		cleanup: cleanup,
	}
	a.router = a.setupRouter()
	return a
}

// Router returns the HTTP handler.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop releases the application's resources.
func (a *App) Stop() {
	a.cleanup()
}

func (a *App) setupRouter() *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	corsCfg := middleware.DefaultCORSConfig()
	if len(a.config.Server.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = a.config.Server.AllowedOrigins
	}

	r.Use(middleware.Recovery(a.deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.deps.Logger))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.Metrics(a.deps.Metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(a.deps.Metrics.Handler()))

	if a.config.Server.EnableSwagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
	}

	api := r.Group("/api")
	if a.config.RateLimit.Enabled && a.deps.RateLimiter != nil {
		api.Use(middleware.RateLimitByIP(
			a.deps.RateLimiter,
			a.config.RateLimit.Limit,
			a.config.RateLimit.Window,
			a.deps.Logger,
		))
	}
	a.deps.BrokerHandler.RegisterRoutes(api)

	return r
}
