// Package router assembles the Gin engine: middleware chain, health
// endpoint, and module route registration.
package router

import (
	"net/http"

	apphttp "funnelboard_backend/internal/http"
	"funnelboard_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// New builds the HTTP engine from the initialized application.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app)))

	// Global read limiter; move routes add their own on top.
	limiter := httpkit.NewIPRateLimiter(rate.Limit(20), 40, app.Logger)
	engine.Use(limiter.RateLimit())

	engine.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	ctx := &apphttp.RouterContext{
		Engine:          engine,
		API:             engine.Group("/api"),
		MoveRateLimiter: httpkit.NewMoveRateLimiter(app.Logger),
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(ctx)
		app.Logger.Info("module routes registered", "module", module.Name())
	}

	return engine
}

func corsConfig(app *apphttp.App) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", httpkit.RequestIDHeader}

	if app.Config.GetCORSAllowAll() {
		cfg.AllowAllOrigins = true
		return cfg
	}

	cfg.AllowOrigins = app.Config.GetCORSOrigins()
	cfg.AllowCredentials = app.Config.GetCORSAllowCreds()
	return cfg
}
