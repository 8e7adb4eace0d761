// Package http provides HTTP server infrastructure including the Module
// interface that all domain modules implement for route registration.
package http

import (
	"funnelboard_backend/platform/config"
	"funnelboard_backend/platform/httpkit"
	"funnelboard_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Module represents a bounded context that can register its HTTP routes.
// Each domain module implements this interface to encapsulate its own
// route setup, keeping the main router decoupled from specific endpoints.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes on the provided router group.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext provides shared dependencies for module route registration.
type RouterContext struct {
	// Engine is the root Gin engine for modules that need engine-level access.
	Engine *gin.Engine
	// API is the /api route group.
	API *gin.RouterGroup
	// MoveRateLimiter is the stricter rate limiter for stage-move routes.
	MoveRateLimiter *httpkit.MoveRateLimiter
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the HTTP server configuration.
	Config config.HTTPConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
