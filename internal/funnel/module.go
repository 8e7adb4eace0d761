package funnel

import (
	"funnelboard_backend/internal/chatwoot"
	apphttp "funnelboard_backend/internal/http"
	"funnelboard_backend/platform/config"
	"funnelboard_backend/platform/logger"
	"funnelboard_backend/platform/validator"
)

// Module is the funnel bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates and initializes the funnel module. api may be nil when
// Chatwoot credentials are missing; the move endpoint then fails fast with
// a missing-configuration error.
func NewModule(api *chatwoot.Client, cfg config.FunnelConfig, val *validator.Validator, log *logger.Logger) *Module {
	var contactAPI ContactAPI
	if api != nil {
		contactAPI = api
	}

	svc := NewService(contactAPI, cfg.GetLabelStrategy(), log)
	handler := NewHandler(svc, val)

	return &Module{handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "funnel"
}

// RegisterRoutes mounts funnel routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Moves fan out into several upstream writes each; they get their own,
	// stricter rate limit.
	ctx.API.PUT("/contacts/:id/move", ctx.MoveRateLimiter.RateLimit(), m.handler.Move)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
