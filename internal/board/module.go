package board

import (
	"funnelboard_backend/internal/chatwoot"
	apphttp "funnelboard_backend/internal/http"
	"funnelboard_backend/platform/logger"
)

// Module is the board bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates and initializes the board module. api may be nil when
// Chatwoot credentials are missing; cache may be nil when Redis is not
// configured.
func NewModule(api *chatwoot.Client, cache *Cache, stageOrder []string, log *logger.Logger) *Module {
	var reader ContactReader
	if api != nil {
		reader = api
	}

	svc := NewService(reader, cache, stageOrder, log)
	handler := NewHandler(svc)

	return &Module{handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "board"
}

// RegisterRoutes mounts board routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.API.GET("/contacts", m.handler.Contacts)
	ctx.API.GET("/contacts/:id/labels", m.handler.Labels)
	ctx.API.GET("/contacts/:id/conversations", m.handler.Conversations)
	ctx.API.GET("/board", m.handler.Board)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
