package funnel

import (
	"net/http"

	"funnelboard_backend/platform/httpkit"
	"funnelboard_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// MoveRequest is the body of PUT /api/contacts/:id/move. An empty stage is
// permitted and moves the contact to the "no funnel" column. previousStage
// is optional; when present it enables revert and prior-label removal, and
// an empty value means the contact previously had no funnel.
type MoveRequest struct {
	Stage         string  `json:"stage" validate:"max=255"`
	PreviousStage *string `json:"previousStage" validate:"omitempty,max=255"`
}

// Handler exposes the stage-move endpoint.
type Handler struct {
	svc *Service
	val *validator.Validator
}

func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Move handles PUT /api/contacts/:id/move.
func (h *Handler) Move(c *gin.Context) {
	contactID := c.Param("id")

	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	result, err := h.svc.Move(c.Request.Context(), contactID, req.Stage, req.PreviousStage)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}
