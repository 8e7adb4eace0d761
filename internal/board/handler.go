package board

import (
	"net/http"

	"funnelboard_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// listQuery binds the query parameters of the contact listing endpoints.
type listQuery struct {
	Query    string `form:"q"`
	PerPage  int    `form:"per_page"`
	MaxPages int    `form:"max_pages"`
	Refresh  bool   `form:"refresh"`
}

// Handler exposes the board read endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Contacts handles GET /api/contacts.
func (h *Handler) Contacts(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid query parameters", nil)
		return
	}

	contacts, err := h.svc.ListContacts(c.Request.Context(), ListOptions{
		Query:    q.Query,
		PerPage:  q.PerPage,
		MaxPages: q.MaxPages,
		Refresh:  q.Refresh,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"contacts": contacts})
}

// Board handles GET /api/board.
func (h *Handler) Board(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid query parameters", nil)
		return
	}

	columns, err := h.svc.Board(c.Request.Context(), ListOptions{
		Query:    q.Query,
		PerPage:  q.PerPage,
		MaxPages: q.MaxPages,
		Refresh:  q.Refresh,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"columns": columns})
}

// Labels handles GET /api/contacts/:id/labels.
func (h *Handler) Labels(c *gin.Context) {
	labels, err := h.svc.ContactLabels(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"labels": labels})
}

// Conversations handles GET /api/contacts/:id/conversations.
func (h *Handler) Conversations(c *gin.Context) {
	conversations, err := h.svc.ContactConversations(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"conversations": conversations})
}
