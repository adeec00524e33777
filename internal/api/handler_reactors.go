package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/model"
)

// ListReactors handles GET /reactors.
func (h *Handler) ListReactors(c *gin.Context) {
	reactors, err := h.store.ListReactors(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(reactors), "data": reactors})
}

type reactorRequest struct {
	ID       int64  `json:"reactor_id"`
	Name     string `json:"reactor_name"`
	Location string `json:"location"`
	IsActive *bool  `json:"is_active"`
}

// UpsertReactor handles POST /reactors.
func (h *Handler) UpsertReactor(c *gin.Context) {
	var req reactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, apperr.CodeValidation, "invalid JSON body")
		return
	}
	r := &model.Reactor{ID: req.ID, Name: req.Name, Location: req.Location, IsActive: true}
	if req.IsActive != nil {
		r.IsActive = *req.IsActive
	}
	if err := h.store.UpsertReactor(c.Request.Context(), r); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": r})
}
