package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/store"
)

// ListAlerts handles GET /alerts?reactorId=&acknowledged=&since=&limit=.
func (h *Handler) ListAlerts(c *gin.Context) {
	var f store.AlertFilter
	if raw := c.Query("reactorId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, apperr.CodeValidation, "invalid reactorId")
			return
		}
		f.ReactorID = id
	}
	if raw := c.Query("acknowledged"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, apperr.CodeValidation, "invalid acknowledged")
			return
		}
		f.Acknowledged = &v
	}
	var ok bool
	if f.Since, ok = timeQuery(c, "since"); !ok {
		return
	}
	if f.Limit, ok = intQuery(c, "limit", 0); !ok {
		return
	}

	alerts, err := h.store.ListAlerts(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(alerts), "data": alerts})
}

type acknowledgeRequest struct {
	AlertIDs []int64 `json:"alertIds"`
}

// AcknowledgeAlerts handles POST /alerts/acknowledge. Unknown ids are ignored and
// repeating the call is harmless.
func (h *Handler) AcknowledgeAlerts(c *gin.Context) {
	var req acknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, apperr.CodeValidation, "invalid JSON body")
		return
	}
	if len(req.AlertIDs) == 0 {
		badRequest(c, apperr.CodeMissingField, "alertIds must be a non-empty array")
		return
	}
	n, err := h.store.Acknowledge(c.Request.Context(), req.AlertIDs, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "acknowledgedCount": n})
}
