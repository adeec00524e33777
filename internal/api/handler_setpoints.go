package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/model"
	"bioreactor-monitor/internal/store"
)

type setPointRequest struct {
	ReactorID int64    `json:"reactor_id"`
	DataType  string   `json:"data_type"`
	FieldName string   `json:"field_name"`
	MinValue  *float64 `json:"min_value"`
	MaxValue  *float64 `json:"max_value"`
	Severity  string   `json:"severity"`
	IsActive  *bool    `json:"is_active"`
}

func (h *Handler) setPointFrom(req setPointRequest) *model.SetPoint {
	sp := &model.SetPoint{
		ReactorID: req.ReactorID,
		DataType:  model.DataType(req.DataType),
		FieldName: req.FieldName,
		MinValue:  req.MinValue,
		MaxValue:  req.MaxValue,
		Severity:  model.Severity(req.Severity),
		IsActive:  true,
	}
	if sp.Severity == "" {
		sp.Severity = h.defaultSeverity
	}
	if req.IsActive != nil {
		sp.IsActive = *req.IsActive
	}
	return sp
}

// ListSetPoints handles GET /setpoints?reactorId=&dataType=&active=true.
func (h *Handler) ListSetPoints(c *gin.Context) {
	var f store.SetPointFilter
	if raw := c.Query("reactorId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, apperr.CodeValidation, "invalid reactorId")
			return
		}
		f.ReactorID = id
	}
	if raw := c.Query("dataType"); raw != "" {
		dt, ok := model.ParseDataType(raw)
		if !ok {
			badRequest(c, apperr.CodeUnknownDataType, "unknown data type %q", raw)
			return
		}
		f.DataType = dt
	}
	f.ActiveOnly = c.Query("active") == "true"

	sps, err := h.store.ListSetPoints(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(sps), "data": sps})
}

// GetSetPoint handles GET /setpoints/:id.
func (h *Handler) GetSetPoint(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	sp, err := h.store.GetSetPoint(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": sp})
}

// CreateSetPoint handles POST /setpoints.
func (h *Handler) CreateSetPoint(c *gin.Context) {
	var req setPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, apperr.CodeValidation, "invalid JSON body")
		return
	}
	sp := h.setPointFrom(req)
	sp.CreatedBy = currentUser(c)
	if err := h.store.CreateSetPoint(c.Request.Context(), sp); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": sp})
}

// UpdateSetPoint handles PUT /setpoints/:id. The body replaces every mutable field.
func (h *Handler) UpdateSetPoint(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req setPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, apperr.CodeValidation, "invalid JSON body")
		return
	}
	sp := h.setPointFrom(req)
	sp.ID = id
	if err := h.store.UpdateSetPoint(c.Request.Context(), sp); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": sp})
}

// DeleteSetPoint handles DELETE /setpoints/:id.
func (h *Handler) DeleteSetPoint(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteSetPoint(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "setpoint deleted"})
}
