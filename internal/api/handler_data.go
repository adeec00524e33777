package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/model"
	"bioreactor-monitor/internal/parse"
	"bioreactor-monitor/internal/store"
)

// dashboardRecent is the number of records per type in the dashboard's recent series.
const dashboardRecent = 10

// PushData handles POST /dataup/push-data with a single payload keyed by data type.
// Acquisition watchers retry anything but 200, so success is always 200.
func (h *Handler) PushData(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, apperr.CodeValidation, "invalid JSON body")
		return
	}
	res, err := h.ingest.Push(c.Request.Context(), payload)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Data inserted successfully", "data": res})
}

type bulkPushRequest struct {
	DataArray []map[string]any `json:"dataArray"`
}

// BulkPushData handles POST /dataup/bulk-push-data. Each element is ingested on its own.
// The response is 200 when at least one record was stored; the counts report the rest.
func (h *Handler) BulkPushData(c *gin.Context) {
	var req bulkPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, apperr.CodeValidation, "invalid JSON body")
		return
	}
	if len(req.DataArray) == 0 {
		badRequest(c, apperr.CodeMissingField, "dataArray must be a non-empty array")
		return
	}
	res := h.ingest.PushBulk(c.Request.Context(), req.DataArray)
	status := http.StatusOK
	if res.SuccessCount == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{
		"success":      res.SuccessCount > 0,
		"successCount": res.SuccessCount,
		"failureCount": res.FailureCount,
		"failures":     res.Failures,
		"data":         res.Data,
	})
}

// InsertReactorData handles POST /data/:reactorId/:dataType with one object or an array.
func (h *Handler) InsertReactorData(c *gin.Context) {
	reactorID, ok := int64Param(c, "reactorId")
	if !ok {
		return
	}
	dt, ok := dataTypeParam(c)
	if !ok {
		return
	}

	var body any
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, apperr.CodeValidation, "invalid JSON body")
		return
	}
	var items []map[string]any
	switch v := body.(type) {
	case map[string]any:
		items = []map[string]any{v}
	case []any:
		for _, raw := range v {
			obj, ok := raw.(map[string]any)
			if !ok {
				badRequest(c, apperr.CodeValidation, "array elements must be objects")
				return
			}
			items = append(items, obj)
		}
	default:
		badRequest(c, apperr.CodeValidation, "body must be an object or an array of objects")
		return
	}

	res, err := h.ingest.PushForReactor(c.Request.Context(), reactorID, dt, items)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Data inserted successfully", "count": len(res), "data": res})
}

func timeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	ts, err := parse.Timestamp(raw)
	if err != nil {
		badRequest(c, apperr.CodeValidation, "invalid %s: %v", name, err)
		return nil, false
	}
	return &ts, true
}

func queryFilter(c *gin.Context) (store.QueryFilter, bool) {
	var f store.QueryFilter
	var ok bool
	if f.Start, ok = timeQuery(c, "startTime"); !ok {
		return f, false
	}
	if f.End, ok = timeQuery(c, "endTime"); !ok {
		return f, false
	}
	if f.Limit, ok = intQuery(c, "limit", store.DefaultQueryLimit); !ok {
		return f, false
	}
	if f.Offset, ok = intQuery(c, "offset", 0); !ok {
		return f, false
	}
	return f, true
}

// GetReactorData handles GET /data/:reactorId/:dataType, newest first.
func (h *Handler) GetReactorData(c *gin.Context) {
	reactorID, ok := int64Param(c, "reactorId")
	if !ok {
		return
	}
	dt, ok := dataTypeParam(c)
	if !ok {
		return
	}
	f, ok := queryFilter(c)
	if !ok {
		return
	}
	recs, err := h.store.QueryByReactor(c.Request.Context(), dt, reactorID, f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(recs), "dataType": dt, "data": recs})
}

// GetLatestData handles GET /data/:reactorId/:dataType/latest?count=N.
func (h *Handler) GetLatestData(c *gin.Context) {
	reactorID, ok := int64Param(c, "reactorId")
	if !ok {
		return
	}
	dt, ok := dataTypeParam(c)
	if !ok {
		return
	}
	count, ok := intQuery(c, "count", 1)
	if !ok {
		return
	}
	recs, err := h.store.QueryLatest(c.Request.Context(), dt, reactorID, count)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "dataType": dt, "data": recs})
}

// GetFieldStatistics handles GET /data/:reactorId/:dataType/statistics.
func (h *Handler) GetFieldStatistics(c *gin.Context) {
	reactorID, ok := int64Param(c, "reactorId")
	if !ok {
		return
	}
	dt, ok := dataTypeParam(c)
	if !ok {
		return
	}
	field := c.Query("fieldName")
	if field == "" || c.Query("startTime") == "" || c.Query("endTime") == "" {
		badRequest(c, apperr.CodeMissingField, "fieldName, startTime, and endTime are required")
		return
	}
	f, ok := queryFilter(c)
	if !ok {
		return
	}
	stats, err := h.store.FieldStats(c.Request.Context(), dt, reactorID, field, f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "dataType": dt, "fieldName": field, "data": stats})
}

// GetDashboardData handles GET /data/:reactorId/dashboard: the newest record and a short
// recent series for every data type.
func (h *Handler) GetDashboardData(c *gin.Context) {
	reactorID, ok := int64Param(c, "reactorId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	latest := make(map[model.DataType]model.SensorRecord)
	recent := make(map[model.DataType][]model.SensorRecord)
	for _, dt := range model.AllDataTypes() {
		recs, err := h.store.QueryLatest(ctx, dt, reactorID, dashboardRecent)
		if err != nil {
			fail(c, err)
			return
		}
		recent[dt] = recs
		if len(recs) > 0 {
			latest[dt] = recs[0]
		} else {
			latest[dt] = nil
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"latest": latest, "recent": recent}})
}

type deleteDataRequest struct {
	BeforeDate string `json:"beforeDate"`
}

// DeleteOldData handles DELETE /data/:reactorId/:dataType with {"beforeDate": ...}.
func (h *Handler) DeleteOldData(c *gin.Context) {
	reactorID, ok := int64Param(c, "reactorId")
	if !ok {
		return
	}
	dt, ok := dataTypeParam(c)
	if !ok {
		return
	}
	var req deleteDataRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BeforeDate == "" {
		badRequest(c, apperr.CodeMissingField, "beforeDate is required")
		return
	}
	cutoff, err := parse.Timestamp(req.BeforeDate)
	if err != nil {
		badRequest(c, apperr.CodeValidation, "invalid beforeDate: %v", err)
		return
	}
	n, err := h.store.DeleteBefore(c.Request.Context(), dt, reactorID, cutoff)
	if err != nil {
		fail(c, err)
		return
	}
	h.log.Info().Int64("reactor_id", reactorID).Str("data_type", string(dt)).Int64("deleted", n).Msg("deleted old records")
	c.JSON(http.StatusOK, gin.H{"success": true, "deletedCount": n})
}
