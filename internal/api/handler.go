package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/auth"
	"bioreactor-monitor/internal/ingest"
	"bioreactor-monitor/internal/model"
	"bioreactor-monitor/internal/realtime"
	"bioreactor-monitor/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store           store.Store
	ingest          *ingest.Service
	hub             *realtime.Broadcaster
	auth            *auth.Manager
	webpush         *webpush.Options
	realtime        realtime.Options
	defaultSeverity model.Severity
	allowedOrigins  []string
	log             zerolog.Logger
}

// Deps are the collaborators the handlers need. Webpush may be nil when push is disabled.
type Deps struct {
	Store           store.Store
	Ingest          *ingest.Service
	Hub             *realtime.Broadcaster
	Auth            *auth.Manager
	Webpush         *webpush.Options
	Realtime        realtime.Options
	DefaultSeverity model.Severity
	AllowedOrigins  []string
	Log             zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	sev := d.DefaultSeverity
	if sev == "" {
		sev = model.SeverityWarning
	}
	return &Handler{
		store:           d.Store,
		ingest:          d.Ingest,
		hub:             d.Hub,
		auth:            d.Auth,
		webpush:         d.Webpush,
		realtime:        d.Realtime,
		defaultSeverity: sev,
		allowedOrigins:  d.AllowedOrigins,
		log:             d.Log,
	}
}

// fail renders err as {"success": false, "code", "message"}.
func fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	code := apperr.CodeOf(err)
	message := err.Error()
	if e, ok := apperr.As(err); ok {
		message = e.Message
	}
	var se *ingest.StageError
	if errors.As(err, &se) {
		c.AbortWithStatusJSON(status, gin.H{"success": false, "code": code, "message": message, "stage": se.Stage, "index": se.Index})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "code": code, "message": message})
}

func badRequest(c *gin.Context, code, format string, args ...any) {
	fail(c, apperr.Validation(code, format, args...))
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, apperr.CodeValidation, "invalid %s", name)
		return 0, false
	}
	return v, true
}

func dataTypeParam(c *gin.Context) (model.DataType, bool) {
	dt, ok := model.ParseDataType(c.Param("dataType"))
	if !ok {
		badRequest(c, apperr.CodeUnknownDataType, "unknown data type %q", c.Param("dataType"))
		return "", false
	}
	return dt, true
}

func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(c, apperr.CodeValidation, "invalid %s", name)
		return 0, false
	}
	return v, true
}

func currentUser(c *gin.Context) string {
	if id, ok := auth.FromContext(c); ok {
		return id.Username
	}
	return ""
}

// Health reports whether the database is reachable.
func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "status": "unhealthy", "code": apperr.CodeOf(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"status":      "healthy",
		"connections": h.hub.Connections(),
	})
}
