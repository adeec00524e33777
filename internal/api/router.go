package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"bioreactor-monitor/config"
	"bioreactor-monitor/internal/auth"
	"bioreactor-monitor/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(h.log), cors(cfg.AllowedOrigins))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// A zero TTL would make go-cache keep entries forever, so it disables caching.
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)
	if ttl <= 0 {
		caching = func(c *gin.Context) { c.Next() }
	}
	invalidate := mw.Invalidate(cacheStore)

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", h.ServeWS)

	api := r.Group("/api/" + cfg.APIVersion)
	api.Use(rateLimiter)

	// Acquisition endpoints authenticate with an API key, not a user token.
	dataup := api.Group("/dataup", h.auth.RequireAPIKey(), invalidate)
	{
		dataup.POST("/push-data", h.PushData)
		dataup.POST("/bulk-push-data", h.BulkPushData)
	}

	writers := auth.RequireRole(auth.RoleAdmin, auth.RoleNormal)
	admin := auth.RequireRole(auth.RoleAdmin)

	authed := api.Group("", h.auth.RequireAuth())
	{
		data := authed.Group("/data")
		data.GET("/:reactorId/dashboard", caching, h.GetDashboardData)
		data.GET("/:reactorId/:dataType", caching, h.GetReactorData)
		data.GET("/:reactorId/:dataType/latest", caching, h.GetLatestData)
		data.GET("/:reactorId/:dataType/statistics", caching, h.GetFieldStatistics)
		data.POST("/:reactorId/:dataType", writers, invalidate, h.InsertReactorData)
		data.DELETE("/:reactorId/:dataType", admin, invalidate, h.DeleteOldData)

		authed.GET("/setpoints", h.ListSetPoints)
		authed.GET("/setpoints/:id", h.GetSetPoint)
		authed.POST("/setpoints", writers, h.CreateSetPoint)
		authed.PUT("/setpoints/:id", writers, h.UpdateSetPoint)
		authed.DELETE("/setpoints/:id", writers, h.DeleteSetPoint)

		authed.GET("/alerts", h.ListAlerts)
		authed.POST("/alerts/acknowledge", writers, h.AcknowledgeAlerts)

		authed.GET("/reactors", h.ListReactors)
		authed.POST("/reactors", admin, h.UpsertReactor)

		authed.GET("/push/subscriptions", h.GetSubscription)
		authed.PUT("/push/subscriptions", h.PutSubscription)
		authed.DELETE("/push/subscriptions", h.DeleteSubscription)
	}
	api.GET("/push/vapid_public_key", h.GetVAPIDPublicKey)

	return r
}

// cors answers preflight requests and sets the allow headers for configured origins.
func cors(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (slices.Contains(allowed, "*") || slices.Contains(allowed, origin)) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key, X-Request-ID")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
