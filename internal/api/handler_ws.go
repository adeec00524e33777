package api

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/auth"
	"bioreactor-monitor/internal/realtime"
)

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
}

// checkOrigin accepts clients without an Origin header and, when allowed origins are
// configured, only those origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.allowedOrigins, origin) || slices.Contains(h.allowedOrigins, "*")
}

// ServeWS authenticates the caller, upgrades the connection and hands it to the
// broadcaster. Connections without a valid token are refused before the upgrade.
func (h *Handler) ServeWS(c *gin.Context) {
	token, ok := auth.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		token = c.Query("token")
	}
	if token == "" {
		fail(c, apperr.Unauthorized("authentication token required"))
		return
	}
	identity, err := h.auth.Verify(token)
	if err != nil {
		h.log.Warn().Err(err).Str("remote_addr", c.ClientIP()).Msg("websocket authentication failed")
		fail(c, apperr.Unauthorized("invalid token"))
		return
	}

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := realtime.NewClient(h.hub, conn, identity, h.realtime)
	h.log.Info().Str("conn_id", client.ID()).Str("user", identity.Username).Str("role", string(identity.Role)).Msg("websocket client connected")
	if err := client.Serve(); err != nil {
		h.log.Warn().Err(err).Str("conn_id", client.ID()).Msg("websocket client rejected")
		return
	}
	h.log.Info().Str("conn_id", client.ID()).Msg("websocket client disconnected")
}
