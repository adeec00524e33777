package auth

import (
	"slices"

	"github.com/gin-gonic/gin"

	"bioreactor-monitor/internal/apperr"
)

const identityKey = "auth.identity"

// RequireAuth rejects requests without a valid bearer token and stores the identity on
// the gin context.
func (m *Manager) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, apperr.Unauthorized("authorization header required"))
			return
		}
		id, err := m.Verify(token)
		if err != nil {
			abort(c, apperr.Unauthorized(err.Error()))
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRole allows only the listed roles. It must run after RequireAuth.
func RequireRole(roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := FromContext(c)
		if !ok {
			abort(c, apperr.Unauthorized("authentication required"))
			return
		}
		if !slices.Contains(roles, id.Role) {
			abort(c, apperr.Forbidden("insufficient permissions"))
			return
		}
		c.Next()
	}
}

// RequireAPIKey guards the acquisition endpoints with the X-API-Key header.
func (m *Manager) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.ValidAPIKey(c.GetHeader("X-API-Key")) {
			abort(c, apperr.Unauthorized("invalid API key"))
			return
		}
		c.Next()
	}
}

// FromContext returns the identity set by RequireAuth.
func FromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

func abort(c *gin.Context, err *apperr.Error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"success": false, "code": err.Code, "message": err.Message})
}
