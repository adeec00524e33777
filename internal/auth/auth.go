// Package auth verifies bearer tokens and gates handlers by role.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bioreactor-monitor/config"
)

// Role is the authorization level carried in a token.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleNormal Role = "normal_user"
	RoleViewer Role = "viewer"
)

// Identity is the authenticated principal behind a request or connection.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin reports whether the identity carries the elevated role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Claims are the JWT claims issued for a user.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid or expired token")

// Manager issues and verifies tokens.
type Manager struct {
	secret     []byte
	issuer     string
	expiration time.Duration
	apiKeys    []string
}

func NewManager(cfg config.AuthConfig, apiKeys []string) *Manager {
	return &Manager{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		expiration: time.Duration(cfg.ExpirationMinutes) * time.Minute,
		apiKeys:    apiKeys,
	}
}

// Issue signs a token for id. Login is handled elsewhere; this serves tooling and tests.
func (m *Manager) Issue(id Identity) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   id.UserID,
		Username: id.Username,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses and validates a token string.
func (m *Manager) Verify(tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	switch claims.Role {
	case RoleAdmin, RoleNormal, RoleViewer:
	default:
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return Identity{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}, nil
}

// ValidAPIKey reports whether key is configured. With no keys configured any key passes.
func (m *Manager) ValidAPIKey(key string) bool {
	if len(m.apiKeys) == 0 {
		return true
	}
	for _, valid := range m.apiKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
