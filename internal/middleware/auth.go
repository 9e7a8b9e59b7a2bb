package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"stockroom/internal/model"
	"stockroom/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const viewerKey = "viewer"

var (
	ErrMissingToken = errors.New("authorization is missing")
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("role not recognised")
)

// ParseViewer verifies an HMAC-signed token and maps its claims onto a Viewer.
// Claims: sub (user id), name or username, role.
func ParseViewer(tokenString string, secret []byte) (model.Viewer, error) {
	if tokenString == "" {
		return model.Viewer{}, ErrMissingToken
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return model.Viewer{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return model.Viewer{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return model.Viewer{}, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}

	roleClaim, _ := claims["role"].(string)
	role, ok := model.ParseRole(roleClaim)
	if !ok {
		return model.Viewer{}, fmt.Errorf("%w: %q", ErrUnknownRole, roleClaim)
	}

	viewer := model.Viewer{Role: role}
	if sub, _ := claims["sub"].(string); sub != "" {
		if id, err := uuid.Parse(sub); err == nil {
			viewer.ID = id
		}
	}
	viewer.Name, _ = claims["name"].(string)
	if viewer.Name == "" {
		viewer.Name, _ = claims["username"].(string)
	}
	viewer.Name = strings.TrimSpace(viewer.Name)
	return viewer, nil
}

// Auth checks tokens issued by the external auth layer
type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

func (a *Auth) Secret() []byte {
	return a.secret
}

// tokenFromRequest tries the access_token cookie first, then the Authorization header
func tokenFromRequest(c *gin.Context) (string, error) {
	if tokenString, err := c.Cookie("access_token"); err == nil && tokenString != "" {
		return tokenString, nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("%w: expected 'Bearer <token>'", ErrInvalidToken)
	}
	return parts[1], nil
}

// RequireRole validates the JWT and checks the viewer's role against allowedRoles.
// With no roles given, any recognised role passes.
func (a *Auth) RequireRole(allowedRoles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := tokenFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		viewer, err := ParseViewer(tokenString, a.secret)
		if errors.Is(err, ErrUnknownRole) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		if len(allowedRoles) > 0 {
			roleAllowed := false
			for _, role := range allowedRoles {
				if viewer.Role == role {
					roleAllowed = true
					break
				}
			}
			if !roleAllowed {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
				return
			}
		}

		c.Set(viewerKey, viewer)
		c.Next()
	}
}

// ViewerFromContext returns the viewer stored by RequireRole
func ViewerFromContext(c *gin.Context) (model.Viewer, bool) {
	v, ok := c.Get(viewerKey)
	if !ok {
		return model.Viewer{}, false
	}
	viewer, ok := v.(model.Viewer)
	return viewer, ok
}
