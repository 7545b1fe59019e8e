package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pronote-app/messagerie-backend/internal/common"
	"github.com/pronote-app/messagerie-backend/internal/domain"
	"github.com/pronote-app/messagerie-backend/pkg/jwt"
)

const (
	ctxUserID   = "userID"
	ctxUserRole = "userRole"
)

// JWTAuth authenticates the bearer token and stores the resolved identity in
// the gin context.
func JWTAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			common.AbortError(c, http.StatusUnauthorized, "authentification requise")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			common.AbortError(c, http.StatusUnauthorized, "en-tête d'autorisation invalide")
			return
		}

		claims, err := jwtManager.VerifyToken(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				common.AbortError(c, http.StatusUnauthorized, "session expirée")
			} else {
				common.AbortError(c, http.StatusUnauthorized, "jeton invalide")
			}
			return
		}

		role := domain.Role(claims.Role)
		if !role.Valid() {
			common.AbortError(c, http.StatusUnauthorized, "type d'utilisateur inconnu")
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUserRole, role)

		c.Next()
	}
}

// GetIdentity extracts the authenticated identity from the context.
func GetIdentity(c *gin.Context) (domain.Identity, bool) {
	rawID, ok := c.Get(ctxUserID)
	if !ok {
		return domain.Identity{}, false
	}
	userID, ok := rawID.(int64)
	if !ok {
		return domain.Identity{}, false
	}
	rawRole, ok := c.Get(ctxUserRole)
	if !ok {
		return domain.Identity{}, false
	}
	role, ok := rawRole.(domain.Role)
	if !ok {
		return domain.Identity{}, false
	}
	return domain.Identity{UserID: userID, Role: role}, true
}
