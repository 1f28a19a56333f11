package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pairchat/internal/domain"
	"pairchat/internal/service"
)

const authClaimsKey = "auth_claims"

// OptionalJWTAuthMiddleware valida JWT access tokens cuando hay secreto
// configurado. Sin secreto la API queda abierta y no se guardan claims.
func OptionalJWTAuthMiddleware(jwtSvc *service.JWTService) gin.HandlerFunc {
	if !jwtSvc.Enabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return JWTAuthMiddleware(jwtSvc)
}

// JWTAuthMiddleware valida JWT access tokens y guarda claims en el contexto.
func JWTAuthMiddleware(jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		claims, err := jwtSvc.ParseAccessToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}

// authorizeActor exige que el sujeto del token coincida con userID. Sin claims
// (auth deshabilitada) siempre autoriza. Escribe el 403 si falla.
func authorizeActor(c *gin.Context, userID string) bool {
	claims, ok := GetAuthClaims(c)
	if !ok {
		return true
	}
	if claims.UserID != strings.TrimSpace(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "token subject does not match the acting user"})
		return false
	}
	return true
}

// authorizeParticipant exige que el sujeto del token participe en el chat.
func authorizeParticipant(c *gin.Context, chat domain.Chat) bool {
	claims, ok := GetAuthClaims(c)
	if !ok {
		return true
	}
	if !chat.HasParticipant(claims.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "not a participant of this chat"})
		return false
	}
	return true
}
