package middleware

import (
	"net/http"
	"strings"

	"factory-ops/internal/services"
	"factory-ops/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware accepts the same credentials as the realtime handshake:
// an Authorization bearer header or the auth cookie.
func AuthMiddleware(service *services.AuthService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		if token == "" && cookieName != "" {
			token, _ = c.Cookie(cookieName)
		}

		u, err := service.AuthenticateToken(c.Request.Context(), token)
		if err != nil {
			status := services.HTTPStatus(err)
			if status != http.StatusInternalServerError {
				status = http.StatusUnauthorized
			}
			c.AbortWithStatusJSON(status, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			return
		}

		ctx := services.WithUserContext(c.Request.Context(), u.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
