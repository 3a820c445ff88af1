package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-drill/internal/response"
	"github.com/stemsi/exstem-drill/internal/service"
)

// RequireActiveToken rejects tokens whose id has been revoked through logout.
// It must run after one of the JWT middlewares.
func RequireActiveToken(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		err := authService.CheckTokenActive(c.Request.Context(), claims.ID)
		if errors.Is(err, service.ErrTokenRevoked) {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRevoked)
			return
		}
		if err != nil {
			// Fail open when the registry is unreachable.
			zerolog.Ctx(c.Request.Context()).Warn().Err(err).Str("jti", claims.ID).Msg("Token registry unavailable")
		}

		c.Next()
	}
}
