package middleware

import (
	"context"
	"errors"
	"net/http"

	"fairytale-server/shared/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InterServiceTokenHeader - заголовок с JWT соседнего сервиса.
const InterServiceTokenHeader = "X-Internal-Service-Token"

// ServiceRole - роль, которую должен нести межсервисный токен.
const ServiceRole = "service_role"

// TokenVerifier проверяет строку токена и возвращает claims.
type TokenVerifier func(ctx context.Context, tokenString string) (*models.Claims, error)

// InterServiceAuth пропускает только запросы с валидным межсервисным токеном.
func InterServiceAuth(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.With(zap.String("path", c.Request.URL.Path))

		tokenString := c.GetHeader(InterServiceTokenHeader)
		if tokenString == "" {
			log.Warn("X-Internal-Service-Token header missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized: Missing inter-service token"})
			return
		}

		claims, err := verifier(c.Request.Context(), tokenString)
		if err != nil {
			status := http.StatusUnauthorized
			msg := "Unauthorized: Invalid inter-service token"
			switch {
			case errors.Is(err, models.ErrTokenExpired):
				msg = "Unauthorized: Inter-service token expired"
			case errors.Is(err, models.ErrTokenMalformed), errors.Is(err, models.ErrTokenInvalid):
			default:
				log.Error("Unexpected inter-service token verification error", zap.Error(err))
				status = http.StatusInternalServerError
				msg = "Internal server error during inter-service token verification"
			}
			log.Warn("Inter-service token verification failed", zap.Error(err))
			c.AbortWithStatusJSON(status, models.ErrorResponse{Error: msg})
			return
		}
		if claims.Role != ServiceRole {
			log.Warn("Inter-service token has wrong role", zap.String("role", claims.Role))
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{Error: "Forbidden"})
			return
		}

		c.Set("source_service", claims.Subject)
		c.Next()
	}
}
