package handler

import (
	"errors"
	"net/http"

	"fairytale-server/internal/service"
	"fairytale-server/shared/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleServiceError переводит ошибку в {error, code, details} и HTTP статус.
func handleServiceError(c *gin.Context, logger *zap.Logger, err error) {
	var statusCode int
	var errResp models.ErrorResponse

	var pe *service.PipelineError
	switch {
	case errors.As(err, &pe):
		statusCode = pe.Status
		errResp = models.ErrorResponse{Error: pe.Error(), Code: pe.Code}
		if len(pe.Errors) > 1 {
			errResp.Details = pe.Errors
		}
		if statusCode >= http.StatusInternalServerError && len(pe.Errors) == 0 {
			// Внутренние детали наружу не отдаем
			errResp.Error = "Internal server error"
		}
	case errors.Is(err, models.ErrStoryNotFound), errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		errResp = models.ErrorResponse{Error: "Resource not found"}
	case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrTokenInvalid),
		errors.Is(err, models.ErrTokenMalformed), errors.Is(err, models.ErrTokenExpired):
		statusCode = http.StatusUnauthorized
		errResp = models.ErrorResponse{Error: "Unauthorized", Code: models.CodeUnauthorized}
	case errors.Is(err, models.ErrBadRequest), errors.Is(err, models.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		errResp = models.ErrorResponse{Error: err.Error(), Code: models.CodeInvalidRequest}
	default:
		statusCode = http.StatusInternalServerError
		errResp = models.ErrorResponse{Error: "Internal server error", Code: models.CodeInternalError}
	}

	if statusCode >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Int("status", statusCode), zap.String("code", errResp.Code), zap.Error(err))
	} else {
		logger.Info("Request rejected", zap.Int("status", statusCode), zap.String("code", errResp.Code), zap.Error(err))
	}
	c.AbortWithStatusJSON(statusCode, errResp)
}
