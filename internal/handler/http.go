package handler

import (
	"context"
	"net/http"
	"strings"

	"fairytale-server/internal/repository"
	"fairytale-server/shared/middleware"
	"fairytale-server/shared/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SegmentGenerator - Orchestration Entry Point.
type SegmentGenerator interface {
	GenerateSegment(ctx context.Context, r *http.Request) (*models.GenerateSegmentResponse, error)
}

// corsHeaders - ответ на preflight без тела.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "authorization, x-client-info, apikey, content-type",
	"Access-Control-Allow-Methods": "POST, OPTIONS",
}

// SegmentHandler обслуживает HTTP API генерации сегментов.
type SegmentHandler struct {
	pipeline        SegmentGenerator
	gateway         repository.SegmentGateway
	serviceVerifier middleware.TokenVerifier
	logger          *zap.Logger
}

// NewSegmentHandler создает обработчик. serviceVerifier проверяет токены соседних сервисов.
func NewSegmentHandler(pipeline SegmentGenerator, gateway repository.SegmentGateway,
	serviceVerifier middleware.TokenVerifier, logger *zap.Logger) *SegmentHandler {
	return &SegmentHandler{
		pipeline:        pipeline,
		gateway:         gateway,
		serviceVerifier: serviceVerifier,
		logger:          logger.Named("SegmentHandler"),
	}
}

// RegisterRoutes регистрирует маршруты. Middleware генерации (rate limit) навешивается снаружи.
func (h *SegmentHandler) RegisterRoutes(router gin.IRouter, generateMiddleware ...gin.HandlerFunc) {
	router.GET("/health", h.health)

	router.OPTIONS("/generate-story-segment", h.preflight)
	generate := append(append([]gin.HandlerFunc{}, generateMiddleware...), h.generateStorySegment)
	router.POST("/generate-story-segment", generate...)

	internal := router.Group("/internal")
	internal.Use(middleware.InterServiceAuth(h.serviceVerifier, h.logger))
	{
		internal.POST("/segments/:segmentId/image", h.attachImage)
	}
}

func (h *SegmentHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SegmentHandler) preflight(c *gin.Context) {
	for k, v := range corsHeaders {
		c.Header(k, v)
	}
	c.Status(http.StatusNoContent)
}

func (h *SegmentHandler) generateStorySegment(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", corsHeaders["Access-Control-Allow-Origin"])

	resp, err := h.pipeline.GenerateSegment(c.Request.Context(), c.Request)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type attachImageRequest struct {
	ImageURL string `json:"imageUrl" binding:"required,url"`
}

// attachImage - callback функции генерации изображений.
func (h *SegmentHandler) attachImage(c *gin.Context) {
	segmentID := strings.TrimSpace(c.Param("segmentId"))
	var req attachImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Invalid request body: imageUrl must be a valid URL",
			Code:  models.CodeInvalidRequest,
		})
		return
	}
	if err := h.gateway.AttachImageURL(c.Request.Context(), segmentID, req.ImageURL); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	h.logger.Info("Image attached to segment", zap.String("segment_id", segmentID))
	c.Status(http.StatusNoContent)
}
