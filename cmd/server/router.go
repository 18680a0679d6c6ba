package main

import (
	"net/http"
	"time"

	"fairytale-server/internal/config"
	"fairytale-server/internal/handler"
	sharedMiddleware "fairytale-server/shared/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

// newRouter собирает gin-движок. Prometheus middleware подключается до маршрутов,
// иначе gin не применит его к уже зарегистрированным обработчикам.
func newRouter(cfg *config.Config, segmentHandler *handler.SegmentHandler, generateLimiter gin.HandlerFunc, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(sharedMiddleware.GinZapLogger(logger))
	router.Use(gin.Recovery())

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSAllowedOrigins) == 0 || (len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	segmentHandler.RegisterRoutes(router, generateLimiter)
	return router
}
