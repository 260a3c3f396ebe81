package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/zephyre/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.MaxMultipartMemory = cfg.HTTP.MaxUploadBytes
	router.Use(
		gin.Recovery(),
		requestIDMiddleware(),
		requestLogger(handler.logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		errorHandlingMiddleware(handler.logger),
		rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger),
	)

	router.GET("/healthz", handler.Healthz)

	api := router.Group("/api/v1")
	{
		api.GET("/skin-types", handler.SkinTypes)
		api.POST("/plans", handler.GeneratePlan)
		api.POST("/analyses", handler.Analyze)

		api.GET("/weather", handler.Weather)
		api.GET("/weather/places", handler.WeatherPlaces)
		api.GET("/weather/popular", handler.PopularPlaces)

		sessions := api.Group("/sessions")
		sessions.POST("", handler.CreateSession)
		sessions.GET("/:id", handler.GetSession)
		sessions.POST("/:id/actions", handler.DispatchAction)
		sessions.POST("/:id/weather", handler.LoadSessionWeather)
		sessions.POST("/:id/captures", handler.CaptureSession)
		sessions.GET("/:id/capture", handler.CaptureImage)
		sessions.GET("/:id/plan", handler.SessionPlan)
		sessions.GET("/:id/profile", handler.SessionProfile)
		sessions.GET("/:id/report", handler.SessionReport)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, handler.logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

