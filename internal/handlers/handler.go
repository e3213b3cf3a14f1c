package handlers

import (
	"smartlift_monitor/internal/logger"
	"smartlift_monitor/internal/metrics"
	"smartlift_monitor/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
// m may be nil, in which case /metrics is not served.
func NewHandler(services *service.Service, m *metrics.Metrics, log *logger.Logger) *Handler {
	return &Handler{services: services, metrics: m, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Live lift table over WebSocket, same port
	router.GET("/ws", h.wsConnect)

	if h.services.Simulator != nil {
		h.registerSimulatorRoutes(router)
	}

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerLiftRoutes(api)
		api.GET("/status", h.getStatus)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerLiftRoutes(api *gin.RouterGroup) {
	lifts := api.Group("/lifts")
	{
		lifts.GET("", h.listLifts)
		lifts.GET("/:id", h.getLift)
		lifts.GET("/:id/calls", h.getCalls)
		// Body example: {"command":"goto_floor","target_floor":7}
		lifts.POST("/:id/commands", h.sendCommand)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("", h.getLogs)
		logs.GET("/", h.getLogs)
	}
}

// The development feed mimics the upstream stream and command endpoints.
func (h *Handler) registerSimulatorRoutes(r *gin.Engine) {
	sim := r.Group("/sim")
	{
		sim.GET("/stream", h.simStream)
		sim.POST("/commands", h.simCommand)
	}
}
