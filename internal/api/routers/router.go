package routers

import (
	"github.com/The-Promised-Neverland/tsb/internal/api/handlers"
	"github.com/The-Promised-Neverland/tsb/internal/api/middleware"
	"github.com/The-Promised-Neverland/tsb/internal/ws"
	"github.com/gin-gonic/gin"
)

type Router struct {
	Hub     *ws.Hub
	Handler *handlers.Handler
}

func NewRouter(hub *ws.Hub, handler *handlers.Handler) *Router {
	return &Router{
		Hub:     hub,
		Handler: handler,
	}
}

func (rtr *Router) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CorsMiddleware())

	router.GET("/health", rtr.Handler.HealthCheck)

	router.POST("/init", rtr.Handler.InitTransfer)
	router.POST("/send_chunk", rtr.Handler.SendChunk)
	router.GET("/status", rtr.Handler.Status)

	if rtr.Hub != nil {
		router.GET("/ws", rtr.Hub.UpgradeHandler)
	}
	return router
}
