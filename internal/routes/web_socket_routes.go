package routes

import (
	"github.com/gin-gonic/gin"

	"fleet_tracker/internal/controllers"
	"fleet_tracker/internal/middleware"
)

func WebSocketRoutes(r *gin.Engine, d Deps) {
	ctl := controllers.NewAlertStreamController(d.Hub)

	ws := r.Group("/ws")
	ws.Use(middleware.RequireDevice(d.Gate, d.Tokens))
	{
		ws.GET("/alerts", ctl.Stream)
	}
}
