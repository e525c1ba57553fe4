package routes

import (
	"github.com/gin-gonic/gin"

	"fleet_tracker/internal/controllers"
	"fleet_tracker/internal/middleware"
)

func AdminRoutes(r *gin.Engine, d Deps) {
	ctl := controllers.NewAdminController(d.Registry, d.Ingestor, d.Alerts)

	admin := r.Group("/admin")
	admin.Use(middleware.RequireAdmin(d.AdminKey))
	{
		admin.GET("/devices", ctl.ListDevices)
		admin.GET("/devices/:id/location", ctl.DeviceLocation)
		admin.GET("/devices/:id/alerts", ctl.DeviceAlerts)
		admin.PUT("/alerts/:id/read", ctl.MarkAlertRead)
	}
}
