package routes

import (
	"github.com/gin-gonic/gin"

	"fleet_tracker/internal/controllers"
	"fleet_tracker/internal/middleware"
)

func DeviceRoutes(r *gin.Engine, d Deps) {
	ctl := controllers.NewDeviceController(d.Tokens, d.Ingestor, d.Alerts)

	r.POST("/device/token", middleware.RequireDeviceCredentials(d.Gate), ctl.IssueToken)

	device := r.Group("/device")
	device.Use(middleware.RequireDevice(d.Gate, d.Tokens))
	{
		device.POST("/heartbeat", ctl.Heartbeat)
		device.GET("/location/last", ctl.LastLocation)
		device.GET("/obd-logs", ctl.RecentLogs)
		device.GET("/alerts", ctl.ListAlerts)
		device.PUT("/alerts/:id/read", ctl.MarkAlertRead)
	}
}
