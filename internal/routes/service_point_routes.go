package routes

import (
	"github.com/gin-gonic/gin"

	"fleet_tracker/internal/controllers"
)

func ServicePointRoutes(r *gin.Engine, d Deps) {
	ctl := controllers.NewServicePointController(d.Catalog)

	points := r.Group("/service-points")
	{
		points.POST("", ctl.Upsert)
		points.GET("/nearest", ctl.Nearest)
		points.GET("/nearby", ctl.Nearby)
	}
}
