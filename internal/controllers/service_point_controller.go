package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleet_tracker/internal/catalog"
	"fleet_tracker/internal/models"
)

const defaultRadiusKm = 5.0

type ServicePointController struct {
	index *catalog.Index
}

func NewServicePointController(index *catalog.Index) *ServicePointController {
	return &ServicePointController{index: index}
}

type servicePointInput struct {
	ID       string   `json:"id" binding:"required"`
	Name     string   `json:"name" binding:"required"`
	Category string   `json:"category" binding:"required"`
	Address  *string  `json:"address"`
	Lat      *float64 `json:"lat" binding:"required"`
	Lon      *float64 `json:"lon" binding:"required"`
}

// Upsert creates a service point or replaces the one with the same id.
func (ctl *ServicePointController) Upsert(c *gin.Context) {
	var input servicePointInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	point, err := models.NewServicePoint(input.ID, input.Name, input.Category, input.Address, *input.Lat, *input.Lon)
	if err != nil {
		respondError(c, err)
		return
	}

	stored, err := ctl.index.Upsert(c.Request.Context(), point)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, stored)
}

type nearestQuery struct {
	Lat      *float64 `form:"lat" binding:"required"`
	Lon      *float64 `form:"lon" binding:"required"`
	Category string   `form:"category"`
}

// Nearest returns the closest service point, optionally of one category.
func (ctl *ServicePointController) Nearest(c *gin.Context) {
	var q nearestQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	match, err := ctl.index.Nearest(*q.Lat, *q.Lon, q.Category)
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No matching service point found."})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, match)
}

type nearbyQuery struct {
	Lat      *float64 `form:"lat" binding:"required"`
	Lon      *float64 `form:"lon" binding:"required"`
	RadiusKm *float64 `form:"radius_km"`
	Category string   `form:"category"`
	Format   string   `form:"format"`
}

// Nearby lists every service point within radius_km (default 5), closest
// first. format=geojson returns a FeatureCollection.
func (ctl *ServicePointController) Nearby(c *gin.Context) {
	var q nearbyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	radius := defaultRadiusKm
	if q.RadiusKm != nil {
		radius = *q.RadiusKm
	}

	matches, err := ctl.index.WithinRadius(*q.Lat, *q.Lon, radius, q.Category)
	if err != nil {
		respondError(c, err)
		return
	}

	if q.Format == "geojson" {
		c.JSON(http.StatusOK, catalog.FeatureCollection(matches))
		return
	}
	c.JSON(http.StatusOK, matches)
}
