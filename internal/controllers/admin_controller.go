package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fleet_tracker/internal/alerts"
	"fleet_tracker/internal/auth"
	"fleet_tracker/internal/telemetry"
)

// AdminController serves the operator's read-mostly view of the fleet.
type AdminController struct {
	registry *auth.Registry
	ingestor *telemetry.Ingestor
	alerts   *alerts.Store
}

func NewAdminController(registry *auth.Registry, ingestor *telemetry.Ingestor, alertStore *alerts.Store) *AdminController {
	return &AdminController{registry: registry, ingestor: ingestor, alerts: alertStore}
}

func (ctl *AdminController) ListDevices(c *gin.Context) {
	devices, err := ctl.registry.Devices(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

// DeviceLocation is 404 until the device's first accepted heartbeat.
func (ctl *AdminController) DeviceLocation(c *gin.Context) {
	loc, err := ctl.ingestor.LastLocation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loc)
}

func (ctl *AdminController) DeviceAlerts(c *gin.Context) {
	list, err := ctl.alerts.ListUnread(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// MarkAlertRead flags any device's unread alert as read.
func (ctl *AdminController) MarkAlertRead(c *gin.Context) {
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid alert ID format."})
		return
	}

	if err := ctl.alerts.MarkReadByID(c.Request.Context(), alertID); err != nil {
		if errors.Is(err, alerts.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No unread alert with this ID."})
			return
		}
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
