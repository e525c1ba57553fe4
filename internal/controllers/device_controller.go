package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fleet_tracker/internal/alerts"
	"fleet_tracker/internal/auth"
	"fleet_tracker/internal/middleware"
	"fleet_tracker/internal/telemetry"
)

type DeviceController struct {
	tokens   *auth.TokenIssuer
	ingestor *telemetry.Ingestor
	alerts   *alerts.Store
}

func NewDeviceController(tokens *auth.TokenIssuer, ingestor *telemetry.Ingestor, alertStore *alerts.Store) *DeviceController {
	return &DeviceController{tokens: tokens, ingestor: ingestor, alerts: alertStore}
}

// deviceTime accepts RFC3339 timestamps with or without a zone suffix;
// zoneless values are read as UTC.
type deviceTime struct {
	time.Time
}

func (t *deviceTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}

	ts := raw
	if len(ts) >= 6 && !(strings.HasSuffix(ts, "Z") || strings.ContainsAny(ts[len(ts)-6:], "+-")) {
		ts += "Z"
	}

	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"raw_timestamp": raw,
			"parsed_string": ts,
		}).Debug("Failed to parse device timestamp.")
		return fmt.Errorf("invalid timestamp %q: %w", raw, err)
	}
	t.Time = parsed
	return nil
}

type locationPayload struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lon *float64 `json:"lon" binding:"required"`
}

type obdPayload struct {
	FuelLevel    *float64 `json:"fuel_level"`
	EngineStatus *string  `json:"engine_status"`
	RPM          *int     `json:"rpm"`
	Speed        *int     `json:"speed"`
	ErrorCodes   []string `json:"error_codes"`
}

type heartbeatPayload struct {
	Timestamp *deviceTime      `json:"timestamp" binding:"required"`
	Location  *locationPayload `json:"location" binding:"required"`
	ObdData   obdPayload       `json:"obd_data"`
}

// IssueToken exchanges verified device credentials for a session token.
// The device middleware has already authenticated the request.
func (ctl *DeviceController) IssueToken(c *gin.Context) {
	deviceID := middleware.DeviceID(c)

	token, exp, err := ctl.tokens.Issue(deviceID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device_id":  deviceID,
		"token":      token,
		"expires_at": exp.UTC(),
	})
}

// Heartbeat records a device's position and diagnostics and returns the
// alerts they triggered.
func (ctl *DeviceController) Heartbeat(c *gin.Context) {
	deviceID := middleware.DeviceID(c)

	var payload heartbeatPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		bindError(c, err)
		return
	}

	hb, err := telemetry.NewHeartbeat(
		payload.Timestamp.Time,
		telemetry.Location{Lat: *payload.Location.Lat, Lon: *payload.Location.Lon},
		telemetry.ObdSnapshot{
			FuelLevel:  payload.ObdData.FuelLevel,
			RPM:        payload.ObdData.RPM,
			Speed:      payload.ObdData.Speed,
			ErrorCodes: payload.ObdData.ErrorCodes,
		},
	)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := ctl.ingestor.Ingest(c.Request.Context(), deviceID, hb)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "accepted",
		"alerts": res.Alerts,
	})
}

// LastLocation returns the device's last accepted position.
func (ctl *DeviceController) LastLocation(c *gin.Context) {
	loc, err := ctl.ingestor.LastLocation(c.Request.Context(), middleware.DeviceID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loc)
}

// RecentLogs returns the device's newest OBD log entries.
func (ctl *DeviceController) RecentLogs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}

	logs, err := ctl.ingestor.RecentLogs(c.Request.Context(), middleware.DeviceID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// ListAlerts returns the device's unread alerts, newest first.
func (ctl *DeviceController) ListAlerts(c *gin.Context) {
	list, err := ctl.alerts.ListUnread(c.Request.Context(), middleware.DeviceID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// MarkAlertRead flags one unread alert of the device as read.
func (ctl *DeviceController) MarkAlertRead(c *gin.Context) {
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid alert ID format."})
		return
	}

	if err := ctl.alerts.MarkRead(c.Request.Context(), alertID, middleware.DeviceID(c)); err != nil {
		if errors.Is(err, alerts.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No unread alert with this ID for this device."})
			return
		}
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
