package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"fleet_tracker/internal/alerts"
	"fleet_tracker/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type AlertStreamController struct {
	hub *alerts.Hub
}

func NewAlertStreamController(hub *alerts.Hub) *AlertStreamController {
	return &AlertStreamController{hub: hub}
}

// Stream upgrades an authenticated device request to a WebSocket and pushes
// the device's newly committed alerts over it until the client disconnects.
func (ctl *AlertStreamController) Stream(c *gin.Context) {
	deviceID := middleware.DeviceID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).WithField("device_id", deviceID).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	ctl.hub.Register(deviceID, conn)
	defer ctl.hub.Unregister(deviceID, conn)

	fields := logrus.Fields{
		"device_id": deviceID,
		"conn_ptr":  fmt.Sprintf("%p", conn),
	}
	logrus.WithFields(fields).Info("Alert stream connection established.")

	// The stream is push-only; reads only detect closure.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithFields(fields).Info("Alert stream closed by client.")
			} else {
				logrus.WithError(err).WithFields(fields).Warn("Error reading from alert stream.")
			}
			break
		}
		logrus.WithFields(fields).Debug("Alert stream client sent unexpected message. Ignoring.")
	}
}
