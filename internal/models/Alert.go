package models

import (
	"time"

	"github.com/google/uuid"
)

type AlertType string

const (
	AlertLowFuel   AlertType = "LOW_FUEL"
	AlertErrorCode AlertType = "ERROR_CODE"
)

// Alert is a persisted notification derived from a heartbeat. Only IsRead
// changes after insert, and only from false to true.
type Alert struct {
	ID        uuid.UUID `json:"alert_id" gorm:"type:uuid;primaryKey"`
	DeviceID  string    `json:"device_id" gorm:"not null;index:idx_alert_unread,priority:1"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index:idx_alert_unread,priority:3"`
	Type      AlertType `json:"alert_type" gorm:"not null"`
	Message   string    `json:"message" gorm:"not null"`
	IsRead    bool      `json:"is_read" gorm:"not null;default:false;index:idx_alert_unread,priority:2"`
}
