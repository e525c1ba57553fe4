package models

import (
	"strings"
	"time"
)

// ObdLog is an append-only record of one heartbeat's diagnostics.
type ObdLog struct {
	ID         uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	DeviceID   string    `json:"device_id" gorm:"not null;index:idx_obd_device_time,priority:1"`
	Timestamp  time.Time `json:"timestamp" gorm:"not null;index:idx_obd_device_time,priority:2"`
	FuelLevel  *float64  `json:"fuel_level,omitempty"`
	RPM        *int      `json:"rpm,omitempty"`
	Speed      *int      `json:"speed,omitempty"`
	ErrorCodes *string   `json:"error_codes,omitempty"`
}

// JoinErrorCodes serializes codes in order, comma separated. An empty list
// is stored as NULL.
func JoinErrorCodes(codes []string) *string {
	if len(codes) == 0 {
		return nil
	}
	s := strings.Join(codes, ",")
	return &s
}

// Codes splits the stored error codes back into a slice.
func (l ObdLog) Codes() []string {
	if l.ErrorCodes == nil || *l.ErrorCodes == "" {
		return nil
	}
	return strings.Split(*l.ErrorCodes, ",")
}
