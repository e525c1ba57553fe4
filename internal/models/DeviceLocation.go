package models

import "time"

// DeviceLocation is the last accepted position of a device, one row per device.
type DeviceLocation struct {
	DeviceID string    `json:"device_id" gorm:"primaryKey"`
	Lat      float64   `json:"last_lat" gorm:"not null"`
	Lon      float64   `json:"last_lon" gorm:"not null"`
	LastSeen time.Time `json:"last_seen" gorm:"not null"`
}
