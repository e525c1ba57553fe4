package models

import "time"

// Device is a provisioned telemetry unit. The credential verifier never
// leaves the service.
type Device struct {
	ID                 string    `json:"id" gorm:"primaryKey"`
	CredentialVerifier string    `json:"-" gorm:"not null"`
	Make               *string   `json:"vehicle_make"`
	Model              *string   `json:"vehicle_model"`
	CreatedAt          time.Time `json:"created_at"`
}
