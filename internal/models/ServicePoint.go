package models

import (
	"strings"
	"time"

	"fleet_tracker/internal/apperr"
	"fleet_tracker/internal/geo"
)

// Service point categories referenced by the alert rules.
const (
	CategoryFuel     = "fuel"
	CategoryCharging = "charging"
	CategoryRepair   = "repair"
)

// ServicePoint is a cataloged fuel station, charging station or garage.
type ServicePoint struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Category  string    `json:"category" gorm:"not null;index"`
	Address   *string   `json:"address,omitempty"`
	Lat       float64   `json:"lat" gorm:"not null"`
	Lon       float64   `json:"lon" gorm:"not null"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// NewServicePoint trims and validates its inputs. A blank address is
// stored as nil.
func NewServicePoint(id, name, category string, address *string, lat, lon float64) (ServicePoint, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	category = strings.TrimSpace(category)

	if id == "" {
		return ServicePoint{}, apperr.Invalid("id", "is required")
	}
	if name == "" {
		return ServicePoint{}, apperr.Invalid("name", "is required")
	}
	if category == "" {
		return ServicePoint{}, apperr.Invalid("category", "is required")
	}
	if err := geo.ValidateCoordinate(lat, lon); err != nil {
		return ServicePoint{}, err
	}

	var addr *string
	if address != nil {
		if a := strings.TrimSpace(*address); a != "" {
			addr = &a
		}
	}

	return ServicePoint{
		ID:       id,
		Name:     name,
		Category: category,
		Address:  addr,
		Lat:      lat,
		Lon:      lon,
	}, nil
}
