// Package telemetry ingests device heartbeats and derives alerts from them.
package telemetry

import (
	"math"
	"strings"
	"time"

	"fleet_tracker/internal/apperr"
	"fleet_tracker/internal/geo"
)

type Location struct {
	Lat float64
	Lon float64
}

// ObdSnapshot is the diagnostics part of a heartbeat. Nil fields were not
// reported by the device.
type ObdSnapshot struct {
	FuelLevel  *float64
	RPM        *int
	Speed      *int
	ErrorCodes []string
}

// Heartbeat is a validated telemetry report. Build it with NewHeartbeat.
type Heartbeat struct {
	Timestamp time.Time
	Location  Location
	Obd       ObdSnapshot
}

// NewHeartbeat validates every field, converts the timestamp to UTC and
// trims surrounding space from error codes.
func NewHeartbeat(ts time.Time, loc Location, obd ObdSnapshot) (Heartbeat, error) {
	if ts.IsZero() {
		return Heartbeat{}, apperr.Invalid("timestamp", "is required")
	}
	if err := geo.ValidateCoordinate(loc.Lat, loc.Lon); err != nil {
		return Heartbeat{}, err
	}
	if f := obd.FuelLevel; f != nil && (math.IsNaN(*f) || *f < 0 || *f > 100) {
		return Heartbeat{}, apperr.Invalid("fuel_level", "must be within [0, 100]")
	}
	if obd.RPM != nil && *obd.RPM < 0 {
		return Heartbeat{}, apperr.Invalid("rpm", "must not be negative")
	}
	if obd.Speed != nil && *obd.Speed < 0 {
		return Heartbeat{}, apperr.Invalid("speed", "must not be negative")
	}

	var codes []string
	for _, c := range obd.ErrorCodes {
		c = strings.TrimSpace(c)
		if c == "" {
			return Heartbeat{}, apperr.Invalid("error_codes", "must not contain blank codes")
		}
		if strings.Contains(c, ",") {
			return Heartbeat{}, apperr.Invalid("error_codes", "must not contain commas")
		}
		codes = append(codes, c)
	}
	obd.ErrorCodes = codes

	return Heartbeat{Timestamp: ts.UTC(), Location: loc, Obd: obd}, nil
}
