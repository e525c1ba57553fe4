package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"fleet_tracker/internal/alerts"
	"fleet_tracker/internal/catalog"
	"fleet_tracker/internal/models"
)

const LowFuelThreshold = 20.0

// PointFinder is the part of the service-point catalog the rules consult.
type PointFinder interface {
	Nearest(lat, lon float64, category string) (catalog.Match, error)
}

// Rule turns a heartbeat into at most one alert referencing the nearest
// service point of Category.
type Rule struct {
	Type     models.AlertType
	Category string
	Fires    func(hb Heartbeat) bool
	Message  func(hb Heartbeat, near catalog.Match) string
}

var DefaultRules = []Rule{
	{
		Type:     models.AlertLowFuel,
		Category: models.CategoryFuel,
		Fires: func(hb Heartbeat) bool {
			return hb.Obd.FuelLevel != nil && *hb.Obd.FuelLevel < LowFuelThreshold
		},
		Message: func(hb Heartbeat, near catalog.Match) string {
			return fmt.Sprintf("%s%% remaining; nearest fuel point: %s (%s km)",
				formatNumber(*hb.Obd.FuelLevel), near.Name, formatNumber(near.DistanceKm))
		},
	},
	{
		Type:     models.AlertErrorCode,
		Category: models.CategoryRepair,
		Fires: func(hb Heartbeat) bool {
			return len(hb.Obd.ErrorCodes) > 0
		},
		Message: func(hb Heartbeat, near catalog.Match) string {
			return fmt.Sprintf("fault codes %s; nearest repair point: %s (%s km)",
				strings.Join(hb.Obd.ErrorCodes, ", "), near.Name, formatNumber(near.DistanceKm))
		},
	},
}

// RuleEngine evaluates every rule independently against one heartbeat.
// It keeps no state between calls.
type RuleEngine struct {
	finder PointFinder
	rules  []Rule
}

func NewRuleEngine(finder PointFinder) *RuleEngine {
	return &RuleEngine{finder: finder, rules: DefaultRules}
}

// Evaluate returns zero or more drafts. A rule that fires with no service
// point of its category in the catalog is skipped, not failed.
func (e *RuleEngine) Evaluate(deviceID string, hb Heartbeat) ([]alerts.Draft, error) {
	var drafts []alerts.Draft
	for _, rule := range e.rules {
		if !rule.Fires(hb) {
			continue
		}

		near, err := e.finder.Nearest(hb.Location.Lat, hb.Location.Lon, rule.Category)
		if errors.Is(err, catalog.ErrNotFound) {
			logrus.WithFields(logrus.Fields{
				"device_id": deviceID,
				"rule":      rule.Type,
				"category":  rule.Category,
			}).Debug("Rule fired but no service point of its category exists; skipping.")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("nearest %s point: %w", rule.Category, err)
		}

		drafts = append(drafts, alerts.Draft{
			DeviceID:  deviceID,
			Timestamp: hb.Timestamp,
			Type:      rule.Type,
			Message:   rule.Message(hb, near),
		})
	}
	return drafts, nil
}

// formatNumber prints the shortest decimal form, keeping at least one
// fractional digit: 15 -> "15.0", 0.34 -> "0.34".
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
