package alerts

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"fleet_tracker/internal/metrics"
	"fleet_tracker/internal/models"
)

// Publisher delivers alerts that have already been committed.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, deviceID string, list []models.Alert) error
}

// Fanout publishes to every sink. One sink failing does not stop the
// others.
type Fanout struct {
	sinks []Publisher
}

func NewFanout(sinks ...Publisher) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Name() string { return "fanout" }

func (f *Fanout) Publish(ctx context.Context, deviceID string, list []models.Alert) error {
	if len(list) == 0 {
		return nil
	}
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Publish(ctx, deviceID, list); err != nil {
			metrics.AlertPublishFailures.WithLabelValues(sink.Name()).Inc()
			logrus.WithError(err).WithFields(logrus.Fields{
				"device_id": deviceID,
				"sink":      sink.Name(),
				"alerts":    len(list),
			}).Warn("Failed to publish alerts.")
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}
