package telemetry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"fleet_tracker/internal/alerts"
	"fleet_tracker/internal/metrics"
	"fleet_tracker/internal/models"
	"fleet_tracker/internal/store"
)

const (
	publishTimeout = 5 * time.Second

	defaultLogLimit = 20
	maxLogLimit     = 100
)

// Transactor runs fn in one atomic store transaction.
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx *store.Queries) error) error
}

// HistoryReader reads what earlier heartbeats recorded.
type HistoryReader interface {
	GetDeviceLocation(ctx context.Context, deviceID string) (*models.DeviceLocation, error)
	ListObdLogs(ctx context.Context, deviceID string, limit int) ([]models.ObdLog, error)
}

// Result describes a committed heartbeat.
type Result struct {
	ObdLogID uint64
	Alerts   []models.Alert
}

// Ingestor records heartbeats. Location upsert, log append and alert
// inserts for one heartbeat commit together or not at all.
type Ingestor struct {
	tx        Transactor
	history   HistoryReader
	rules     *RuleEngine
	alerts    *alerts.Store
	publisher alerts.Publisher
}

// NewIngestor wires the pipeline. publisher may be nil.
func NewIngestor(tx Transactor, history HistoryReader, rules *RuleEngine, alertStore *alerts.Store, publisher alerts.Publisher) *Ingestor {
	return &Ingestor{
		tx:        tx,
		history:   history,
		rules:     rules,
		alerts:    alertStore,
		publisher: publisher,
	}
}

// Ingest stores hb for an already authenticated device and returns the
// alerts it produced. Committed alerts are then handed to the publisher;
// publication failures do not affect the result.
func (i *Ingestor) Ingest(ctx context.Context, deviceID string, hb Heartbeat) (Result, error) {
	var res Result

	err := i.tx.Transaction(ctx, func(tx *store.Queries) error {
		loc := models.DeviceLocation{
			DeviceID: deviceID,
			Lat:      hb.Location.Lat,
			Lon:      hb.Location.Lon,
			LastSeen: hb.Timestamp,
		}
		if err := tx.UpsertDeviceLocation(ctx, &loc); err != nil {
			return err
		}

		entry := models.ObdLog{
			DeviceID:   deviceID,
			Timestamp:  hb.Timestamp,
			FuelLevel:  hb.Obd.FuelLevel,
			RPM:        hb.Obd.RPM,
			Speed:      hb.Obd.Speed,
			ErrorCodes: models.JoinErrorCodes(hb.Obd.ErrorCodes),
		}
		if err := tx.AppendObdLog(ctx, &entry); err != nil {
			return err
		}

		drafts, err := i.rules.Evaluate(deviceID, hb)
		if err != nil {
			return err
		}

		txAlerts := i.alerts.WithRepository(tx)
		created := make([]models.Alert, 0, len(drafts))
		for _, d := range drafts {
			a, err := txAlerts.Create(ctx, d)
			if err != nil {
				return err
			}
			created = append(created, a)
		}

		res = Result{ObdLogID: entry.ID, Alerts: created}
		return nil
	})
	if err != nil {
		metrics.HeartbeatsTotal.WithLabelValues("failed").Inc()
		logrus.WithError(err).WithField("device_id", deviceID).Error("Heartbeat rolled back.")
		return Result{}, err
	}

	metrics.HeartbeatsTotal.WithLabelValues("accepted").Inc()
	logrus.WithFields(logrus.Fields{
		"device_id":  deviceID,
		"obd_log_id": res.ObdLogID,
		"alerts":     len(res.Alerts),
		"timestamp":  hb.Timestamp.Format(time.RFC3339Nano),
	}).Info("Heartbeat accepted.")

	if i.publisher != nil && len(res.Alerts) > 0 {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		// the fanout logs and counts per-sink failures
		_ = i.publisher.Publish(pubCtx, deviceID, res.Alerts)
	}

	return res, nil
}

// LastLocation returns the device's last accepted position, or
// apperr.ErrNotFound before its first heartbeat.
func (i *Ingestor) LastLocation(ctx context.Context, deviceID string) (*models.DeviceLocation, error) {
	return i.history.GetDeviceLocation(ctx, deviceID)
}

// RecentLogs returns up to limit of the device's newest OBD log entries.
func (i *Ingestor) RecentLogs(ctx context.Context, deviceID string, limit int) ([]models.ObdLog, error) {
	switch {
	case limit <= 0:
		limit = defaultLogLimit
	case limit > maxLogLimit:
		limit = maxLogLimit
	}
	logs, err := i.history.ListObdLogs(ctx, deviceID, limit)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []models.ObdLog{}
	}
	return logs, nil
}
