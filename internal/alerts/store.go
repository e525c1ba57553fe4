// Package alerts persists derived alerts, manages their unread/read
// lifecycle and fans committed alerts out to live subscribers.
package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fleet_tracker/internal/apperr"
	"fleet_tracker/internal/metrics"
	"fleet_tracker/internal/models"
)

// ErrNotFound is returned by MarkRead when no unread alert of the device
// has the given id.
var ErrNotFound = apperr.ErrNotFound

type Repository interface {
	InsertAlert(ctx context.Context, a *models.Alert) error
	ListUnreadAlerts(ctx context.Context, deviceID string) ([]models.Alert, error)
	MarkAlertRead(ctx context.Context, alertID uuid.UUID, deviceID string) (int64, error)
	MarkAnyAlertRead(ctx context.Context, alertID uuid.UUID) (int64, error)
}

// Draft is an alert produced by the rule engine but not yet persisted.
type Draft struct {
	DeviceID  string
	Timestamp time.Time
	Type      models.AlertType
	Message   string
}

type Store struct {
	repo  Repository
	newID func() uuid.UUID
}

func NewStore(repo Repository) *Store {
	return &Store{repo: repo, newID: uuid.New}
}

// WithRepository returns a Store writing through repo, typically an open
// transaction.
func (s *Store) WithRepository(repo Repository) *Store {
	return &Store{repo: repo, newID: s.newID}
}

// Create persists d as a new unread alert.
func (s *Store) Create(ctx context.Context, d Draft) (models.Alert, error) {
	a := models.Alert{
		ID:        s.newID(),
		DeviceID:  d.DeviceID,
		Timestamp: d.Timestamp.UTC(),
		Type:      d.Type,
		Message:   d.Message,
		IsRead:    false,
	}
	if err := s.repo.InsertAlert(ctx, &a); err != nil {
		return models.Alert{}, err
	}
	metrics.AlertsCreated.WithLabelValues(string(a.Type)).Inc()
	return a, nil
}

// ListUnread returns the device's unread alerts, most recent first.
func (s *Store) ListUnread(ctx context.Context, deviceID string) ([]models.Alert, error) {
	list, err := s.repo.ListUnreadAlerts(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Alert{}
	}
	return list, nil
}

// MarkRead moves an unread alert owned by deviceID to read. A missing
// alert, another device's alert and an already-read alert all yield
// ErrNotFound.
func (s *Store) MarkRead(ctx context.Context, alertID uuid.UUID, deviceID string) error {
	n, err := s.repo.MarkAlertRead(ctx, alertID, deviceID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkReadByID is MarkRead for operators: the alert may belong to any
// device. An unknown or already-read alert yields ErrNotFound.
func (s *Store) MarkReadByID(ctx context.Context, alertID uuid.UUID) error {
	n, err := s.repo.MarkAnyAlertRead(ctx, alertID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
