package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fleet_tracker/internal/apperr"
	"fleet_tracker/internal/models"
)

// Queries is the set of store operations, bound either to the pool or to
// an open transaction.
type Queries struct {
	db *gorm.DB
}

func upsertOn(key string, columns ...string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: key}},
		DoUpdates: clause.AssignmentColumns(columns),
	}
}

// UpsertServicePoint inserts p or overwrites every mutable field of the
// existing row with the same id. created_at is kept from the first insert.
func (q *Queries) UpsertServicePoint(ctx context.Context, p *models.ServicePoint) error {
	err := q.db.WithContext(ctx).
		Clauses(upsertOn("id", "name", "category", "address", "lat", "lon", "updated_at")).
		Create(p).Error
	return wrap("upsert service point", err)
}

// ListServicePoints returns the catalog in insertion order.
func (q *Queries) ListServicePoints(ctx context.Context) ([]models.ServicePoint, error) {
	var points []models.ServicePoint
	err := q.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}}).
		Find(&points).Error
	if err != nil {
		return nil, wrap("list service points", err)
	}
	return points, nil
}

// CreateDevice inserts a new device and fails with a validation error if
// the id is taken.
func (q *Queries) CreateDevice(ctx context.Context, d *models.Device) error {
	err := q.db.WithContext(ctx).Create(d).Error
	if err != nil && isUniqueViolation(err) {
		return apperr.Invalid("id", "is already registered")
	}
	return wrap("create device", err)
}

// SaveDevice inserts or replaces a device's verifier and vehicle details.
func (q *Queries) SaveDevice(ctx context.Context, d *models.Device) error {
	err := q.db.WithContext(ctx).
		Clauses(upsertOn("id", "credential_verifier", "make", "model")).
		Create(d).Error
	return wrap("save device", err)
}

// ListDevices returns every registered device ordered by id.
func (q *Queries) ListDevices(ctx context.Context) ([]models.Device, error) {
	var devices []models.Device
	err := q.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}}).
		Find(&devices).Error
	if err != nil {
		return nil, wrap("list devices", err)
	}
	return devices, nil
}

func (q *Queries) FindDevice(ctx context.Context, id string) (*models.Device, error) {
	var d models.Device
	if err := q.db.WithContext(ctx).Where(map[string]interface{}{"id": id}).First(&d).Error; err != nil {
		return nil, wrap("find device", err)
	}
	return &d, nil
}

// UpsertDeviceLocation overwrites the device's single location row.
func (q *Queries) UpsertDeviceLocation(ctx context.Context, loc *models.DeviceLocation) error {
	err := q.db.WithContext(ctx).
		Clauses(upsertOn("device_id", "lat", "lon", "last_seen")).
		Create(loc).Error
	return wrap("upsert device location", err)
}

func (q *Queries) GetDeviceLocation(ctx context.Context, deviceID string) (*models.DeviceLocation, error) {
	var loc models.DeviceLocation
	err := q.db.WithContext(ctx).Where(map[string]interface{}{"device_id": deviceID}).First(&loc).Error
	if err != nil {
		return nil, wrap("get device location", err)
	}
	return &loc, nil
}

func (q *Queries) AppendObdLog(ctx context.Context, entry *models.ObdLog) error {
	return wrap("append obd log", q.db.WithContext(ctx).Create(entry).Error)
}

// ListObdLogs returns the most recent log entries of a device, newest first.
func (q *Queries) ListObdLogs(ctx context.Context, deviceID string, limit int) ([]models.ObdLog, error) {
	var logs []models.ObdLog
	err := q.db.WithContext(ctx).
		Where(map[string]interface{}{"device_id": deviceID}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true}).
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, wrap("list obd logs", err)
	}
	return logs, nil
}

func (q *Queries) InsertAlert(ctx context.Context, a *models.Alert) error {
	return wrap("insert alert", q.db.WithContext(ctx).Create(a).Error)
}

// ListUnreadAlerts returns the device's unread alerts, most recent first.
func (q *Queries) ListUnreadAlerts(ctx context.Context, deviceID string) ([]models.Alert, error) {
	var list []models.Alert
	err := q.db.WithContext(ctx).
		Where(map[string]interface{}{"device_id": deviceID, "is_read": false}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}}).
		Find(&list).Error
	if err != nil {
		return nil, wrap("list unread alerts", err)
	}
	return list, nil
}

// MarkAlertRead flips is_read only for an unread alert owned by deviceID
// and reports how many rows changed.
func (q *Queries) MarkAlertRead(ctx context.Context, alertID uuid.UUID, deviceID string) (int64, error) {
	res := q.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where(map[string]interface{}{"id": alertID, "device_id": deviceID, "is_read": false}).
		Update("is_read", true)
	if res.Error != nil {
		return 0, wrap("mark alert read", res.Error)
	}
	return res.RowsAffected, nil
}

// MarkAnyAlertRead flips is_read for an unread alert regardless of which
// device owns it.
func (q *Queries) MarkAnyAlertRead(ctx context.Context, alertID uuid.UUID) (int64, error) {
	res := q.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where(map[string]interface{}{"id": alertID, "is_read": false}).
		Update("is_read", true)
	if res.Error != nil {
		return 0, wrap("mark alert read", res.Error)
	}
	return res.RowsAffected, nil
}
