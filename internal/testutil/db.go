// Package testutil opens throwaway SQLite databases with the production
// schema for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fleet_tracker/internal/config"
	"fleet_tracker/internal/models"
)

// OpenDB returns a migrated database that is removed when t ends.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fleet.db")
	db, err := gorm.Open(sqlite.Open(path), config.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps SQLite from reporting "database is locked"
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

// DemoPoints is a small catalog around central Ho Chi Minh City.
func DemoPoints() []models.ServicePoint {
	addr := "District 1, Ho Chi Minh City"
	return []models.ServicePoint{
		{ID: "GAS001", Name: "Petrolimex Station 01", Category: models.CategoryFuel, Address: &addr, Lat: 10.7769, Lon: 106.7009},
		{ID: "GAS002", Name: "Petrolimex Station 02", Category: models.CategoryFuel, Lat: 10.7811, Lon: 106.6982},
		{ID: "EV001", Name: "VinFast Charging Hub", Category: models.CategoryCharging, Lat: 10.7852, Lon: 106.6954},
		{ID: "GARAGE001", Name: "Saigon Auto Repair", Category: models.CategoryRepair, Lat: 10.7714, Lon: 106.6682},
	}
}
