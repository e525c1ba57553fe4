package config

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fleet_tracker/internal/models"
)

// DSN builds the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode, c.DBTimezone,
	)
}

// OpenDB connects to PostgreSQL through lib/pq, retrying while the server
// comes up, and migrates the schema. The caller owns the returned handle.
func OpenDB(cfg *Config) (*gorm.DB, error) {
	var lastErr error
	for i := 1; i <= cfg.DBConnectAttempts; i++ {
		db, err := open(cfg)
		if err == nil {
			if err := Migrate(db); err != nil {
				return nil, err
			}
			return db, nil
		}

		lastErr = err
		logrus.WithError(err).WithField("attempt", i).Warn("Database not reachable yet.")
		time.Sleep(cfg.DBConnectDelay)
	}

	return nil, fmt.Errorf("db connect failed after %d attempts: %w", cfg.DBConnectAttempts, lastErr)
}

func open(cfg *Config) (*gorm.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxConns)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), GormConfig())
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// GormConfig routes gorm's SQL logging through logrus.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(logrus.StandardLogger(), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}
