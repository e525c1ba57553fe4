// Command seed loads the demo service points and provisions the test
// devices. It is safe to run repeatedly.
package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"fleet_tracker/internal/auth"
	"fleet_tracker/internal/catalog"
	"fleet_tracker/internal/config"
	"fleet_tracker/internal/logger"
	"fleet_tracker/internal/models"
	"fleet_tracker/internal/store"
)

type pointSeed struct {
	id, name, category, address string
	lat, lon                    float64
}

var servicePoints = []pointSeed{
	{"GAS001", "Petrolimex Station 01", models.CategoryFuel, "District 1, Ho Chi Minh City", 10.7769, 106.7009},
	{"GAS002", "Petrolimex Station 02", models.CategoryFuel, "District 1, Ho Chi Minh City", 10.7811, 106.6982},
	{"EV001", "VinFast Charging Hub", models.CategoryCharging, "District 3, Ho Chi Minh City", 10.7852, 106.6954},
	{"GARAGE001", "Saigon Auto Repair", models.CategoryRepair, "District 5, Ho Chi Minh City", 10.7714, 106.6682},
}

type deviceSeed struct {
	id, secret, make, model string
}

var devices = []deviceSeed{
	{"BOLT-TEST-001", "bolt_secret_key_for_testing", "ThinkPad", "DevClient"},
	{"BOLT-RPi-001", "ProdKey_RPi001_!@#", "Raspberry Pi", "5"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration.")
	}
	logCloser := logger.Setup(cfg.LogFile, cfg.LogLevel)
	defer logCloser.Close()

	db, err := config.OpenDB(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database.")
	}
	st := store.New(db)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := seed(ctx, st.Queries(), auth.NewBcryptVerifier(cfg.BcryptCost)); err != nil {
		logrus.WithError(err).Fatal("Seeding failed.")
	}
	logrus.Info("Seed data loaded.")
}

func seed(ctx context.Context, q *store.Queries, verifier auth.Verifier) error {
	index := catalog.NewIndex(q)
	if err := index.Reload(ctx); err != nil {
		return err
	}
	for _, s := range servicePoints {
		address := s.address
		p, err := models.NewServicePoint(s.id, s.name, s.category, &address, s.lat, s.lon)
		if err != nil {
			return err
		}
		if _, err := index.Upsert(ctx, p); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{"id": s.id, "category": s.category}).Info("Service point upserted.")
	}

	registry := auth.NewRegistry(q, verifier)
	for _, d := range devices {
		spec, err := auth.NewDeviceSpec(d.id, d.secret, d.make, d.model)
		if err != nil {
			return err
		}
		if _, err := registry.Provision(ctx, spec); err != nil {
			return err
		}
		logrus.WithField("device_id", d.id).Info("Device provisioned.")
	}
	return nil
}
