package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"fleet_tracker/internal/alerts"
	"fleet_tracker/internal/auth"
	"fleet_tracker/internal/catalog"
	"fleet_tracker/internal/config"
	"fleet_tracker/internal/logger"
	"fleet_tracker/internal/metrics"
	"fleet_tracker/internal/middleware"
	"fleet_tracker/internal/routes"
	"fleet_tracker/internal/scheduler"
	"fleet_tracker/internal/store"
	"fleet_tracker/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration.")
	}

	logCloser := logger.Setup(cfg.LogFile, cfg.LogLevel)
	defer logCloser.Close()

	gin.SetMode(cfg.GinMode)
	metrics.Register(prometheus.DefaultRegisterer)

	db, err := config.OpenDB(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database.")
	}
	st := store.New(db)
	defer st.Close()
	queries := st.Queries()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	index := catalog.NewIndex(queries)
	if err := index.Reload(ctx); err != nil {
		logrus.WithError(err).Fatal("Failed to load service point catalog.")
	}
	logrus.WithField("service_points", index.Len()).Info("Service point catalog loaded.")

	verifier := auth.NewBcryptVerifier(cfg.BcryptCost)
	registry := auth.NewRegistry(queries, verifier)
	gate := auth.NewGate(registry, verifier, cfg.AuthCacheTTL)
	registry.OnRotate(gate)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	hub := alerts.NewHub(cfg.HubBuffer)
	defer hub.Close()
	sinks := []alerts.Publisher{hub}

	if cfg.RedisAddr != "" {
		rp, err := alerts.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logrus.WithError(err).WithField("addr", cfg.RedisAddr).Warn("Redis unavailable, alert sink disabled.")
		} else {
			defer rp.Close()
			sinks = append(sinks, rp)
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		kp := alerts.NewKafkaPublisher(alerts.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaAlertTopic))
		defer kp.Close()
		sinks = append(sinks, kp)
	}

	alertStore := alerts.NewStore(queries)
	ingestor := telemetry.NewIngestor(
		st,
		queries,
		telemetry.NewRuleEngine(index),
		alertStore,
		alerts.NewFanout(sinks...),
	)

	sched := scheduler.New()
	if err := sched.ScheduleReload("catalog", cfg.CatalogRefreshSpec, index); err != nil {
		logrus.WithError(err).WithField("spec", cfg.CatalogRefreshSpec).Fatal("Invalid catalog refresh schedule.")
	}
	sched.Start()
	defer sched.Stop()

	r := routes.SetupRouter(routes.Deps{
		Store:    st,
		Catalog:  index,
		Registry: registry,
		Gate:     gate,
		Tokens:   tokens,
		Ingestor: ingestor,
		Alerts:   alertStore,
		Hub:      hub,
		AdminKey: cfg.AdminAPIKey,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           middleware.EnableCORS(cfg.CORSOrigins, r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("addr", cfg.HTTPAddr).Info("Server running.")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Server stopped unexpectedly.")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed.")
	}
}
