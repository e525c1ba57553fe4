package routes

import (
	"net/http"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fleet_tracker/internal/alerts"
	"fleet_tracker/internal/auth"
	"fleet_tracker/internal/catalog"
	"fleet_tracker/internal/metrics"
	"fleet_tracker/internal/store"
	"fleet_tracker/internal/telemetry"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Store    *store.Store
	Catalog  *catalog.Index
	Registry *auth.Registry
	Gate     *auth.Gate
	Tokens   *auth.TokenIssuer
	Ingestor *telemetry.Ingestor
	Alerts   *alerts.Store
	Hub      *alerts.Hub

	// AdminKey guards /admin; empty disables it.
	AdminKey string
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(ginlog.SetLogger(
		ginlog.WithSkipPath([]string{"/healthz", "/metrics"}),
		ginlog.WithUTC(true),
	))
	r.Use(gin.Recovery())

	r.GET("/healthz", healthz(d.Store))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	ServicePointRoutes(r, d)
	DeviceRoutes(r, d)
	WebSocketRoutes(r, d)
	AdminRoutes(r, d)

	return r
}

func healthz(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s != nil {
			if err := s.Ping(c.Request.Context()); err != nil {
				logrus.WithError(err).Warn("Health check: database unreachable.")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
