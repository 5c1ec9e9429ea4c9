// Package api exposes the scan pipeline, inventory, marketplace and
// notifications over HTTP with gin.
//
// Callers are identified by the X-User-ID header. Verifying who sent it is
// the job of the gateway in front of this service.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cardvault/pkg/metrics"
	"cardvault/pkg/models"
	"cardvault/pkg/repository"
	"cardvault/pkg/services/notification"
	"cardvault/pkg/services/scan"
)

// URLMapper turns stored file paths into client-facing URLs
type URLMapper interface {
	PublicURL(path string) string
}

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer calls into
type Deps struct {
	Store         repository.Store
	Scans         *scan.Service
	Notifications *notification.Generator
	URLs          URLMapper
	Tiers         models.TierTable
	Detector      HealthChecker // optional
	UploadDir     string        // served under /uploads when set
	Logger        *slog.Logger
}

// Server routes the HTTP API onto the services and store it was built with
type Server struct {
	engine        *gin.Engine
	store         repository.Store
	scans         *scan.Service
	notifications *notification.Generator
	urls          URLMapper
	tiers         models.TierTable
	detector      HealthChecker
	uploadDir     string
	logger        *slog.Logger
}

// NewServer builds the router
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine:        gin.New(),
		store:         deps.Store,
		scans:         deps.Scans,
		notifications: deps.Notifications,
		urls:          deps.URLs,
		tiers:         deps.Tiers,
		detector:      deps.Detector,
		uploadDir:     deps.UploadDir,
		logger:        logger,
	}
	s.engine.MaxMultipartMemory = 32 << 20
	s.engine.Use(requestLogger(logger), recovery(logger), metrics.Middleware())
	s.routes()
	return s
}

// Handler returns the http.Handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if s.uploadDir != "" {
		r.Static("/uploads", s.uploadDir)
	}

	v1 := r.Group("/api/v1")
	v1.POST("/users", s.createUser)

	authed := v1.Group("", s.requireUser)

	authed.GET("/dashboard", s.getDashboard)

	authed.GET("/settings", s.getSettings)
	authed.PATCH("/settings", s.updateSettings)

	authed.POST("/scans/upload", s.uploadScan)
	authed.GET("/scans/:id", s.getScan)
	authed.POST("/scans/:id/save", s.saveScanCards)

	authed.GET("/inventory", s.listInventory)
	authed.DELETE("/inventory/:id", s.deleteInventoryEntry)

	authed.GET("/marketplace/wants", s.listWants)
	authed.POST("/marketplace/wants", s.createWant)
	authed.DELETE("/marketplace/wants/:id", s.deleteWant)
	authed.GET("/marketplace/matches", s.listMatches)

	authed.GET("/notifications", s.listNotifications)
	authed.GET("/notifications/unread-count", s.unreadCount)
	authed.POST("/notifications/:id/read", s.markNotificationRead)

	authed.GET("/subscription", s.getSubscription)
	authed.GET("/subscription/tiers", s.listTiers)
	authed.POST("/subscription/upgrade", s.upgradeSubscription)
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "healthy"}
	if s.detector != nil {
		if err := s.detector.CheckHealth(c.Request.Context()); err != nil {
			body["detector"] = "unavailable"
			s.log(c).Warn("detector health check failed", "error", err)
		} else {
			body["detector"] = "healthy"
		}
	}
	c.JSON(http.StatusOK, body)
}
