// Package api provides the HTTP API for logpulse (§6).
package api

import (
	"context"
	stdsql "database/sql"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/logpulse/logpulse/pkg/events"
	"github.com/logpulse/logpulse/pkg/ingest"
	"github.com/logpulse/logpulse/pkg/metaanalysis"
	"github.com/logpulse/logpulse/pkg/model"
	"github.com/logpulse/logpulse/pkg/normalbehavior"
	"github.com/logpulse/logpulse/pkg/recalc"
	"github.com/logpulse/logpulse/pkg/version"
	"github.com/logpulse/logpulse/pkg/window"
)

// Store is the read/write surface the API layer needs beyond the pipeline
// components it composes (ingest.Writer, recalc.Engine, window.Advancer,
// metaanalysis.Analyzer, events.Store).
type Store interface {
	events.Store

	Systems(ctx context.Context) ([]model.MonitoredSystem, error)
	System(ctx context.Context, systemID string) (model.MonitoredSystem, error)
	SystemOverviews(ctx context.Context) ([]SystemOverview, error)

	Events(ctx context.Context, systemID string, p Pagination) ([]model.Event, int, error)
	SearchEvents(ctx context.Context, q EventSearchQuery) ([]model.Event, int, error)
	EventFacets(ctx context.Context, q EventSearchQuery) (EventFacetsResponse, error)
	EventsByTraceID(ctx context.Context, traceID string) ([]model.Event, error)
	AcknowledgeEventsInRange(ctx context.Context, systemID, from, to string) (int, error)
	UnacknowledgeEventsInRange(ctx context.Context, systemID, from, to string) (int, error)

	MetaResults(ctx context.Context, systemID string, p Pagination) ([]model.MetaResult, int, error)
	Findings(ctx context.Context, systemID string, p Pagination) ([]model.Finding, int, error)
	Finding(ctx context.Context, findingID string) (model.Finding, error)
	AcknowledgeFinding(ctx context.Context, findingID string) (model.Finding, error)
	ReopenFinding(ctx context.Context, findingID string) (model.Finding, error)

	NormalBehaviorTemplates(ctx context.Context, systemID string) ([]model.NormalBehaviorTemplate, error)
	CreateTemplate(ctx context.Context, t model.NormalBehaviorTemplate) (model.NormalBehaviorTemplate, error)
	UpdateTemplate(ctx context.Context, t model.NormalBehaviorTemplate) (model.NormalBehaviorTemplate, error)
	DeleteTemplate(ctx context.Context, templateID string) error
	PreviewTemplateMatches(ctx context.Context, candidate model.NormalBehaviorTemplate) ([]model.Event, int, error)

	DashboardConfig(ctx context.Context) (model.DashboardConfig, error)
	MetaAnalysisConfig(ctx context.Context, systemID string) (metaanalysis.Config, error)
}

// Server is the HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	store        Store
	db           *stdsql.DB
	ingestWriter *ingest.Writer
	recalc       *recalc.Engine
	windows      *window.Advancer
	meta         *metaanalysis.Analyzer
	normalbehav  *normalbehavior.Registry

	dashboardDir string
}

// NewServer builds the API server and registers its routes. db backs only
// the /health check; all domain reads/writes go through store.
func NewServer(store Store, db *stdsql.DB, writer *ingest.Writer, recalcEngine *recalc.Engine, windows *window.Advancer, meta *metaanalysis.Analyzer) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), securityHeaders())

	s := &Server{
		engine:       engine,
		store:        store,
		db:           db,
		ingestWriter: writer,
		recalc:       recalcEngine,
		windows:      windows,
		meta:         meta,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.MaxMultipartMemory = 2 << 20 // 2 MB, matching the ingest batch cap's envelope overhead

	s.engine.GET("/health", s.healthHandler)

	v1 := s.engine.Group("/api/v1")

	v1.POST("/ingest", s.ingestHandler)

	v1.GET("/dashboard/systems", s.listSystemsHandler)
	v1.GET("/systems/:id/events", s.systemEventsHandler)
	v1.GET("/systems/:id/meta", s.systemMetaHandler)
	v1.GET("/systems/:id/findings", s.systemFindingsHandler)
	v1.GET("/events/search", s.eventsSearchHandler)
	v1.GET("/events/facets", s.eventsFacetsHandler)
	v1.GET("/events/trace", s.eventsTraceHandler)

	v1.PUT("/findings/:id/acknowledge", s.acknowledgeFindingHandler)
	v1.PUT("/findings/:id/reopen", s.reopenFindingHandler)
	v1.POST("/systems/:id/recalculate-scores", s.recalculateScoresHandler)
	v1.POST("/systems/:id/re-evaluate", s.reEvaluateHandler)
	v1.POST("/events/acknowledge", s.acknowledgeEventsHandler)
	v1.POST("/events/unacknowledge", s.unacknowledgeEventsHandler)

	v1.GET("/normal-behavior-templates", s.listTemplatesHandler)
	v1.POST("/normal-behavior-templates", s.createTemplateHandler)
	v1.PUT("/normal-behavior-templates/:id", s.updateTemplateHandler)
	v1.DELETE("/normal-behavior-templates/:id", s.deleteTemplateHandler)
	v1.POST("/normal-behavior-templates/preview", s.previewTemplateHandler)

	v1.GET("/scores/stream", s.scoresStreamHandler)
}

// SetDashboardDir registers static file serving for a built dashboard
// directory, with API routes taking priority (registered above already).
func (s *Server) SetDashboardDir(dir string) {
	s.dashboardDir = dir
	s.setupDashboardRoutes()
}

func (s *Server) setupDashboardRoutes() {
	if s.dashboardDir == "" {
		return
	}
	indexPath := filepath.Join(s.dashboardDir, "index.html")
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		return
	}

	dashFS := os.DirFS(s.dashboardDir)
	if assetsFS, err := fs.Sub(dashFS, "assets"); err == nil {
		s.engine.GET("/assets/*filepath", func(c *gin.Context) {
			c.Header("Cache-Control", "public, max-age=31536000, immutable")
			c.FileFromFS(strings.TrimPrefix(c.Param("filepath"), "/"), http.FS(assetsFS))
		})
	}

	s.engine.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || path == "/health" {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Header("Cache-Control", "no-cache")

		relPath := strings.TrimPrefix(path, "/")
		if relPath != "" {
			if info, err := fs.Stat(dashFS, relPath); err == nil && !info.IsDir() {
				c.FileFromFS(relPath, http.FS(dashFS))
				return
			}
		}
		c.FileFromFS("index.html", http.FS(dashFS))
	})
}

// Start serves on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// StartWithListener serves on a pre-created listener (blocking) — used by
// test infrastructure on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.engine}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := "healthy"

	if err := s.db.PingContext(reqCtx); err != nil {
		status = "unhealthy"
		checks["database"] = HealthCheck{Status: "unhealthy", Message: err.Error()}
	} else {
		checks["database"] = HealthCheck{Status: "healthy"}
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, &HealthResponse{Status: status, Version: version.Full(), Checks: checks})
}
