package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/logpulse/logpulse/pkg/model"
)

// acknowledgeFindingHandler handles PUT /api/v1/findings/:id/acknowledge
// (open → acknowledged, §6).
func (s *Server) acknowledgeFindingHandler(c *gin.Context) {
	f, err := s.store.AcknowledgeFinding(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// reopenFindingHandler handles PUT /api/v1/findings/:id/reopen
// (acknowledged → open, §6). Resolved findings are never reopened (§3
// invariant); the store implementation enforces this with model.ErrConflict.
func (s *Server) reopenFindingHandler(c *gin.Context) {
	f, err := s.store.ReopenFinding(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// recalculateScoresHandler handles POST /api/v1/systems/:id/recalculate-scores
// (§4.K).
func (s *Server) recalculateScoresHandler(c *gin.Context) {
	systemID := c.Param("id")
	cfg, err := s.store.DashboardConfig(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	since := time.Now().AddDate(0, 0, -cfg.ScoreDisplayWindowDays)

	result, err := s.recalc.Recalculate(c.Request.Context(), systemID, since)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows_updated": result.RowsUpdated, "seeded": result.Seeded})
}

// reEvaluateHandler handles POST /api/v1/systems/:id/re-evaluate: creates a
// manual window and runs meta-analysis with excludeAcknowledged=true (§6).
func (s *Server) reEvaluateHandler(c *gin.Context) {
	systemID := c.Param("id")
	cfg, err := s.store.DashboardConfig(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	windowID, err := s.windows.CreateManual(c.Request.Context(), systemID, time.Now(), cfg.ReevalWindowDays)
	if err != nil {
		respondError(c, err)
		return
	}

	metaCfg, err := s.store.MetaAnalysisConfig(c.Request.Context(), systemID)
	if err != nil {
		respondError(c, err)
		return
	}
	// Acknowledged events are excluded entirely. The context is not reset:
	// previous summaries and open findings are loaded as on a scheduled run.
	metaCfg.AckMode = model.EventAckModeSkip

	ran, err := s.meta.Run(c.Request.Context(), windowID, metaCfg)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"window_id": windowID, "analyzed": ran})
}

// acknowledgeEventsHandler handles POST /api/v1/events/acknowledge: a
// time-range + optional system scope, applied in batches of 5000 rows (§6).
func (s *Server) acknowledgeEventsHandler(c *gin.Context) {
	var req AckEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	count, err := s.store.AcknowledgeEventsInRange(c.Request.Context(), req.SystemID, req.From, req.To)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": count})
}

// unacknowledgeEventsHandler handles POST /api/v1/events/unacknowledge.
func (s *Server) unacknowledgeEventsHandler(c *gin.Context) {
	var req AckEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	count, err := s.store.UnacknowledgeEventsInRange(c.Request.Context(), req.SystemID, req.From, req.To)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": count})
}
