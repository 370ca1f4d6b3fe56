package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/logpulse/logpulse/pkg/model"
)

func templateFromRequest(req TemplateRequest) model.NormalBehaviorTemplate {
	return model.NormalBehaviorTemplate{
		SystemID:       req.SystemID,
		Pattern:        req.Pattern,
		HostPattern:    req.HostPattern,
		ProgramPattern: req.ProgramPattern,
		ExampleMessage: req.ExampleMessage,
		Enabled:        req.Enabled,
		Notes:          req.Notes,
	}
}

// listTemplatesHandler handles GET /api/v1/normal-behavior-templates.
func (s *Server) listTemplatesHandler(c *gin.Context) {
	systemID := c.Query("system_id")
	templates, err := s.store.NormalBehaviorTemplates(c.Request.Context(), systemID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": templates})
}

// createTemplateHandler handles POST /api/v1/normal-behavior-templates.
func (s *Server) createTemplateHandler(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := s.store.CreateTemplate(c.Request.Context(), templateFromRequest(req))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// updateTemplateHandler handles PUT /api/v1/normal-behavior-templates/:id.
func (s *Server) updateTemplateHandler(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t := templateFromRequest(req)
	t.ID = c.Param("id")
	updated, err := s.store.UpdateTemplate(c.Request.Context(), t)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// deleteTemplateHandler handles DELETE /api/v1/normal-behavior-templates/:id.
func (s *Server) deleteTemplateHandler(c *gin.Context) {
	if err := s.store.DeleteTemplate(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// previewTemplateHandler handles POST
// /api/v1/normal-behavior-templates/preview: reports how many already-stored
// events the candidate pattern would match, without persisting anything.
func (s *Server) previewTemplateHandler(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sample, total, err := s.store.PreviewTemplateMatches(c.Request.Context(), templateFromRequest(req))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, TemplatePreviewResponse{MatchCount: total, Sample: sample})
}
