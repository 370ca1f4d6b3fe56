package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// parsePagination reads limit/offset/sort query params with the spec's
// deterministic default sort (§6: "timestamp DESC, id ASC").
func parsePagination(c *gin.Context) Pagination {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	offset, _ := strconv.Atoi(c.Query("offset"))
	if offset < 0 {
		offset = 0
	}
	sort := c.DefaultQuery("sort", "timestamp desc, id asc")
	return Pagination{Limit: limit, Offset: offset, Sort: sort}
}

// listSystemsHandler handles GET /api/v1/dashboard/systems.
func (s *Server) listSystemsHandler(c *gin.Context) {
	systems, err := s.store.SystemOverviews(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Page[SystemOverview]{Items: systems, Total: len(systems)})
}

// systemEventsHandler handles GET /api/v1/systems/:id/events.
func (s *Server) systemEventsHandler(c *gin.Context) {
	events, total, err := s.store.Events(c.Request.Context(), c.Param("id"), parsePagination(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": events, "total": total})
}

// systemMetaHandler handles GET /api/v1/systems/:id/meta.
func (s *Server) systemMetaHandler(c *gin.Context) {
	results, total, err := s.store.MetaResults(c.Request.Context(), c.Param("id"), parsePagination(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": results, "total": total})
}

// systemFindingsHandler handles GET /api/v1/systems/:id/findings.
func (s *Server) systemFindingsHandler(c *gin.Context) {
	findings, total, err := s.store.Findings(c.Request.Context(), c.Param("id"), parsePagination(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": findings, "total": total})
}

// splitCSV splits a comma-separated multi-value filter query param;
// returns nil (not applied) for an empty value (§6: "multi-value filters
// (comma-separated)").
func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func buildEventSearchQuery(c *gin.Context) EventSearchQuery {
	return EventSearchQuery{
		SystemID:   c.Query("system_id"),
		Q:          c.Query("q"),
		QMode:      c.DefaultQuery("q_mode", "contains"),
		Severities: splitCSV(c.Query("severity")),
		Hosts:      splitCSV(c.Query("host")),
		Programs:   splitCSV(c.Query("program")),
		Sources:    splitCSV(c.Query("source")),
		From:       c.Query("from"),
		To:         c.Query("to"),
		Pagination: parsePagination(c),
	}
}

// eventsSearchHandler handles GET /api/v1/events/search (§6).
func (s *Server) eventsSearchHandler(c *gin.Context) {
	q := buildEventSearchQuery(c)
	events, total, err := s.store.SearchEvents(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": events, "total": total})
}

// eventsFacetsHandler handles GET /api/v1/events/facets.
func (s *Server) eventsFacetsHandler(c *gin.Context) {
	q := buildEventSearchQuery(c)
	facets, err := s.store.EventFacets(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, facets)
}

// eventsTraceHandler handles GET /api/v1/events/trace.
func (s *Server) eventsTraceHandler(c *gin.Context) {
	traceID := c.Query("trace_id")
	if traceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trace_id is required"})
		return
	}
	events, err := s.store.EventsByTraceID(c.Request.Context(), traceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": events})
}
