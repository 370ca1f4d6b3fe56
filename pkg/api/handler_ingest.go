package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/logpulse/logpulse/pkg/ingest"
)

// ingestHandler handles POST /api/v1/ingest (§4.D, §6).
func (s *Server) ingestHandler(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	entries, err := ingest.ParseBody(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := s.ingestWriter.Ingest(c.Request.Context(), entries, c.ClientIP())

	resp := IngestResponse{Accepted: result.Accepted, Rejected: result.Rejected, Errors: result.Errors}
	if resp.Accepted == 0 {
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
