package api

import (
	"github.com/gin-gonic/gin"
	"github.com/logpulse/logpulse/pkg/events"
)

// scoresStreamHandler handles GET /api/v1/scores/stream (§6). gin's
// ResponseWriter already satisfies events.Flusher (io.Writer + Flush).
func (s *Server) scoresStreamHandler(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	events.Stream(c.Request.Context(), s.store, c.Writer, c.Request.Context().Done())
}
