package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/briefly-app/briefly/internal/scheduler"
)

// Dev-only scheduler triggers. Registered outside production so maintenance
// jobs can be exercised without waiting for their cadence.

func (s *Server) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"jobs":    s.scheduler.JobNames(),
	})
}

func (s *Server) RunJob(c *gin.Context) {
	name := c.Param("name")

	if err := s.scheduler.RunJob(c.Request.Context(), name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownJob) {
			c.JSON(http.StatusNotFound, errorResponse{
				Error:   "unknown_job",
				Message: "unknown job",
			})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "job": name})
}
