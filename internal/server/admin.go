package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultErrorLimit = 50
	maxErrorLimit     = 500
	defaultStatsDays  = 7

	// how long a stop request waits for the loop to exit
	stopWait = 2 * time.Second
)

func (s *Server) handleProcessorStatus(c *gin.Context) {
	if s.Deps.Engine == nil {
		c.JSON(http.StatusOK, gin.H{"in_process": false, "running": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"in_process": true, "stats": s.Deps.Engine.Stats()})
}

func (s *Server) handleProcessorStart(c *gin.Context) {
	if s.Deps.Engine == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Job processor does not run in this process"})
		return
	}
	if s.Deps.Engine.IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"error": "Job processor is already running"})
		return
	}

	s.startEngine()
	s.Logger.Info("Job processor started by operator")
	c.JSON(http.StatusOK, gin.H{"message": "Job processor started"})
}

func (s *Server) handleProcessorStop(c *gin.Context) {
	if s.Deps.Engine == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Job processor does not run in this process"})
		return
	}
	if !s.Deps.Engine.IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"error": "Job processor is not running"})
		return
	}

	s.Deps.Engine.Stop()
	s.Logger.Info("Job processor stopped by operator")

	ctx, cancel := context.WithTimeout(c.Request.Context(), stopWait)
	defer cancel()
	if err := s.Deps.Engine.Wait(ctx); err != nil {
		c.JSON(http.StatusAccepted, gin.H{"message": "Job processor stopping, in-flight jobs will finish"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job processor stopped"})
}

func (s *Server) handleRecentErrors(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultErrorLimit)))
	if err != nil || limit < 1 {
		limit = defaultErrorLimit
	}
	limit = min(limit, maxErrorLimit)

	logs, err := s.Deps.Monitoring.GetRecentErrors(limit)
	if err != nil {
		s.internalError(c, "Failed to get error logs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"errors": logs})
}

func (s *Server) handleResolveError(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return
	}

	if err := s.Deps.Monitoring.ResolveError(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Error log not found"})
			return
		}
		s.internalError(c, "Failed to resolve error log", err, zap.Uint64("id", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Error log resolved"})
}

// handleStats returns the daily system and platform rollups. refresh=true
// recomputes today's rows first.
func (s *Server) handleStats(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(defaultStatsDays)))
	if err != nil || days < 0 {
		days = defaultStatsDays
	}

	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh && s.Deps.StatsUpdater != nil {
		s.Deps.StatsUpdater.UpdateNow()
	}

	system, err := s.Deps.Monitoring.GetSystemStats(days)
	if err != nil {
		s.internalError(c, "Failed to get system stats", err)
		return
	}
	platforms, err := s.Deps.Monitoring.GetPlatformStats(days)
	if err != nil {
		s.internalError(c, "Failed to get platform stats", err)
		return
	}

	resp := gin.H{"system": system, "platforms": platforms}
	if s.Deps.Engine != nil {
		resp["processor"] = s.Deps.Engine.Stats()
	}
	c.JSON(http.StatusOK, resp)
}
