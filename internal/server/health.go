package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ifuryst/repurpose/internal/service/llm"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDisabled  = "disabled"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      statusHealthy,
		"version":     s.Config.Server.Version,
		"environment": s.Config.Server.Environment,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleDetailedHealth probes every backend. A failing probe degrades the
// overall status but never fails the request.
func (s *Server) handleDetailedHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	overall := statusHealthy
	services := gin.H{}

	probe := func(name string, check func(context.Context) error) {
		if err := check(ctx); err != nil {
			s.Logger.Error("Health check failed", zap.String("service", name), zap.Error(err))
			services[name] = statusUnhealthy
			overall = "degraded"
			return
		}
		services[name] = statusHealthy
	}

	probe("database", s.Deps.Store.Ping)

	if s.Deps.Objects != nil {
		probe("storage", s.Deps.Objects.Ping)
	} else {
		services["storage"] = statusDisabled
	}

	if s.Deps.Redis != nil {
		probe("redis", s.Deps.Redis.Ping)
	} else {
		services["redis"] = statusDisabled
	}

	switch {
	case s.Deps.Engine == nil:
		services["job_processor"] = statusDisabled
	case s.Deps.Engine.IsRunning():
		services["job_processor"] = "running"
	default:
		services["job_processor"] = "stopped"
	}

	llmStatus := "configured"
	if s.Deps.Completer.Name() == llm.ProviderOffline {
		llmStatus = "offline"
	}
	services["llm"] = gin.H{
		"status":   llmStatus,
		"provider": s.Deps.Completer.Name(),
		"model":    s.Deps.Completer.Model(),
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      overall,
		"version":     s.Config.Server.Version,
		"environment": s.Config.Server.Environment,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"services":    services,
	})
}
