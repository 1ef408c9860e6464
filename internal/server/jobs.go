package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ifuryst/repurpose/internal/service"
	"github.com/ifuryst/repurpose/internal/service/store"
)

func (s *Server) handleGetJob(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	job, ok := ownedBy(s, c, s.Deps.Store.Jobs.Repository, id, "Job", jobOwner)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleListJobs(c *gin.Context) {
	ctx := c.Request.Context()
	p := parsePagination(c)

	filters := map[string]interface{}{"user_id": service.UserID(c)}
	if status := c.Query("status_filter"); status != "" {
		filters["status"] = status
	}

	items, err := s.Deps.Store.Jobs.List(ctx, store.Query{
		Filters: filters,
		Order:   "created_at DESC",
		Limit:   p.limit,
		Offset:  p.offset(),
	})
	if err != nil {
		s.internalError(c, "Failed to list jobs", err)
		return
	}
	total, err := s.Deps.Store.Jobs.Count(ctx, filters)
	if err != nil {
		s.internalError(c, "Failed to count jobs", err)
		return
	}
	c.JSON(http.StatusOK, newPage(items, total, p))
}

func (s *Server) handleCancelJob(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	job, ok := ownedBy(s, c, s.Deps.Store.Jobs.Repository, id, "Job", jobOwner)
	if !ok {
		return
	}
	if !job.IsCancellable() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Can only cancel pending or processing jobs"})
		return
	}

	cancelled, err := s.Deps.Store.Jobs.Cancel(c.Request.Context(), id)
	if err != nil {
		s.internalError(c, "Failed to cancel job", err, zap.String("job_id", id.String()))
		return
	}
	if !cancelled {
		// the job reached a terminal state between the read and the write
		c.JSON(http.StatusBadRequest, gin.H{"error": "Can only cancel pending or processing jobs"})
		return
	}

	s.Logger.Info("Job cancelled", zap.String("job_id", id.String()))
	c.JSON(http.StatusOK, gin.H{"message": "Job cancelled successfully"})
}

func (s *Server) handleDeleteJob(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	job, ok := ownedBy(s, c, s.Deps.Store.Jobs.Repository, id, "Job", jobOwner)
	if !ok {
		return
	}
	if !job.IsTerminal() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete pending or processing jobs. Cancel them first."})
		return
	}

	if err := s.Deps.Store.Jobs.SoftDelete(c.Request.Context(), id); err != nil {
		s.internalError(c, "Failed to delete job", err, zap.String("job_id", id.String()))
		return
	}

	s.Logger.Info("Job deleted", zap.String("job_id", id.String()))
	c.Status(http.StatusNoContent)
}
