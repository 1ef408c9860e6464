package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/ifuryst/repurpose/internal/models"
	"github.com/ifuryst/repurpose/internal/service"
	"github.com/ifuryst/repurpose/internal/service/store"
)

type updateOutputRequest struct {
	IsFavorite   *bool   `json:"is_favorite"`
	IsPublished  *bool   `json:"is_published"`
	PublishedURL *string `json:"published_url"`
}

type regenerateRequest struct {
	Preferences map[string]interface{} `json:"preferences"`
}

// handleGetJobOutputs returns the outputs of the job :id keyed by platform
func (s *Server) handleGetJobOutputs(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, ok := ownedBy(s, c, s.Deps.Store.Jobs.Repository, id, "Job", jobOwner); !ok {
		return
	}

	outputs, err := s.Deps.Store.Outputs.ListByJob(c.Request.Context(), id)
	if err != nil {
		s.internalError(c, "Failed to list outputs", err, zap.String("job_id", id.String()))
		return
	}

	byPlatform := make(map[string]models.Output, len(outputs))
	for _, o := range outputs {
		byPlatform[o.Platform] = o
	}
	c.JSON(http.StatusOK, gin.H{"job_id": id, "outputs": byPlatform})
}

func (s *Server) handleGetOutput(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	output, ok := ownedBy(s, c, s.Deps.Store.Outputs.Repository, id, "Output", outputOwner)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, output)
}

func (s *Server) handleListOutputs(c *gin.Context) {
	ctx := c.Request.Context()
	p := parsePagination(c)

	filters := map[string]interface{}{"user_id": service.UserID(c)}
	if platform := c.Query("platform"); platform != "" {
		filters["platform"] = platform
	}
	if raw := c.Query("is_favorite"); raw != "" {
		favorite, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid is_favorite"})
			return
		}
		filters["is_favorite"] = favorite
	}

	items, err := s.Deps.Store.Outputs.List(ctx, store.Query{
		Filters: filters,
		Order:   "created_at DESC",
		Limit:   p.limit,
		Offset:  p.offset(),
	})
	if err != nil {
		s.internalError(c, "Failed to list outputs", err)
		return
	}
	total, err := s.Deps.Store.Outputs.Count(ctx, filters)
	if err != nil {
		s.internalError(c, "Failed to count outputs", err)
		return
	}
	c.JSON(http.StatusOK, newPage(items, total, p))
}

func (s *Server) handleUpdateOutput(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	output, ok := ownedBy(s, c, s.Deps.Store.Outputs.Repository, id, "Output", outputOwner)
	if !ok {
		return
	}

	var req updateOutputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := map[string]interface{}{}
	if req.IsFavorite != nil {
		fields["is_favorite"] = *req.IsFavorite
	}
	if req.PublishedURL != nil {
		fields["published_url"] = *req.PublishedURL
	}
	if req.IsPublished != nil {
		fields["is_published"] = *req.IsPublished
		if *req.IsPublished && !output.IsPublished {
			fields["published_at"] = time.Now()
		}
	}

	ctx := c.Request.Context()
	if len(fields) > 0 {
		if err := s.Deps.Store.Outputs.Update(ctx, id, fields); err != nil {
			s.internalError(c, "Failed to update output", err, zap.String("output_id", id.String()))
			return
		}
	}

	updated, err := s.Deps.Store.Outputs.Get(ctx, id)
	if err != nil {
		s.internalError(c, "Failed to load output", err, zap.String("output_id", id.String()))
		return
	}
	c.JSON(http.StatusOK, updated)
}

// handleRegenerateOutput queues a single-platform job for the output's content
func (s *Server) handleRegenerateOutput(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	output, ok := ownedBy(s, c, s.Deps.Store.Outputs.Repository, id, "Output", outputOwner)
	if !ok {
		return
	}

	var req regenerateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Preferences == nil {
		req.Preferences = map[string]interface{}{}
	}

	ctx := c.Request.Context()
	if _, err := s.Deps.Store.Contents.Get(ctx, output.ContentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Content not found"})
			return
		}
		s.internalError(c, "Failed to load content", err, zap.String("content_id", output.ContentID.String()))
		return
	}

	job := &models.Job{
		ContentID:       output.ContentID,
		UserID:          output.UserID,
		Platforms:       models.StringArray{output.Platform},
		UserPreferences: datatypes.JSONMap(req.Preferences),
		Status:          models.JobStatusPending,
	}
	if err := s.Deps.Store.Jobs.Create(ctx, job); err != nil {
		s.internalError(c, "Failed to create job", err, zap.String("output_id", id.String()))
		return
	}

	s.notifyJob(c, job)

	s.Logger.Info("Regeneration job created",
		zap.String("job_id", job.ID.String()),
		zap.String("output_id", id.String()))
	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  job.ID,
		"status":  models.JobStatusPending,
		"message": "Regeneration started",
	})
}
