package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ifuryst/repurpose/internal/models"
	"github.com/ifuryst/repurpose/internal/service"
	"github.com/ifuryst/repurpose/internal/service/store"
)

type updateAnalyticsRequest struct {
	Views    int `json:"views" binding:"min=0"`
	Clicks   int `json:"clicks" binding:"min=0"`
	Likes    int `json:"likes" binding:"min=0"`
	Comments int `json:"comments" binding:"min=0"`
	Shares   int `json:"shares" binding:"min=0"`
}

type outputAnalyticsResponse struct {
	OutputID         uuid.UUID `json:"output_id"`
	Platform         string    `json:"platform"`
	Views            int       `json:"views"`
	Clicks           int       `json:"clicks"`
	Likes            int       `json:"likes"`
	Comments         int       `json:"comments"`
	Shares           int       `json:"shares"`
	EngagementRate   *float64  `json:"engagement_rate"`
	ClickThroughRate *float64  `json:"click_through_rate"`
	TrackedAt        time.Time `json:"tracked_at"`
}

func (s *Server) handleAnalyticsSummary(c *gin.Context) {
	summary, err := s.Deps.Store.Summary(c.Request.Context(), service.UserID(c))
	if err != nil {
		s.internalError(c, "Failed to build analytics summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleGetOutputAnalytics(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	output, ok := ownedBy(s, c, s.Deps.Store.Outputs.Repository, id, "Output", outputOwner)
	if !ok {
		return
	}

	resp := outputAnalyticsResponse{
		OutputID:  id,
		Platform:  output.Platform,
		TrackedAt: output.CreatedAt,
	}

	record, err := s.Deps.Store.Analytics.Latest(c.Request.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		s.internalError(c, "Failed to load analytics", err, zap.String("output_id", id.String()))
		return
	default:
		resp.Views = record.Views
		resp.Clicks = record.Clicks
		resp.Likes = record.Likes
		resp.Comments = record.Comments
		resp.Shares = record.Shares
		resp.EngagementRate = record.EngagementRate
		resp.ClickThroughRate = record.ClickThroughRate
		resp.TrackedAt = record.TrackedAt
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleUpdateOutputAnalytics(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	output, ok := ownedBy(s, c, s.Deps.Store.Outputs.Repository, id, "Output", outputOwner)
	if !ok {
		return
	}

	var req updateAnalyticsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record := &models.Analytics{
		OutputID: id,
		UserID:   output.UserID,
		Platform: output.Platform,
		Views:    req.Views,
		Clicks:   req.Clicks,
		Likes:    req.Likes,
		Comments: req.Comments,
		Shares:   req.Shares,
	}
	if err := s.Deps.Store.Analytics.Upsert(c.Request.Context(), record); err != nil {
		s.internalError(c, "Failed to update analytics", err, zap.String("output_id", id.String()))
		return
	}

	s.Logger.Info("Analytics updated", zap.String("output_id", id.String()))
	c.JSON(http.StatusOK, gin.H{
		"message":         "Analytics updated successfully",
		"engagement_rate": record.EngagementRate,
	})
}
