package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Analytics struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OutputID         uuid.UUID `gorm:"type:uuid;not null;index" json:"output_id"`
	UserID           uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Platform         string    `gorm:"size:50;index" json:"platform"`
	Views            int       `gorm:"default:0" json:"views"`
	Clicks           int       `gorm:"default:0" json:"clicks"`
	Likes            int       `gorm:"default:0" json:"likes"`
	Comments         int       `gorm:"default:0" json:"comments"`
	Shares           int       `gorm:"default:0" json:"shares"`
	EngagementRate   *float64  `json:"engagement_rate"`
	ClickThroughRate *float64  `json:"click_through_rate"`
	TrackedAt        time.Time `json:"tracked_at"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Analytics) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.TrackedAt.IsZero() {
		a.TrackedAt = time.Now()
	}
	return nil
}

// ComputeRates derives engagement and click-through rates from the counters.
// Both stay nil while there are no views.
func (a *Analytics) ComputeRates() {
	a.EngagementRate = nil
	a.ClickThroughRate = nil
	if a.Views <= 0 {
		return
	}
	engagement := float64(a.Likes+a.Comments+a.Shares) / float64(a.Views)
	ctr := float64(a.Clicks) / float64(a.Views)
	a.EngagementRate = &engagement
	a.ClickThroughRate = &ctr
}

// PlatformAnalytics aggregates analytics for one platform
type PlatformAnalytics struct {
	Platform          string  `json:"platform"`
	TotalOutputs      int     `json:"total_outputs"`
	AvgEngagementRate float64 `json:"avg_engagement_rate"`
	TotalViews        int     `json:"total_views"`
	TotalClicks       int     `json:"total_clicks"`
	TotalLikes        int     `json:"total_likes"`
	TotalComments     int     `json:"total_comments"`
	TotalShares       int     `json:"total_shares"`
}

// UserAnalyticsSummary is the dashboard view of one user's activity
type UserAnalyticsSummary struct {
	TotalContent             int64                         `json:"total_content"`
	TotalJobs                int64                         `json:"total_jobs"`
	CompletedJobs            int64                         `json:"completed_jobs"`
	TotalOutputs             int64                         `json:"total_outputs"`
	FavoriteOutputs          int64                         `json:"favorite_outputs"`
	AvgProcessingTimeSeconds *float64                      `json:"avg_processing_time_seconds"`
	PlatformsUsed            []string                      `json:"platforms_used"`
	PlatformBreakdown        map[string]*PlatformAnalytics `json:"platform_breakdown"`
}
