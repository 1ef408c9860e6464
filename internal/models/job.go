package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

type Job struct {
	ID                    uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ContentID             uuid.UUID         `gorm:"type:uuid;not null;index" json:"content_id"`
	UserID                uuid.UUID         `gorm:"type:uuid;not null;index" json:"user_id"`
	Title                 string            `gorm:"size:255" json:"title,omitempty"`
	Platforms             StringArray       `gorm:"not null" json:"platforms"`
	UserPreferences       datatypes.JSONMap `json:"user_preferences"`
	Status                string            `gorm:"size:20;default:'pending';index" json:"status"`
	ProgressPercentage    int               `gorm:"default:0" json:"progress_percentage"`
	CurrentStep           string            `gorm:"size:255" json:"current_step,omitempty"`
	StartedAt             *time.Time        `json:"started_at"`
	CompletedAt           *time.Time        `json:"completed_at"`
	ProcessingTimeSeconds *int              `json:"processing_time_seconds"`
	ErrorMessage          string            `gorm:"type:text" json:"error_message,omitempty"`
	ErrorDetails          datatypes.JSONMap `json:"error_details,omitempty"`
	RetryCount            int               `gorm:"default:0" json:"retry_count"`
	HeartbeatAt           *time.Time        `gorm:"index" json:"heartbeat_at,omitempty"`
	CreatedAt             time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt             time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt             gorm.DeletedAt    `gorm:"index" json:"-"`
}

func (j *Job) BeforeCreate(*gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	if j.UserPreferences == nil {
		j.UserPreferences = datatypes.JSONMap{}
	}
	return nil
}

// IsTerminal reports whether the job reached completed, failed or cancelled
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// IsCancellable reports whether a user may cancel the job
func (j *Job) IsCancellable() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusProcessing
}
