package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PlatformLinkedIn = "linkedin"
	PlatformTwitter  = "twitter"
	PlatformBlog     = "blog"
	PlatformEmail    = "email"
)

// SupportedPlatforms lists the platforms the API accepts
var SupportedPlatforms = []string{PlatformLinkedIn, PlatformTwitter, PlatformBlog, PlatformEmail}

// IsSupportedPlatform reports whether name is one of SupportedPlatforms
func IsSupportedPlatform(name string) bool {
	for _, p := range SupportedPlatforms {
		if p == name {
			return true
		}
	}
	return false
}

type Output struct {
	ID                 uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	JobID              uuid.UUID         `gorm:"type:uuid;not null;index" json:"job_id"`
	ContentID          uuid.UUID         `gorm:"type:uuid;not null;index" json:"content_id"`
	UserID             uuid.UUID         `gorm:"type:uuid;not null;index" json:"user_id"`
	Platform           string            `gorm:"size:50;not null;index" json:"platform"`
	Content            datatypes.JSONMap `json:"content"`
	QualityScore       float64           `json:"quality_score"`
	ValidationResults  datatypes.JSONMap `json:"validation_results"`
	GenerationMetadata datatypes.JSONMap `json:"generation_metadata"`
	IsFavorite         bool              `gorm:"default:false;index" json:"is_favorite"`
	IsPublished        bool              `gorm:"default:false" json:"is_published"`
	PublishedURL       string            `gorm:"size:2048" json:"published_url,omitempty"`
	PublishedAt        *time.Time        `json:"published_at"`
	CreatedAt          time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt    `gorm:"index" json:"-"`
}

func (o *Output) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
