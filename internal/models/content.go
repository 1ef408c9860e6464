package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SourceTypePDF  = "pdf"
	SourceTypeDOCX = "docx"
	SourceTypePPTX = "pptx"
	SourceTypeTXT  = "txt"
	SourceTypeURL  = "url"
	SourceTypeText = "text"
)

type Content struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID         `gorm:"type:uuid;not null;index" json:"user_id"`
	Title         string            `gorm:"size:500;not null" json:"title"`
	SourceType    string            `gorm:"size:20;not null;index" json:"source_type"`
	OriginalText  string            `gorm:"type:text" json:"original_text"`
	SourceURL     string            `gorm:"size:2048" json:"source_url,omitempty"`
	FilePath      string            `gorm:"size:1024" json:"file_path,omitempty"`
	FileSizeBytes int64             `json:"file_size_bytes"`
	Metadata      datatypes.JSONMap `json:"metadata"`
	Analysis      datatypes.JSONMap `json:"analysis,omitempty"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt    `gorm:"index" json:"-"`
}

func (c *Content) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Metadata == nil {
		c.Metadata = datatypes.JSONMap{}
	}
	return nil
}
