package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	LogLevelError = "ERROR"
	LogLevelWarn  = "WARN"
	LogLevelInfo  = "INFO"
)

// SystemStats 每日任务处理统计
type SystemStats struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Date           time.Time `gorm:"uniqueIndex;not null" json:"date"` // 按日统计
	TotalContent   int       `gorm:"default:0" json:"total_content"`
	TotalJobs      int       `gorm:"default:0" json:"total_jobs"`
	CompletedJobs  int       `gorm:"default:0" json:"completed_jobs"`
	FailedJobs     int       `gorm:"default:0" json:"failed_jobs"`
	CancelledJobs  int       `gorm:"default:0" json:"cancelled_jobs"`
	PendingJobs    int       `gorm:"default:0" json:"pending_jobs"`
	ProcessingJobs int       `gorm:"default:0" json:"processing_jobs"`
	TotalOutputs   int       `gorm:"default:0" json:"total_outputs"`
	AvgProcessTime float64   `gorm:"default:0" json:"avg_process_time"` // 秒
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PlatformStats 平台级别生成统计
type PlatformStats struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Date            time.Time  `gorm:"uniqueIndex:idx_platform_stats_day;not null" json:"date"`
	Platform        string     `gorm:"uniqueIndex:idx_platform_stats_day;size:50;not null" json:"platform"`
	TotalOutputs    int        `gorm:"default:0" json:"total_outputs"`
	AvgQualityScore float64    `gorm:"default:0" json:"avg_quality_score"`
	ErrorCount      int        `gorm:"default:0" json:"error_count"`
	LastOutputAt    *time.Time `json:"last_output_at"`
	LastErrorAt     *time.Time `json:"last_error_at"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ErrorLog 错误日志表
type ErrorLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	Level      string            `gorm:"size:20;not null;index" json:"level"`   // ERROR, WARN, INFO
	Source     string            `gorm:"size:100;not null;index" json:"source"` // processor, generator, reaper等
	Platform   string            `gorm:"size:50;index" json:"platform"`
	JobID      *uuid.UUID        `gorm:"type:uuid;index" json:"job_id"`
	Title      string            `gorm:"size:500;not null" json:"title"`
	Message    string            `gorm:"type:text;not null" json:"message"`
	Context    datatypes.JSONMap `json:"context"`
	Resolved   bool              `gorm:"default:false;index" json:"resolved"`
	ResolvedAt *time.Time        `json:"resolved_at"`
	CreatedAt  time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// MetricsSample 指标采样数据
type MetricsSample struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	MetricName string            `gorm:"size:100;not null;index" json:"metric_name"`
	MetricType string            `gorm:"size:50;not null" json:"metric_type"` // gauge, counter, histogram
	Value      float64           `gorm:"not null" json:"value"`
	Tags       datatypes.JSONMap `json:"tags"`
	Timestamp  time.Time         `gorm:"not null;index" json:"timestamp"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
}
