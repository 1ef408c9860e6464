package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ifuryst/repurpose/internal/models"
)

type MonitoringService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewMonitoringService(db *gorm.DB, logger *zap.Logger) *MonitoringService {
	return &MonitoringService{
		db:     db,
		logger: logger,
	}
}

// RecordError 记录错误日志
func (m *MonitoringService) RecordError(level, source, title, message string, options ...ErrorLogOption) error {
	errorLog := &models.ErrorLog{
		Level:   level,
		Source:  source,
		Title:   title,
		Message: message,
	}

	// 应用选项
	for _, option := range options {
		option(errorLog)
	}

	return m.db.Create(errorLog).Error
}

// Report 记录错误日志, 写入失败时只打日志
func (m *MonitoringService) Report(level, source, title, message string, options ...ErrorLogOption) {
	if m == nil {
		return
	}
	if err := m.RecordError(level, source, title, message, options...); err != nil {
		m.logger.Error("Failed to record error log",
			zap.String("source", source),
			zap.String("title", title),
			zap.Error(err))
	}
}

// ErrorLogOption 错误日志选项
type ErrorLogOption func(*models.ErrorLog)

// WithPlatform 设置平台名称
func WithPlatform(platform string) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.Platform = platform
	}
}

// WithJob 设置任务ID
func WithJob(jobID uuid.UUID) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.JobID = &jobID
	}
}

// WithContext 设置上下文信息
func WithContext(context map[string]interface{}) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.Context = datatypes.JSONMap(context)
	}
}

func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

// UpdateSystemStats 更新系统统计数据
func (m *MonitoringService) UpdateSystemStats() error {
	day := today()

	var stats models.SystemStats
	result := m.db.Where("date = ?", day).First(&stats)
	if result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		return result.Error
	}

	// 查询各种统计数据
	var totalContent, totalOutputs int64
	m.db.Model(&models.Content{}).Count(&totalContent)
	m.db.Model(&models.Output{}).Count(&totalOutputs)

	counts := make(map[string]int64)
	var totalJobs int64
	for _, status := range []string{
		models.JobStatusCompleted,
		models.JobStatusFailed,
		models.JobStatusCancelled,
		models.JobStatusPending,
		models.JobStatusProcessing,
	} {
		var n int64
		m.db.Model(&models.Job{}).Where("status = ?", status).Count(&n)
		counts[status] = n
		totalJobs += n
	}

	// 平均处理时间
	var avg struct{ Value float64 }
	m.db.Model(&models.Job{}).
		Select("COALESCE(AVG(processing_time_seconds), 0) AS value").
		Where("status = ? AND processing_time_seconds IS NOT NULL", models.JobStatusCompleted).
		Scan(&avg)

	if result.Error == gorm.ErrRecordNotFound {
		// 创建新记录
		stats = models.SystemStats{
			Date:           day,
			TotalContent:   int(totalContent),
			TotalJobs:      int(totalJobs),
			CompletedJobs:  int(counts[models.JobStatusCompleted]),
			FailedJobs:     int(counts[models.JobStatusFailed]),
			CancelledJobs:  int(counts[models.JobStatusCancelled]),
			PendingJobs:    int(counts[models.JobStatusPending]),
			ProcessingJobs: int(counts[models.JobStatusProcessing]),
			TotalOutputs:   int(totalOutputs),
			AvgProcessTime: avg.Value,
		}
		return m.db.Create(&stats).Error
	}

	// 更新现有记录
	return m.db.Model(&stats).Updates(map[string]interface{}{
		"total_content":    totalContent,
		"total_jobs":       totalJobs,
		"completed_jobs":   counts[models.JobStatusCompleted],
		"failed_jobs":      counts[models.JobStatusFailed],
		"cancelled_jobs":   counts[models.JobStatusCancelled],
		"pending_jobs":     counts[models.JobStatusPending],
		"processing_jobs":  counts[models.JobStatusProcessing],
		"total_outputs":    totalOutputs,
		"avg_process_time": avg.Value,
	}).Error
}

// UpdatePlatformStats 更新平台统计数据
func (m *MonitoringService) UpdatePlatformStats() error {
	day := today()

	for _, platform := range models.SupportedPlatforms {
		var stats models.PlatformStats
		result := m.db.Where("date = ? AND platform = ?", day, platform).First(&stats)
		if result.Error != nil && result.Error != gorm.ErrRecordNotFound {
			return result.Error
		}

		// 查询平台相关统计
		var totalOutputs int64
		m.db.Model(&models.Output{}).Where("platform = ?", platform).Count(&totalOutputs)

		var avg struct{ Value float64 }
		m.db.Model(&models.Output{}).
			Select("COALESCE(AVG(quality_score), 0) AS value").
			Where("platform = ?", platform).
			Scan(&avg)

		// 获取最后输出和错误时间
		var lastOutput models.Output
		var lastError models.ErrorLog
		hasOutput := m.db.Where("platform = ?", platform).Order("created_at desc").Limit(1).Find(&lastOutput).RowsAffected > 0
		hasError := m.db.Where("platform = ?", platform).Order("created_at desc").Limit(1).Find(&lastError).RowsAffected > 0

		// 计算今日错误数量
		var errorCount int64
		m.db.Model(&models.ErrorLog{}).Where("platform = ? AND created_at >= ?", platform, day).Count(&errorCount)

		if result.Error == gorm.ErrRecordNotFound {
			// 创建新记录
			stats = models.PlatformStats{
				Date:            day,
				Platform:        platform,
				TotalOutputs:    int(totalOutputs),
				AvgQualityScore: avg.Value,
				ErrorCount:      int(errorCount),
			}
			if hasOutput {
				stats.LastOutputAt = &lastOutput.CreatedAt
			}
			if hasError {
				stats.LastErrorAt = &lastError.CreatedAt
			}
			if err := m.db.Create(&stats).Error; err != nil {
				return err
			}
			continue
		}

		// 更新现有记录
		updates := map[string]interface{}{
			"total_outputs":     totalOutputs,
			"avg_quality_score": avg.Value,
			"error_count":       errorCount,
		}
		if hasOutput {
			updates["last_output_at"] = lastOutput.CreatedAt
		}
		if hasError {
			updates["last_error_at"] = lastError.CreatedAt
		}
		if err := m.db.Model(&stats).Updates(updates).Error; err != nil {
			return err
		}
	}

	return nil
}

// RecordMetric 记录指标数据
func (m *MonitoringService) RecordMetric(name, metricType string, value float64, tags map[string]interface{}) error {
	metric := &models.MetricsSample{
		MetricName: name,
		MetricType: metricType,
		Value:      value,
		Tags:       datatypes.JSONMap(tags),
		Timestamp:  time.Now(),
	}

	return m.db.Create(metric).Error
}

// GetSystemStats 获取最近几天的系统统计
func (m *MonitoringService) GetSystemStats(days int) ([]models.SystemStats, error) {
	var stats []models.SystemStats
	startDate := today().AddDate(0, 0, -days)

	err := m.db.Where("date >= ?", startDate).
		Order("date desc").
		Find(&stats).Error
	return stats, err
}

// GetRecentErrors 获取最近的错误日志
func (m *MonitoringService) GetRecentErrors(limit int) ([]models.ErrorLog, error) {
	var errors []models.ErrorLog
	err := m.db.Order("created_at desc").
		Limit(limit).
		Find(&errors).Error
	return errors, err
}

// ResolveError 标记错误已处理
func (m *MonitoringService) ResolveError(id uint) error {
	now := time.Now()
	result := m.db.Model(&models.ErrorLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"resolved": true, "resolved_at": now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetPlatformStats 获取平台统计数据
func (m *MonitoringService) GetPlatformStats(days int) ([]models.PlatformStats, error) {
	var stats []models.PlatformStats
	startDate := today().AddDate(0, 0, -days)

	err := m.db.Where("date >= ?", startDate).
		Order("date desc, platform").
		Find(&stats).Error
	return stats, err
}

// CleanupOldData 清理旧数据
func (m *MonitoringService) CleanupOldData(daysToKeep int) error {
	cutoffDate := time.Now().AddDate(0, 0, -daysToKeep)

	// 清理旧的指标数据
	if err := m.db.Where("timestamp < ?", cutoffDate).Delete(&models.MetricsSample{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup metrics samples: %w", err)
	}

	// 清理旧的系统统计数据
	if err := m.db.Where("date < ?", cutoffDate).Delete(&models.SystemStats{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup system stats: %w", err)
	}

	// 清理旧的平台统计数据
	if err := m.db.Where("date < ?", cutoffDate).Delete(&models.PlatformStats{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup platform stats: %w", err)
	}

	// 清理已解决的旧错误日志
	if err := m.db.Where("created_at < ? AND resolved = ?", cutoffDate, true).Delete(&models.ErrorLog{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup resolved errors: %w", err)
	}

	return nil
}
