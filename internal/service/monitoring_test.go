package service

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ifuryst/repurpose/internal/config"
	"github.com/ifuryst/repurpose/internal/models"
)

func newTestMonitoring(t *testing.T) (*MonitoringService, *gorm.DB) {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "monitoring.db"),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	return NewMonitoringService(db, zap.NewNop()), db
}

func TestRecordAndResolveErrors(t *testing.T) {
	m, _ := newTestMonitoring(t)
	jobID := uuid.New()

	if err := m.RecordError(models.LogLevelError, "processor", "Job failed", "boom",
		WithJob(jobID), WithPlatform("twitter"), WithContext(map[string]interface{}{"stage": "generate"})); err != nil {
		t.Fatalf("record error: %v", err)
	}
	m.Report(models.LogLevelWarn, "reaper", "Lease expired", "requeued")

	logs, err := m.GetRecentErrors(10)
	if err != nil {
		t.Fatalf("recent errors: %v", err)
	}
	assert.Equal(t, 2, len(logs))

	var failed models.ErrorLog
	for _, l := range logs {
		if l.Source == "processor" {
			failed = l
		}
	}
	assert.Equal(t, "twitter", failed.Platform)
	assert.Equal(t, jobID, *failed.JobID)
	assert.Equal(t, "generate", failed.Context["stage"])

	if err := m.ResolveError(failed.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := m.ResolveError(9999); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestReportOnNilService(t *testing.T) {
	var m *MonitoringService
	m.Report(models.LogLevelError, "processor", "ignored", "nothing to write to")
}

func TestUpdateStatsKeepsOneRowPerDay(t *testing.T) {
	m, db := newTestMonitoring(t)

	content := &models.Content{UserID: uuid.New(), Title: "t", SourceType: models.SourceTypeText, OriginalText: "text"}
	if err := db.Create(content).Error; err != nil {
		t.Fatalf("create content: %v", err)
	}
	job := &models.Job{UserID: content.UserID, ContentID: content.ID, Platforms: models.StringArray{"blog"}, Status: models.JobStatusPending}
	if err := db.Create(job).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := m.UpdateSystemStats(); err != nil {
			t.Fatalf("update system stats: %v", err)
		}
		if err := m.UpdatePlatformStats(); err != nil {
			t.Fatalf("update platform stats: %v", err)
		}
	}

	system, err := m.GetSystemStats(1)
	if err != nil {
		t.Fatalf("system stats: %v", err)
	}
	assert.Equal(t, 1, len(system))
	assert.Equal(t, 1, system[0].TotalContent)
	assert.Equal(t, 1, system[0].PendingJobs)

	platforms, err := m.GetPlatformStats(1)
	if err != nil {
		t.Fatalf("platform stats: %v", err)
	}
	assert.Equal(t, len(models.SupportedPlatforms), len(platforms))
}

func TestCleanupOldData(t *testing.T) {
	m, db := newTestMonitoring(t)
	old := time.Now().AddDate(0, 0, -100)

	stale := &models.ErrorLog{Level: models.LogLevelError, Source: "processor", Title: "old", Message: "m", Resolved: true, CreatedAt: old}
	open := &models.ErrorLog{Level: models.LogLevelError, Source: "processor", Title: "open", Message: "m", CreatedAt: old}
	for _, e := range []*models.ErrorLog{stale, open} {
		if err := db.Create(e).Error; err != nil {
			t.Fatalf("create error log: %v", err)
		}
	}
	if err := m.RecordMetric("job_duration_seconds", "histogram", 12.5, map[string]interface{}{"platform": "blog"}); err != nil {
		t.Fatalf("record metric: %v", err)
	}

	if err := m.CleanupOldData(90); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	logs, err := m.GetRecentErrors(10)
	if err != nil {
		t.Fatalf("recent errors: %v", err)
	}
	assert.Equal(t, 1, len(logs))
	assert.Equal(t, "open", logs[0].Title)

	var samples int64
	db.Model(&models.MetricsSample{}).Count(&samples)
	assert.Equal(t, int64(1), samples)
}
