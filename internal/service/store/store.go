package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ifuryst/repurpose/internal/models"
)

// Store groups the typed record stores over one database handle
type Store struct {
	db        *gorm.DB
	Contents  *ContentStore
	Jobs      *JobStore
	Outputs   *OutputStore
	Analytics *AnalyticsStore
}

func New(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		Contents:  &ContentStore{Repository: NewRepository[models.Content](db)},
		Jobs:      &JobStore{Repository: NewRepository[models.Job](db), db: db},
		Outputs:   &OutputStore{Repository: NewRepository[models.Output](db), db: db},
		Analytics: &AnalyticsStore{Repository: NewRepository[models.Analytics](db), db: db},
	}
}

// Transaction runs fn against a Store bound to a single database transaction
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

type ContentStore struct {
	*Repository[models.Content]
}

// PatchAnalysis stores the analysis result on the content row
func (s *ContentStore) PatchAnalysis(ctx context.Context, id uuid.UUID, analysis map[string]interface{}) error {
	return s.Update(ctx, id, map[string]interface{}{"analysis": datatypes.JSONMap(analysis)})
}

type JobStore struct {
	*Repository[models.Job]
	db *gorm.DB
}

// FetchPending returns up to limit pending jobs, oldest first
func (s *JobStore) FetchPending(ctx context.Context, limit int) ([]models.Job, error) {
	return s.List(ctx, Query{
		Filters: map[string]interface{}{"status": models.JobStatusPending},
		Order:   "created_at ASC",
		Limit:   limit,
	})
}

// Claim moves a pending job to processing. It reports false when the job
// was no longer pending, so only one worker ever wins a given job.
func (s *JobStore) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobStatusPending).
		Updates(map[string]interface{}{
			"status":              models.JobStatusProcessing,
			"started_at":          gorm.Expr("COALESCE(started_at, ?)", now),
			"current_step":        "Loading content",
			"progress_percentage": 10,
			"heartbeat_at":        now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim job: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// UpdateProcessing writes fields only while the job is still processing and
// refreshes its heartbeat. ErrNotProcessing means the write was skipped.
func (s *JobStore) UpdateProcessing(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["heartbeat_at"] = time.Now()

	result := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobStatusProcessing).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotProcessing
	}
	return nil
}

// Cancel moves a pending or processing job to cancelled
func (s *JobStore) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND status IN ?", id, []string{models.JobStatusPending, models.JobStatusProcessing}).
		Updates(map[string]interface{}{
			"status":       models.JobStatusCancelled,
			"current_step": "Cancelled",
			"completed_at": time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to cancel job: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ListStale returns processing jobs whose lease expired before cutoff
func (s *JobStore) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.Job, error) {
	var jobs []models.Job
	err := s.db.WithContext(ctx).
		Where("status = ?", models.JobStatusProcessing).
		Where("(heartbeat_at IS NOT NULL AND heartbeat_at < ?) OR (heartbeat_at IS NULL AND updated_at < ?)", cutoff, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	return jobs, nil
}

// Requeue returns a stale processing job to pending and counts the retry
func (s *JobStore) Requeue(ctx context.Context, id uuid.UUID, cutoff time.Time) (bool, error) {
	return s.releaseStale(ctx, id, cutoff, map[string]interface{}{
		"status":              models.JobStatusPending,
		"progress_percentage": 0,
		"current_step":        "Requeued after lease expiry",
		"heartbeat_at":        nil,
		"retry_count":         gorm.Expr("retry_count + 1"),
	})
}

// ExpireLease fails a stale processing job that ran out of retries
func (s *JobStore) ExpireLease(ctx context.Context, id uuid.UUID, cutoff time.Time, message string) (bool, error) {
	return s.releaseStale(ctx, id, cutoff, map[string]interface{}{
		"status":              models.JobStatusFailed,
		"progress_percentage": 0,
		"current_step":        "Failed",
		"error_message":       message,
		"error_details":       datatypes.JSONMap{"stage": "lease", "error": message},
		"completed_at":        time.Now(),
	})
}

func (s *JobStore) releaseStale(ctx context.Context, id uuid.UUID, cutoff time.Time, fields map[string]interface{}) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobStatusProcessing).
		Where("(heartbeat_at IS NOT NULL AND heartbeat_at < ?) OR (heartbeat_at IS NULL AND updated_at < ?)", cutoff, cutoff).
		Updates(fields)
	if result.Error != nil {
		return false, fmt.Errorf("failed to release stale job: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

type OutputStore struct {
	*Repository[models.Output]
	db *gorm.DB
}

// ListByJob returns the outputs of a job in creation order
func (s *OutputStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Output, error) {
	return s.List(ctx, Query{
		Filters: map[string]interface{}{"job_id": jobID},
		Order:   "created_at ASC",
	})
}

type AnalyticsStore struct {
	*Repository[models.Analytics]
	db *gorm.DB
}

// Latest returns the most recent analytics row of an output
func (s *AnalyticsStore) Latest(ctx context.Context, outputID uuid.UUID) (*models.Analytics, error) {
	var record models.Analytics
	err := s.db.WithContext(ctx).
		Where("output_id = ?", outputID).
		Order("created_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics: %w", err)
	}
	return &record, nil
}

// Upsert overwrites the counters of the latest row or creates the first one.
// Rates are recomputed from the counters.
func (s *AnalyticsStore) Upsert(ctx context.Context, record *models.Analytics) error {
	record.ComputeRates()
	record.TrackedAt = time.Now()

	existing, err := s.Latest(ctx, record.OutputID)
	if errors.Is(err, ErrNotFound) {
		return s.Create(ctx, record)
	}
	if err != nil {
		return err
	}

	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt
	return s.Update(ctx, existing.ID, map[string]interface{}{
		"views":              record.Views,
		"clicks":             record.Clicks,
		"likes":              record.Likes,
		"comments":           record.Comments,
		"shares":             record.Shares,
		"engagement_rate":    record.EngagementRate,
		"click_through_rate": record.ClickThroughRate,
		"tracked_at":         record.TrackedAt,
	})
}

type platformOutputRow struct {
	Platform string
	Total    int
}

type platformMetricsRow struct {
	Platform       string
	Views          int
	Clicks         int
	Likes          int
	Comments       int
	Shares         int
	EngagementRate float64
}

// Summary aggregates the dashboard numbers of one user
func (s *Store) Summary(ctx context.Context, userID uuid.UUID) (*models.UserAnalyticsSummary, error) {
	byUser := map[string]interface{}{"user_id": userID}
	summary := &models.UserAnalyticsSummary{
		PlatformsUsed:     []string{},
		PlatformBreakdown: map[string]*models.PlatformAnalytics{},
	}

	var err error
	if summary.TotalContent, err = s.Contents.Count(ctx, byUser); err != nil {
		return nil, err
	}
	if summary.TotalJobs, err = s.Jobs.Count(ctx, byUser); err != nil {
		return nil, err
	}
	if summary.CompletedJobs, err = s.Jobs.Count(ctx, map[string]interface{}{"user_id": userID, "status": models.JobStatusCompleted}); err != nil {
		return nil, err
	}
	if summary.TotalOutputs, err = s.Outputs.Count(ctx, byUser); err != nil {
		return nil, err
	}
	if summary.FavoriteOutputs, err = s.Outputs.Count(ctx, map[string]interface{}{"user_id": userID, "is_favorite": true}); err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	err = s.db.WithContext(ctx).
		Model(&models.Job{}).
		Select("AVG(processing_time_seconds)").
		Where("user_id = ? AND status = ? AND processing_time_seconds IS NOT NULL", userID, models.JobStatusCompleted).
		Row().Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("failed to compute average processing time: %w", err)
	}
	if avg.Valid {
		summary.AvgProcessingTimeSeconds = &avg.Float64
	}

	var outputRows []platformOutputRow
	err = s.db.WithContext(ctx).
		Model(&models.Output{}).
		Select("platform, COUNT(*) AS total").
		Where("user_id = ?", userID).
		Group("platform").
		Scan(&outputRows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate outputs: %w", err)
	}
	for _, row := range outputRows {
		summary.PlatformBreakdown[row.Platform] = &models.PlatformAnalytics{
			Platform:     row.Platform,
			TotalOutputs: row.Total,
		}
	}

	var metricRows []platformMetricsRow
	err = s.db.WithContext(ctx).
		Model(&models.Analytics{}).
		Select("platform, SUM(views) AS views, SUM(clicks) AS clicks, SUM(likes) AS likes, " +
			"SUM(comments) AS comments, SUM(shares) AS shares, COALESCE(AVG(engagement_rate), 0) AS engagement_rate").
		Where("user_id = ?", userID).
		Group("platform").
		Scan(&metricRows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate analytics: %w", err)
	}
	for _, row := range metricRows {
		entry, ok := summary.PlatformBreakdown[row.Platform]
		if !ok {
			entry = &models.PlatformAnalytics{Platform: row.Platform}
			summary.PlatformBreakdown[row.Platform] = entry
		}
		entry.TotalViews = row.Views
		entry.TotalClicks = row.Clicks
		entry.TotalLikes = row.Likes
		entry.TotalComments = row.Comments
		entry.TotalShares = row.Shares
		entry.AvgEngagementRate = row.EngagementRate
	}

	for platform := range summary.PlatformBreakdown {
		summary.PlatformsUsed = append(summary.PlatformsUsed, platform)
	}
	sort.Strings(summary.PlatformsUsed)

	return summary, nil
}
