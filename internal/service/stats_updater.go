package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StatsUpdater handles periodic statistics updates
type StatsUpdater struct {
	monitoringService *MonitoringService
	logger            *zap.Logger
	interval          time.Duration
	retentionDays     int
	done              chan struct{}
}

// NewStatsUpdater creates a new stats updater
func NewStatsUpdater(monitoringService *MonitoringService, logger *zap.Logger, interval time.Duration, retentionDays int) *StatsUpdater {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &StatsUpdater{
		monitoringService: monitoringService,
		logger:            logger,
		interval:          interval,
		retentionDays:     retentionDays,
		done:              make(chan struct{}),
	}
}

// Start begins the periodic stats update process
func (s *StatsUpdater) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		s.logger.Info("Starting stats updater", zap.Duration("interval", s.interval))
		s.UpdateNow()
		for {
			select {
			case <-s.done:
				s.logger.Info("Stats updater stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Stats updater stopped due to context cancellation")
				return
			case <-ticker.C:
				s.UpdateNow()
			}
		}
	}()
}

// Stop stops the stats updater
func (s *StatsUpdater) Stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// UpdateNow performs one stats update
func (s *StatsUpdater) UpdateNow() {
	start := time.Now()
	s.logger.Debug("Updating statistics")

	if err := s.monitoringService.UpdateSystemStats(); err != nil {
		s.logger.Error("Failed to update system stats", zap.Error(err))
	}

	if err := s.monitoringService.UpdatePlatformStats(); err != nil {
		s.logger.Error("Failed to update platform stats", zap.Error(err))
	}

	if err := s.monitoringService.CleanupOldData(s.retentionDays); err != nil {
		s.logger.Error("Failed to cleanup old data", zap.Error(err))
	}

	s.logger.Debug("Statistics updated successfully", zap.Duration("duration", time.Since(start)))
}
