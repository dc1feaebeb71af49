// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"math"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/infrastructure/metrics"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/concurrent"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/constants"
)

const (
	errIndexUnavailable = "status index unavailable"
	errTasksUnavailable = "Unable to fetch ECS details"
)

// AutoscalingService reports how busy the bot fleet is.
type AutoscalingService struct {
	RecordingRepository domain.RecordingRepository
	// TaskCounter is nil when no orchestration platform is configured.
	TaskCounter domain.TaskCounter
	WorkerPool  *concurrent.WorkerPool
	Config      ServiceConfig
	now         clock
}

// NewAutoscalingService creates a new AutoscalingService.
func NewAutoscalingService(
	recordingRepository domain.RecordingRepository,
	taskCounter domain.TaskCounter,
	config ServiceConfig,
) *AutoscalingService {
	return &AutoscalingService{
		RecordingRepository: recordingRepository,
		TaskCounter:         taskCounter,
		WorkerPool:          concurrent.NewWorkerPool(len(models.ActiveRecordingStatuses) + 1),
		Config:              config,
		now:                 systemClock,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *AutoscalingService) ServiceReady() bool {
	return s.RecordingRepository != nil && s.WorkerPool != nil
}

// CountActive counts the bots that hold an active status and sent a heartbeat within
// the staleness window. It never fails: an unreadable index yields zero counts with
// the error attached.
func (s *AutoscalingService) CountActive(ctx context.Context) models.InstanceCounts {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return models.InstanceCounts{Error: errIndexUnavailable, Message: domain.ErrServiceUnavailable.Error()}
	}

	var total int
	countTotal := func(ctx context.Context) error {
		n, err := s.RecordingRepository.CountRecordings(ctx)
		total = n
		return err
	}

	var perStatus []int
	countActive := func(ctx context.Context) error {
		now := s.now()
		counts, err := concurrent.Map(ctx, s.WorkerPool, models.ActiveRecordingStatuses,
			func(ctx context.Context, status models.RecordingStatus) (int, error) {
				records, err := s.RecordingRepository.ListRecordingsByStatus(ctx, status)
				if err != nil {
					return 0, err
				}
				fresh := 0
				for _, record := range records {
					if age, ok := record.HeartbeatAge(now); ok && age <= constants.HeartbeatStaleAfter {
						fresh++
					}
				}
				return fresh, nil
			})
		perStatus = counts
		return err
	}

	if err := s.WorkerPool.Run(ctx, countTotal, countActive); err != nil {
		slog.ErrorContext(ctx, "error counting active instances", logging.ErrKey, err)
		return models.InstanceCounts{Error: errIndexUnavailable, Message: err.Error()}
	}

	active := 0
	for _, n := range perStatus {
		active += n
	}
	metrics.ActiveInstances.Set(float64(active))

	return models.InstanceCounts{Active: active, Total: total}
}

// TaskDetails returns the orchestration platform's task counts, or counts carrying
// the error when they cannot be fetched.
func (s *AutoscalingService) TaskDetails(ctx context.Context) *models.TaskCounts {
	if s.TaskCounter == nil {
		return &models.TaskCounts{Error: errTasksUnavailable, Message: "orchestrator not configured"}
	}
	counts, err := s.TaskCounter.TaskCount(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to get task counts", logging.ErrKey, err)
		return &models.TaskCounts{Error: errTasksUnavailable, Message: err.Error()}
	}
	return counts
}

// Snapshot collects the instance and task counts concurrently.
func (s *AutoscalingService) Snapshot(ctx context.Context) (models.InstanceCounts, *models.TaskCounts) {
	var (
		instances models.InstanceCounts
		tasks     *models.TaskCounts
	)
	// neither job fails; degraded values carry their own error
	_ = concurrent.NewWorkerPool(2).Run(ctx,
		func(ctx context.Context) error {
			instances = s.CountActive(ctx)
			return nil
		},
		func(ctx context.Context) error {
			tasks = s.TaskDetails(ctx)
			return nil
		},
	)
	return instances, tasks
}

// ScaleStatus is the input of the external scaling policy. Unlike Snapshot it fails
// when the task counts are unknown since no scaling decision can be taken without them.
func (s *AutoscalingService) ScaleStatus(ctx context.Context) (*models.ScaleStatus, error) {
	if s.TaskCounter == nil {
		return nil, domain.NewUnavailableError("orchestrator not configured")
	}

	instances := s.CountActive(ctx)
	tasks, err := s.TaskCounter.TaskCount(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get task counts", logging.ErrKey, err)
		return nil, domain.NewInternalError("failed to get scaling status", err)
	}

	return &models.ScaleStatus{
		Environment: s.Config.Environment,
		Meetings:    instances,
		Tasks:       tasks,
		Capacity:    s.capacity(instances.Active, int(tasks.Desired)),
	}, nil
}

func (s *AutoscalingService) capacity(active, desired int) models.Capacity {
	capacity := models.Capacity{
		MaxInstances: s.Config.MaxInstances,
		MinInstances: s.Config.MinInstances,
	}
	if desired > 0 {
		capacity.UtilizationPercent = int(math.Round(float64(active) / float64(desired) * 100))
	}
	capacity.AvailableSlots = max(desired*constants.MaxConcurrentMeetingsPerInstance-active, 0)
	return capacity
}
