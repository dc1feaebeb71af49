// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestAutoscalingService(counter domain.TaskCounter) (*AutoscalingService, *mocks.MockRecordingRepository) {
	repo := &mocks.MockRecordingRepository{}
	svc := NewAutoscalingService(repo, counter, ServiceConfig{Environment: "staging", MaxInstances: 10})
	svc.now = func() time.Time { return testNow }
	return svc, repo
}

func expectActiveIndex(repo *mocks.MockRecordingRepository) {
	repo.On("ListRecordingsByStatus", mock.Anything, models.RecordingStatusRecording).Return([]*models.MeetingStateRecord{
		record(models.RecordingStatusRecording, time.Minute),
		record(models.RecordingStatusRecording, 4*time.Minute),
		record(models.RecordingStatusRecording, 20*time.Minute),
	}, nil)
	repo.On("ListRecordingsByStatus", mock.Anything, models.RecordingStatusPaused).Return([]*models.MeetingStateRecord{
		record(models.RecordingStatusPaused, 2*time.Minute),
		record(models.RecordingStatusPaused, noHeartbeat),
	}, nil)
	repo.On("ListRecordingsByStatus", mock.Anything, models.RecordingStatusWaitingToJoin).Return([]*models.MeetingStateRecord{}, nil)
}

func TestAutoscalingService_CountActive(t *testing.T) {
	svc, repo := newTestAutoscalingService(nil)
	expectActiveIndex(repo)
	repo.On("CountRecordings", mock.Anything).Return(42, nil)

	counts := svc.CountActive(context.Background())

	assert.Equal(t, models.InstanceCounts{Active: 3, Total: 42}, counts)
}

func TestAutoscalingService_CountActive_DegradesOnIndexFailure(t *testing.T) {
	svc, repo := newTestAutoscalingService(nil)
	repo.On("ListRecordingsByStatus", mock.Anything, mock.Anything).Return(nil, errors.New("index unavailable"))
	repo.On("CountRecordings", mock.Anything).Return(42, nil)

	counts := svc.CountActive(context.Background())

	assert.Equal(t, 0, counts.Active)
	assert.Equal(t, 0, counts.Total)
	assert.Equal(t, "status index unavailable", counts.Error)
	assert.NotEmpty(t, counts.Message)
}

func TestAutoscalingService_TaskDetails(t *testing.T) {
	t.Run("no orchestrator", func(t *testing.T) {
		svc, _ := newTestAutoscalingService(nil)

		tasks := svc.TaskDetails(context.Background())

		assert.Equal(t, "Unable to fetch ECS details", tasks.Error)
	})

	t.Run("orchestrator failure", func(t *testing.T) {
		counter := &mocks.MockTaskCounter{}
		counter.On("TaskCount", mock.Anything).Return(nil, errors.New("throttled"))
		svc, _ := newTestAutoscalingService(counter)

		tasks := svc.TaskDetails(context.Background())

		assert.Equal(t, "Unable to fetch ECS details", tasks.Error)
		assert.Equal(t, "throttled", tasks.Message)
	})
}

func TestAutoscalingService_Snapshot(t *testing.T) {
	counter := &mocks.MockTaskCounter{}
	counter.On("TaskCount", mock.Anything).Return(&models.TaskCounts{Desired: 2, Running: 2}, nil)
	svc, repo := newTestAutoscalingService(counter)
	expectActiveIndex(repo)
	repo.On("CountRecordings", mock.Anything).Return(5, nil)

	instances, tasks := svc.Snapshot(context.Background())

	assert.Equal(t, 3, instances.Active)
	assert.Equal(t, int32(2), tasks.Running)
}

func TestAutoscalingService_ScaleStatus(t *testing.T) {
	counter := &mocks.MockTaskCounter{}
	counter.On("TaskCount", mock.Anything).Return(&models.TaskCounts{Desired: 4, Running: 4, ServiceName: "meet-bot-staging"}, nil)
	svc, repo := newTestAutoscalingService(counter)
	expectActiveIndex(repo)
	repo.On("CountRecordings", mock.Anything).Return(9, nil)

	status, err := svc.ScaleStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "staging", status.Environment)
	assert.Equal(t, 3, status.Meetings.Active)
	assert.Equal(t, models.Capacity{
		MaxInstances:       10,
		MinInstances:       0,
		UtilizationPercent: 75,
		AvailableSlots:     1,
	}, status.Capacity)
}

func TestAutoscalingService_ScaleStatus_Errors(t *testing.T) {
	svc, _ := newTestAutoscalingService(nil)
	_, err := svc.ScaleStatus(context.Background())
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))

	counter := &mocks.MockTaskCounter{}
	counter.On("TaskCount", mock.Anything).Return(nil, errors.New("throttled"))
	svc, repo := newTestAutoscalingService(counter)
	expectActiveIndex(repo)
	repo.On("CountRecordings", mock.Anything).Return(1, nil)

	_, err = svc.ScaleStatus(context.Background())
	assert.Equal(t, domain.ErrorTypeInternal, domain.GetErrorType(err))
}

func TestAutoscalingService_Capacity(t *testing.T) {
	svc, _ := newTestAutoscalingService(nil)

	assert.Equal(t, 0, svc.capacity(3, 0).UtilizationPercent)
	assert.Equal(t, 0, svc.capacity(3, 0).AvailableSlots)
	assert.Equal(t, 150, svc.capacity(3, 2).UtilizationPercent)
	assert.Equal(t, 0, svc.capacity(3, 2).AvailableSlots)
	assert.Equal(t, 33, svc.capacity(1, 3).UtilizationPercent)
}
