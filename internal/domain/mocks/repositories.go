// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
)

// MockRecordingRepository implements domain.RecordingRepository for testing
type MockRecordingRepository struct {
	mock.Mock
}

func (m *MockRecordingRepository) GetRecording(ctx context.Context, meetingID string) (*models.MeetingStateRecord, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MeetingStateRecord), args.Error(1)
}

func (m *MockRecordingRepository) UpdateRecordingStatus(ctx context.Context, meetingID string, status models.RecordingStatus, at time.Time) (*models.MeetingStateRecord, error) {
	args := m.Called(ctx, meetingID, status, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MeetingStateRecord), args.Error(1)
}

func (m *MockRecordingRepository) ListRecordingsByStatus(ctx context.Context, status models.RecordingStatus) ([]*models.MeetingStateRecord, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MeetingStateRecord), args.Error(1)
}

func (m *MockRecordingRepository) ListAllRecordings(ctx context.Context) ([]*models.MeetingStateRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MeetingStateRecord), args.Error(1)
}

func (m *MockRecordingRepository) CountRecordings(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockScheduleRepository implements domain.ScheduleRepository for testing
type MockScheduleRepository struct {
	mock.Mock
}

func (m *MockScheduleRepository) AcquireScheduleLock(ctx context.Context, meetingID string, now time.Time) (bool, error) {
	args := m.Called(ctx, meetingID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockScheduleRepository) ReleaseScheduleLock(ctx context.Context, meetingID string) error {
	args := m.Called(ctx, meetingID)
	return args.Error(0)
}

func (m *MockScheduleRepository) MarkScheduled(ctx context.Context, meetingID string, schedule models.Schedule, now time.Time) error {
	args := m.Called(ctx, meetingID, schedule, now)
	return args.Error(0)
}

func (m *MockScheduleRepository) GetSchedule(ctx context.Context, meetingID string) (*models.ScheduleRecord, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScheduleRecord), args.Error(1)
}
