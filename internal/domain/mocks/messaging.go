// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
)

// MockCommandPublisher implements domain.CommandPublisher for testing.
// Publish options are resolved before being recorded so expectations can match on them.
type MockCommandPublisher struct {
	mock.Mock
}

func (m *MockCommandPublisher) PublishCommand(ctx context.Context, cmd models.MeetingCommand, opts ...domain.PublishOption) error {
	args := m.Called(ctx, cmd, domain.ApplyPublishOptions(opts...))
	return args.Error(0)
}

func (m *MockCommandPublisher) IsReady() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockStatusRequester implements domain.StatusRequester for testing
type MockStatusRequester struct {
	mock.Mock
}

func (m *MockStatusRequester) QueryStatus(ctx context.Context, meetingID string) (*models.RPCStatusResponse, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RPCStatusResponse), args.Error(1)
}

// MockScheduleBackend implements domain.ScheduleBackend for testing
type MockScheduleBackend struct {
	mock.Mock
}

func (m *MockScheduleBackend) CreateSchedule(ctx context.Context, schedule models.Schedule, input models.TriggerInput) error {
	args := m.Called(ctx, schedule, input)
	return args.Error(0)
}

func (m *MockScheduleBackend) DeleteSchedule(ctx context.Context, name, group string) error {
	args := m.Called(ctx, name, group)
	return args.Error(0)
}

// MockTaskCounter implements domain.TaskCounter for testing
type MockTaskCounter struct {
	mock.Mock
}

func (m *MockTaskCounter) TaskCount(ctx context.Context) (*models.TaskCounts, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TaskCounts), args.Error(1)
}
