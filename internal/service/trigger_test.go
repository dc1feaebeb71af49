// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func triggerInput() models.TriggerInput {
	return models.TriggerInput{
		MeetingID:    "1234567890",
		MeetingURL:   "https://us04web.zoom.us/j/1234567890",
		ScheduleName: "meeting-staging-1234567890-1704103200000",
		GroupName:    "meet-bot-staging",
	}
}

func TestTriggerService_Fire(t *testing.T) {
	publisher := &mocks.MockCommandPublisher{}
	backend := &mocks.MockScheduleBackend{}
	svc := NewTriggerService(publisher, backend)
	input := triggerInput()

	publisher.On("PublishCommand", mock.Anything, models.MeetingCommand{
		Command:     models.CommandStart,
		MeetingID:   "1234567890",
		MeetingURL:  "https://zoom.us/wc/join/1234567890",
		Platform:    models.PlatformZoom,
		MeetingType: models.MeetingTypeRegular,
	}, domain.PublishOptions{IdempotencyKey: input.ScheduleName}).Return(nil).Once()
	backend.On("DeleteSchedule", mock.Anything, input.ScheduleName, input.GroupName).Return(nil).Once()

	result, err := svc.Fire(context.Background(), input)

	require.NoError(t, err)
	assert.True(t, result.ScheduleDeleted)
	assert.Equal(t, models.PlatformZoom, result.Platform)
	publisher.AssertExpectations(t)
	backend.AssertExpectations(t)
}

func TestTriggerService_Fire_DeleteFailureIsNotAnError(t *testing.T) {
	publisher := &mocks.MockCommandPublisher{}
	backend := &mocks.MockScheduleBackend{}
	svc := NewTriggerService(publisher, backend)

	publisher.On("PublishCommand", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	backend.On("DeleteSchedule", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("access denied")).Once()

	result, err := svc.Fire(context.Background(), triggerInput())

	require.NoError(t, err)
	assert.False(t, result.ScheduleDeleted)
	backend.AssertNumberOfCalls(t, "DeleteSchedule", 1)
}

func TestTriggerService_Fire_PublishFailureKeepsSchedule(t *testing.T) {
	publisher := &mocks.MockCommandPublisher{}
	backend := &mocks.MockScheduleBackend{}
	svc := NewTriggerService(publisher, backend)

	publisher.On("PublishCommand", mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrBusNotReady)

	_, err := svc.Fire(context.Background(), triggerInput())

	assert.ErrorIs(t, err, domain.ErrBusNotReady)
	backend.AssertNotCalled(t, "DeleteSchedule", mock.Anything, mock.Anything, mock.Anything)
}

func TestTriggerService_Fire_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.TriggerInput)
	}{
		{"missing meeting id", func(in *models.TriggerInput) { in.MeetingID = "" }},
		{"missing meeting url", func(in *models.TriggerInput) { in.MeetingURL = " " }},
		{"unsupported url", func(in *models.TriggerInput) { in.MeetingURL = "https://example.com/x" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := &mocks.MockCommandPublisher{}
			svc := NewTriggerService(publisher, &mocks.MockScheduleBackend{})
			input := triggerInput()
			tt.mutate(&input)

			_, err := svc.Fire(context.Background(), input)

			assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
			publisher.AssertNotCalled(t, "PublishCommand", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestBestEffort_Do(t *testing.T) {
	calls := 0
	op := BestEffort{Name: "flaky", Run: func(context.Context) error {
		calls++
		return errors.New("boom")
	}}

	assert.False(t, op.Do(context.Background()))
	assert.Equal(t, 1, calls, "a failed best-effort operation is not retried")

	assert.True(t, BestEffort{Name: "ok", Run: func(context.Context) error { return nil }}.Do(context.Background()))
}
