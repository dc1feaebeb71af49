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

func newTestCommandService() (*CommandService, *mocks.MockCommandPublisher, *mocks.MockRecordingRepository) {
	publisher := &mocks.MockCommandPublisher{}
	repo := &mocks.MockRecordingRepository{}
	svc := NewCommandService(publisher, repo, ServiceConfig{Environment: "test"})
	svc.now = func() time.Time { return testNow }
	return svc, publisher, repo
}

func TestCommandService_ServiceReady(t *testing.T) {
	assert.True(t, NewCommandService(&mocks.MockCommandPublisher{}, &mocks.MockRecordingRepository{}, ServiceConfig{}).ServiceReady())
	assert.False(t, NewCommandService(nil, &mocks.MockRecordingRepository{}, ServiceConfig{}).ServiceReady())
	assert.False(t, NewCommandService(&mocks.MockCommandPublisher{}, nil, ServiceConfig{}).ServiceReady())

	_, err := NewCommandService(nil, nil, ServiceConfig{}).StopMeeting(context.Background(), "m-1")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestCommandService_StartMeeting(t *testing.T) {
	tests := []struct {
		name        string
		req         StartMeetingRequest
		wantCommand models.MeetingCommand
		wantOptions domain.PublishOptions
	}{
		{
			name: "google meet with explicit id",
			req: StartMeetingRequest{
				MeetingURL:    " https://meet.google.com/abc-defg-hij ",
				MeetingID:     "m-42",
				CompanionName: "Notes",
			},
			wantCommand: models.MeetingCommand{
				Command:       models.CommandStart,
				MeetingID:     "m-42",
				MeetingURL:    "https://meet.google.com/abc-defg-hij",
				Platform:      models.PlatformGoogleMeet,
				CompanionName: "Notes",
				MeetingType:   models.MeetingTypeRegular,
			},
		},
		{
			name: "regional zoom link with extracted id",
			req: StartMeetingRequest{
				MeetingURL:     "https://us04web.zoom.us/j/1234567890",
				MeetingType:    "brain_dump",
				IdempotencyKey: "req-7",
			},
			wantCommand: models.MeetingCommand{
				Command:     models.CommandStart,
				MeetingID:   "1234567890",
				MeetingURL:  "https://zoom.us/wc/join/1234567890",
				Platform:    models.PlatformZoom,
				MeetingType: models.MeetingTypeBrainDump,
			},
			wantOptions: domain.PublishOptions{IdempotencyKey: "req-7"},
		},
		{
			name: "zoom passcode trimmed",
			req: StartMeetingRequest{
				MeetingURL: "https://zoom.us/j/123456789?pwd=abcXYZ.9extra",
				MeetingID:  "z-1",
				Passcode:   "secret",
			},
			wantCommand: models.MeetingCommand{
				Command:     models.CommandStart,
				MeetingID:   "z-1",
				MeetingURL:  "https://zoom.us/j/123456789?pwd=abcXYZ.9",
				Platform:    models.PlatformZoom,
				Passcode:    "secret",
				MeetingType: models.MeetingTypeRegular,
			},
		},
		{
			name: "google meet without id gets a manual id",
			req:  StartMeetingRequest{MeetingURL: "https://meet.google.com/xyz"},
			wantCommand: models.MeetingCommand{
				Command:     models.CommandStart,
				MeetingID:   "manual-1704103200000",
				MeetingURL:  "https://meet.google.com/xyz",
				Platform:    models.PlatformGoogleMeet,
				MeetingType: models.MeetingTypeRegular,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, publisher, _ := newTestCommandService()
			publisher.On("PublishCommand", mock.Anything, tt.wantCommand, tt.wantOptions).Return(nil)

			result, err := svc.StartMeeting(context.Background(), tt.req)

			require.NoError(t, err)
			assert.Equal(t, CommandStatusQueued, result.Status)
			assert.Equal(t, tt.wantCommand.MeetingID, result.MeetingID)
			assert.Equal(t, tt.wantCommand.Platform, result.Platform)
			publisher.AssertExpectations(t)
		})
	}
}

func TestCommandService_StartMeeting_Errors(t *testing.T) {
	t.Run("missing url", func(t *testing.T) {
		svc, publisher, _ := newTestCommandService()

		_, err := svc.StartMeeting(context.Background(), StartMeetingRequest{MeetingURL: "  "})

		assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
		publisher.AssertNotCalled(t, "PublishCommand", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unsupported platform", func(t *testing.T) {
		svc, publisher, _ := newTestCommandService()

		_, err := svc.StartMeeting(context.Background(), StartMeetingRequest{MeetingURL: "https://example.com/room/1"})

		assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
		assert.ErrorIs(t, err, domain.ErrUnsupportedPlatform)
		publisher.AssertNotCalled(t, "PublishCommand", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("bus not ready", func(t *testing.T) {
		svc, publisher, _ := newTestCommandService()
		publisher.On("PublishCommand", mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrBusNotReady)

		_, err := svc.StartMeeting(context.Background(), StartMeetingRequest{MeetingURL: "https://meet.google.com/abc", MeetingID: "m-1"})

		assert.ErrorIs(t, err, domain.ErrBusNotReady)
		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	})
}

func TestCommandService_PauseMeeting(t *testing.T) {
	t.Run("publishes then persists", func(t *testing.T) {
		svc, publisher, repo := newTestCommandService()
		repo.On("GetRecording", mock.Anything, "m-1").Return(record(models.RecordingStatusRecording, time.Minute), nil)
		publisher.On("PublishCommand", mock.Anything,
			models.MeetingCommand{Command: models.CommandPause, MeetingID: "m-1"}, domain.PublishOptions{}).Return(nil).Once()
		repo.On("UpdateRecordingStatus", mock.Anything, "m-1", models.RecordingStatusPaused, testNow).
			Return(record(models.RecordingStatusPaused, time.Minute), nil).Once()

		result, err := svc.PauseMeeting(context.Background(), "m-1")

		require.NoError(t, err)
		assert.Equal(t, CommandStatusPaused, result.Status)
		assert.True(t, result.StoreUpdated)
		assert.Equal(t, models.RecordingStatusRecording, result.PreviousStatus)
		publisher.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("store write failure is reported, not returned", func(t *testing.T) {
		svc, publisher, repo := newTestCommandService()
		repo.On("GetRecording", mock.Anything, "m-1").Return(record(models.RecordingStatusRecording, time.Minute), nil)
		publisher.On("PublishCommand", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		repo.On("UpdateRecordingStatus", mock.Anything, "m-1", models.RecordingStatusPaused, testNow).
			Return(nil, domain.NewConflictError("record changed", domain.ErrTerminalRecord))

		result, err := svc.PauseMeeting(context.Background(), "m-1")

		require.NoError(t, err)
		assert.False(t, result.StoreUpdated)
	})

	t.Run("already paused", func(t *testing.T) {
		svc, publisher, repo := newTestCommandService()
		repo.On("GetRecording", mock.Anything, "m-1").Return(record(models.RecordingStatusPaused, time.Minute), nil)

		_, err := svc.PauseMeeting(context.Background(), "m-1")

		var guardErr *GuardError
		require.ErrorAs(t, err, &guardErr)
		assert.Equal(t, "pause", guardErr.Action)
		assert.Equal(t, ReasonAlreadyPaused, guardErr.Reason)
		assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
		publisher.AssertNotCalled(t, "PublishCommand", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("bot still joining", func(t *testing.T) {
		svc, publisher, repo := newTestCommandService()
		repo.On("GetRecording", mock.Anything, "m-1").Return(record(models.RecordingStatusWaitingToJoin, time.Minute), nil)

		_, err := svc.PauseMeeting(context.Background(), "m-1")

		var guardErr *GuardError
		require.ErrorAs(t, err, &guardErr)
		assert.Equal(t, "Meeting status is 'waiting_to_join'", guardErr.Reason)
		publisher.AssertNotCalled(t, "PublishCommand", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "UpdateRecordingStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stale heartbeat", func(t *testing.T) {
		svc, _, repo := newTestCommandService()
		repo.On("GetRecording", mock.Anything, "m-1").Return(record(models.RecordingStatusRecording, 6*time.Minute), nil)

		_, err := svc.PauseMeeting(context.Background(), "m-1")

		var guardErr *GuardError
		require.ErrorAs(t, err, &guardErr)
		assert.Equal(t, "Heartbeat is stale (6 minutes old)", guardErr.Reason)
	})

	t.Run("unknown meeting", func(t *testing.T) {
		svc, _, repo := newTestCommandService()
		repo.On("GetRecording", mock.Anything, "m-1").Return(nil, domain.NewNotFoundError("no record", domain.ErrRecordNotFound))

		_, err := svc.PauseMeeting(context.Background(), "m-1")

		var guardErr *GuardError
		require.ErrorAs(t, err, &guardErr)
		assert.Equal(t, ReasonNotFound, guardErr.Reason)
	})

	t.Run("store unavailable", func(t *testing.T) {
		svc, _, repo := newTestCommandService()
		repo.On("GetRecording", mock.Anything, "m-1").Return(nil, errors.New("nats: timeout"))

		_, err := svc.PauseMeeting(context.Background(), "m-1")

		assert.Equal(t, domain.ErrorTypeInternal, domain.GetErrorType(err))
	})

	t.Run("publish failure skips the store write", func(t *testing.T) {
		svc, publisher, repo := newTestCommandService()
		repo.On("GetRecording", mock.Anything, "m-1").Return(record(models.RecordingStatusRecording, time.Minute), nil)
		publisher.On("PublishCommand", mock.Anything, mock.Anything, mock.Anything).Return(domain.NewInternalError("publish failed"))

		_, err := svc.PauseMeeting(context.Background(), "m-1")

		assert.Equal(t, domain.ErrorTypeInternal, domain.GetErrorType(err))
		repo.AssertNotCalled(t, "UpdateRecordingStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing meeting id", func(t *testing.T) {
		svc, _, _ := newTestCommandService()

		_, err := svc.PauseMeeting(context.Background(), "")

		assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
	})
}

func TestCommandService_ResumeMeeting(t *testing.T) {
	t.Run("resumes a paused meeting", func(t *testing.T) {
		svc, publisher, repo := newTestCommandService()
		repo.On("GetRecording", mock.Anything, "m-1").Return(record(models.RecordingStatusPaused, time.Minute), nil)
		publisher.On("PublishCommand", mock.Anything,
			models.MeetingCommand{Command: models.CommandResume, MeetingID: "m-1"}, domain.PublishOptions{}).Return(nil)
		repo.On("UpdateRecordingStatus", mock.Anything, "m-1", models.RecordingStatusRecording, testNow).
			Return(record(models.RecordingStatusRecording, time.Minute), nil)

		result, err := svc.ResumeMeeting(context.Background(), "m-1")

		require.NoError(t, err)
		assert.Equal(t, CommandStatusResumed, result.Status)
		assert.Equal(t, models.RecordingStatusPaused, result.PreviousStatus)
		assert.True(t, result.StoreUpdated)
	})

	t.Run("refuses a recording meeting", func(t *testing.T) {
		svc, _, repo := newTestCommandService()
		repo.On("GetRecording", mock.Anything, "m-1").Return(record(models.RecordingStatusRecording, time.Minute), nil)

		_, err := svc.ResumeMeeting(context.Background(), "m-1")

		var guardErr *GuardError
		require.ErrorAs(t, err, &guardErr)
		assert.Equal(t, "Meeting is not paused (current status: recording)", guardErr.Reason)
		assert.Equal(t, "cannot resume meeting: Meeting is not paused (current status: recording)", guardErr.Error())
	})
}

func TestCommandService_StopMeeting(t *testing.T) {
	stop := models.MeetingCommand{Command: models.CommandStop, MeetingID: "m-1"}

	tests := []struct {
		name        string
		record      *models.MeetingStateRecord
		readErr     error
		wantPublish bool
		wantType    *domain.ErrorType
	}{
		{name: "recording meeting", record: record(models.RecordingStatusRecording, time.Minute), wantPublish: true},
		{name: "unknown meeting", readErr: domain.NewNotFoundError("no record", domain.ErrRecordNotFound), wantPublish: true},
		{name: "store unreadable", readErr: errors.New("nats: timeout"), wantPublish: true},
		{name: "completed meeting", record: record(models.RecordingStatusCompleted, noHeartbeat), wantType: ptr(domain.ErrorTypeConflict)},
		{name: "not admitted meeting", record: record(models.RecordingStatusNotAdmitted, noHeartbeat), wantType: ptr(domain.ErrorTypeConflict)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, publisher, repo := newTestCommandService()
			if tt.record != nil {
				repo.On("GetRecording", mock.Anything, "m-1").Return(tt.record, nil)
			} else {
				repo.On("GetRecording", mock.Anything, "m-1").Return(nil, tt.readErr)
			}
			publisher.On("PublishCommand", mock.Anything, stop, domain.PublishOptions{}).Return(nil)

			result, err := svc.StopMeeting(context.Background(), "m-1")

			if tt.wantType != nil {
				assert.Equal(t, *tt.wantType, domain.GetErrorType(err))
				assert.ErrorIs(t, err, domain.ErrTerminalRecord)
				publisher.AssertNotCalled(t, "PublishCommand", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, CommandStatusStopped, result.Status)
			publisher.AssertCalled(t, "PublishCommand", mock.Anything, stop, domain.PublishOptions{})
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}
