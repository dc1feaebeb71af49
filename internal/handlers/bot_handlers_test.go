// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/utils"
)

func setupBotHandlerForTesting() (*BotHandler, *mocks.MockRecordingRepository) {
	repo := &mocks.MockRecordingRepository{}
	config := service.ServiceConfig{Environment: "staging", MaxInstances: 10}
	handler := NewBotHandler(
		service.NewStatusService(repo, nil, config),
		service.NewAutoscalingService(repo, nil, config),
	)
	return handler, repo
}

func liveRecord(status models.RecordingStatus) *models.MeetingStateRecord {
	now := time.Now().UTC()
	return &models.MeetingStateRecord{
		MeetingID:     "m-1",
		BotID:         "bot-1",
		Status:        status,
		JoinedAt:      utils.TimePtr(now.Add(-time.Hour)),
		LastHeartbeat: utils.TimePtr(now.Add(-time.Minute)),
	}
}

// respondedWith captures the reply sent on msg.
func respondedWith(msg *mocks.MockMessage) *[]byte {
	var reply []byte
	msg.On("HasReply").Return(true)
	msg.On("Respond", mock.Anything).Run(func(args mock.Arguments) {
		if data, ok := args.Get(0).([]byte); ok {
			reply = data
		}
	}).Return(nil)
	return &reply
}

func TestBotHandler_HandleMessage_BotStatus(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		setupMocks func(*mocks.MockRecordingRepository)
		wantStatus models.BotStatus
		wantEmpty  bool
	}{
		{
			name: "recording bot",
			data: "m-1",
			setupMocks: func(repo *mocks.MockRecordingRepository) {
				repo.On("GetRecording", mock.Anything, "m-1").Return(liveRecord(models.RecordingStatusRecording), nil)
			},
			wantStatus: models.BotStatusInMeeting,
		},
		{
			name: "unknown meeting",
			data: " m-2 ",
			setupMocks: func(repo *mocks.MockRecordingRepository) {
				repo.On("GetRecording", mock.Anything, "m-2").Return(nil, domain.NewNotFoundError("no record", domain.ErrRecordNotFound))
			},
			wantStatus: models.BotStatusNotFound,
		},
		{
			name: "store failure replies empty",
			data: "m-1",
			setupMocks: func(repo *mocks.MockRecordingRepository) {
				repo.On("GetRecording", mock.Anything, "m-1").Return(nil, errors.New("nats: timeout"))
			},
			wantEmpty: true,
		},
		{
			name:       "missing meeting id replies empty",
			data:       "  ",
			setupMocks: func(*mocks.MockRecordingRepository) {},
			wantEmpty:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, repo := setupBotHandlerForTesting()
			tt.setupMocks(repo)
			msg := mocks.NewMockMessage([]byte(tt.data), constants.BotStatusSubject)
			reply := respondedWith(msg)

			handler.HandleMessage(context.Background(), msg)

			msg.AssertCalled(t, "Respond", mock.Anything)
			if tt.wantEmpty {
				assert.Empty(t, *reply)
				return
			}
			var body map[string]any
			require.NoError(t, json.Unmarshal(*reply, &body))
			assert.Equal(t, string(tt.wantStatus), body["status"])
		})
	}
}

func TestBotHandler_HandleBotStatus_View(t *testing.T) {
	handler, repo := setupBotHandlerForTesting()
	repo.On("GetRecording", mock.Anything, "m-1").Return(liveRecord(models.RecordingStatusPaused), nil)

	data, err := handler.HandleBotStatus(context.Background(), mocks.NewMockMessage([]byte("m-1"), constants.BotStatusSubject))
	require.NoError(t, err)

	var view models.BotStatusView
	require.NoError(t, json.Unmarshal(data, &view))
	assert.Equal(t, models.BotStatusPaused, view.Status)
	assert.Equal(t, "bot-1", view.BotID)
	assert.True(t, view.Core.IsBotPaused)
	assert.Equal(t, "m-1", view.Meeting.MeetingID)
}

func TestBotHandler_HandleMessage_ActiveInstances(t *testing.T) {
	handler, repo := setupBotHandlerForTesting()
	repo.On("ListRecordingsByStatus", mock.Anything, models.RecordingStatusRecording).
		Return([]*models.MeetingStateRecord{liveRecord(models.RecordingStatusRecording)}, nil)
	repo.On("ListRecordingsByStatus", mock.Anything, mock.Anything).Return([]*models.MeetingStateRecord{}, nil)
	repo.On("CountRecordings", mock.Anything).Return(7, nil)

	msg := mocks.NewMockMessage(nil, constants.ActiveInstancesSubject)
	reply := respondedWith(msg)

	handler.HandleMessage(context.Background(), msg)

	var counts models.InstanceCounts
	require.NoError(t, json.Unmarshal(*reply, &counts))
	assert.Equal(t, models.InstanceCounts{Active: 1, Total: 7}, counts)
}

func TestBotHandler_HandleMessage_UnknownSubject(t *testing.T) {
	handler, _ := setupBotHandlerForTesting()
	msg := mocks.NewMockMessage(nil, "lfx.meet-bot.unknown")
	reply := respondedWith(msg)

	handler.HandleMessage(context.Background(), msg)

	msg.AssertCalled(t, "Respond", mock.Anything)
	assert.Empty(t, *reply)
}

func TestBotHandler_HandleMessage_NoReply(t *testing.T) {
	handler, repo := setupBotHandlerForTesting()
	repo.On("GetRecording", mock.Anything, "m-1").Return(liveRecord(models.RecordingStatusRecording), nil)
	msg := mocks.NewMockMessage([]byte("m-1"), constants.BotStatusSubject)
	msg.On("HasReply").Return(false)

	handler.HandleMessage(context.Background(), msg)

	msg.AssertNotCalled(t, "Respond", mock.Anything)
}

func TestBotHandler_HandlerReady(t *testing.T) {
	handler, _ := setupBotHandlerForTesting()
	assert.True(t, handler.HandlerReady())
	assert.False(t, NewBotHandler(nil, nil).HandlerReady())
	assert.ElementsMatch(t, []string{constants.BotStatusSubject, constants.ActiveInstancesSubject}, handler.Subjects())
}
