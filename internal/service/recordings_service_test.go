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
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func started(r *models.MeetingStateRecord, id string, at time.Time) *models.MeetingStateRecord {
	r.MeetingID = id
	r.StartedAt = utils.TimePtr(at)
	return r
}

func TestRecordingsService_ListRecordings(t *testing.T) {
	repo := &mocks.MockRecordingRepository{}
	svc := NewRecordingsService(repo)
	svc.now = func() time.Time { return testNow }

	neverStarted := record(models.RecordingStatusWaitingToJoin, time.Hour)
	neverStarted.MeetingID = "never"

	repo.On("ListAllRecordings", mock.Anything).Return([]*models.MeetingStateRecord{
		started(record(models.RecordingStatusCompleted, noHeartbeat), "done", testNow.Add(-48*time.Hour)),
		neverStarted,
		started(record(models.RecordingStatusRecording, time.Minute), "live", testNow.Add(-time.Hour)),
		started(record(models.RecordingStatusPaused, 2*time.Minute), "paused", testNow.Add(-2*time.Hour)),
		started(record(models.RecordingStatusRecording, 30*time.Minute), "stale", testNow.Add(-3*time.Hour)),
		started(record(models.RecordingStatusNotAdmitted, noHeartbeat), "refused", testNow.Add(-30*time.Minute)),
	}, nil)

	report, err := svc.ListRecordings(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(report.Recordings))
	for _, r := range report.Recordings {
		ids = append(ids, r.MeetingID)
	}
	assert.Equal(t, []string{"refused", "live", "paused", "stale", "done", "never"}, ids)

	assert.Equal(t, models.RecordingsSummary{
		TotalRecordings: 6,
		ActiveCount:     2,
		CompletedCount:  2,
		InMeetingCount:  1,
		ActiveBreakdown: models.ActiveBreakdown{InMeeting: 1, Paused: 1},
	}, report.Summary)

	stale := report.Recordings[3]
	assert.Equal(t, models.ListingStatusStaleRecording, stale.Status)
	assert.Equal(t, models.RecordingStatusRecording, stale.OriginalStatus)
	assert.False(t, stale.IsActive)
	require.NotNil(t, stale.HeartbeatAgeMinutes)
	assert.Equal(t, 30, *stale.HeartbeatAgeMinutes)

	assert.Nil(t, report.Recordings[0].HeartbeatAgeMinutes)
	assert.Equal(t, models.ListingStatusStaleWaiting, report.Recordings[5].Status)
}

func TestRecordingsService_ListRecordings_Errors(t *testing.T) {
	repo := &mocks.MockRecordingRepository{}
	repo.On("ListAllRecordings", mock.Anything).Return(nil, errors.New("nats: timeout"))

	_, err := NewRecordingsService(repo).ListRecordings(context.Background())
	assert.Equal(t, domain.ErrorTypeInternal, domain.GetErrorType(err))

	_, err = NewRecordingsService(nil).ListRecordings(context.Background())
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}
