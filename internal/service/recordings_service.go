// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
)

// RecordingsService lists every bot session the store knows about.
type RecordingsService struct {
	RecordingRepository domain.RecordingRepository
	now                 clock
}

// NewRecordingsService creates a new RecordingsService.
func NewRecordingsService(recordingRepository domain.RecordingRepository) *RecordingsService {
	return &RecordingsService{
		RecordingRepository: recordingRepository,
		now:                 systemClock,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *RecordingsService) ServiceReady() bool {
	return s.RecordingRepository != nil
}

// ListRecordings returns all records classified at the current time, most recently
// started first, with their summary.
func (s *RecordingsService) ListRecordings(ctx context.Context) (*models.RecordingsReport, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}

	records, err := s.RecordingRepository.ListAllRecordings(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "error listing recordings", logging.ErrKey, err)
		return nil, domain.NewInternalError("failed to fetch recordings", err)
	}

	now := s.now()
	report := &models.RecordingsReport{
		Recordings: make([]*models.RecordingListing, 0, len(records)),
	}
	summary := &report.Summary
	summary.TotalRecordings = len(records)

	for _, record := range records {
		status, active := ClassifyForListing(record, now)

		switch status {
		case models.ListingStatusCompleted, models.ListingStatusNotAdmitted:
			summary.CompletedCount++
		case models.ListingStatusInMeeting:
			summary.ActiveBreakdown.InMeeting++
		case models.ListingStatusPaused:
			summary.ActiveBreakdown.Paused++
		case models.ListingStatusWaitingToJoin:
			summary.ActiveBreakdown.WaitingToJoin++
		}
		if active {
			summary.ActiveCount++
		}

		report.Recordings = append(report.Recordings, &models.RecordingListing{
			MeetingID:              record.MeetingID,
			BotID:                  record.BotID,
			Status:                 status,
			OriginalStatus:         record.Status,
			StartedAt:              record.StartedAt,
			JoinedAt:               record.JoinedAt,
			EndedAt:                record.EndedAt,
			LastHeartbeat:          record.LastHeartbeat,
			TranscriptionGenerated: record.TranscriptionGenerated,
			IsActive:               active,
			HeartbeatAgeMinutes:    heartbeatAgeMinutes(record, now),
		})
	}
	summary.InMeetingCount = summary.ActiveBreakdown.InMeeting

	sort.SliceStable(report.Recordings, func(i, j int) bool {
		return startedAt(report.Recordings[i]).After(startedAt(report.Recordings[j]))
	})

	return report, nil
}

// startedAt orders records that never started last.
func startedAt(listing *models.RecordingListing) time.Time {
	if listing.StartedAt == nil {
		return time.Time{}
	}
	return *listing.StartedAt
}
