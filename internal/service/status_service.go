// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
)

// StatusService answers bot status lookups.
type StatusService struct {
	RecordingRepository domain.RecordingRepository
	// StatusRequester is optional; without it debug lookups use the store.
	StatusRequester domain.StatusRequester
	Config          ServiceConfig
	now             clock
}

// NewStatusService creates a new StatusService.
func NewStatusService(
	recordingRepository domain.RecordingRepository,
	statusRequester domain.StatusRequester,
	config ServiceConfig,
) *StatusService {
	return &StatusService{
		RecordingRepository: recordingRepository,
		StatusRequester:     statusRequester,
		Config:              config,
		now:                 systemClock,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *StatusService) ServiceReady() bool {
	return s.RecordingRepository != nil
}

// GetStatus looks up the status of a meeting's bot. By default it is derived from
// the persisted record. In debug mode the bot is asked directly and any failure of
// that exchange falls back to the derived status.
func (s *StatusService) GetStatus(ctx context.Context, meetingID string, debug bool) models.StatusResult {
	ctx = logging.WithMeeting(ctx, meetingID, "bot_status")

	if debug && s.StatusRequester != nil {
		response, err := s.StatusRequester.QueryStatus(ctx, meetingID)
		if err == nil {
			return models.RPCResult{Response: response}
		}
		slog.WarnContext(ctx, "live status request failed, using stored state", logging.ErrKey, err)
	}

	return s.DeriveFromStore(ctx, meetingID)
}

// DeriveFromStore computes the status from the persisted record.
func (s *StatusService) DeriveFromStore(ctx context.Context, meetingID string) models.StatusResult {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return models.UnavailableResult{Err: domain.ErrServiceUnavailable}
	}

	record, err := s.RecordingRepository.GetRecording(ctx, meetingID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return models.NotFoundResult{MeetingID: meetingID}
	}
	if err != nil {
		slog.ErrorContext(ctx, "error reading meeting state", logging.ErrKey, err)
		return models.UnavailableResult{Err: err}
	}

	return models.DerivedResult{
		Record:  record,
		Derived: DeriveStatus(record, s.now()),
	}
}
