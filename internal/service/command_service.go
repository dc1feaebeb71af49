// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/utils"
)

// Command result statuses
const (
	CommandStatusQueued  = "queued"
	CommandStatusPaused  = "paused"
	CommandStatusResumed = "resumed"
	CommandStatusStopped = "stopped"
)

// GuardError is a refused pause or resume. Its Reason is shown to the caller as is.
type GuardError struct {
	Action string
	Reason string
}

func (e *GuardError) Error() string {
	return "cannot " + e.Action + " meeting: " + e.Reason
}

// StartMeetingRequest asks for a bot to join a meeting now.
type StartMeetingRequest struct {
	MeetingURL    string
	MeetingID     string
	Passcode      string
	CompanionName string
	MeetingType   string
	// IdempotencyKey de-duplicates retried requests within the broker's duplicate window.
	IdempotencyKey string
}

// CommandResult describes a published command.
type CommandResult struct {
	Status     string
	MeetingID  string
	Platform   models.Platform
	MeetingURL string
	// StoreUpdated reports whether the administrative status change was persisted.
	StoreUpdated   bool
	PreviousStatus models.RecordingStatus
}

// CommandService dispatches bot commands on behalf of the HTTP API.
type CommandService struct {
	Publisher           domain.CommandPublisher
	RecordingRepository domain.RecordingRepository
	Config              ServiceConfig
	now                 clock
}

// NewCommandService creates a new CommandService.
func NewCommandService(
	publisher domain.CommandPublisher,
	recordingRepository domain.RecordingRepository,
	config ServiceConfig,
) *CommandService {
	return &CommandService{
		Publisher:           publisher,
		RecordingRepository: recordingRepository,
		Config:              config,
		now:                 systemClock,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *CommandService) ServiceReady() bool {
	return s.Publisher != nil && s.RecordingRepository != nil
}

// StartMeeting normalizes the meeting URL and queues a start command for any idle bot.
func (s *CommandService) StartMeeting(ctx context.Context, req StartMeetingRequest) (*CommandResult, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}

	if strings.TrimSpace(req.MeetingURL) == "" {
		return nil, domain.NewValidationError("missing or invalid meetUrl")
	}

	normalized := utils.NormalizeMeetingURL(req.MeetingURL, req.Passcode)
	if normalized.Platform == models.PlatformUnknown {
		slog.WarnContext(ctx, "unsupported meeting url", "meeting_url", req.MeetingURL)
		return nil, domain.NewValidationError("unsupported meeting platform", domain.ErrUnsupportedPlatform)
	}

	meetingID := strings.TrimSpace(req.MeetingID)
	if meetingID == "" {
		meetingID = utils.ExtractMeetingID(normalized.Platform, req.MeetingURL, normalized.URL, s.now())
	}
	ctx = logging.WithMeeting(ctx, meetingID, "start_meeting")

	cmd := models.MeetingCommand{
		Command:       models.CommandStart,
		MeetingID:     meetingID,
		MeetingURL:    normalized.URL,
		Platform:      normalized.Platform,
		Passcode:      req.Passcode,
		CompanionName: req.CompanionName,
		MeetingType:   utils.NormalizeMeetingType(req.MeetingType),
	}

	var opts []domain.PublishOption
	if req.IdempotencyKey != "" {
		opts = append(opts, domain.WithIdempotencyKey(req.IdempotencyKey))
	}
	if err := s.Publisher.PublishCommand(ctx, cmd, opts...); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "start command queued", "platform", normalized.Platform)

	return &CommandResult{
		Status:     CommandStatusQueued,
		MeetingID:  meetingID,
		Platform:   normalized.Platform,
		MeetingURL: normalized.URL,
	}, nil
}

// PauseMeeting pauses the recording of a meeting whose bot is alive and recording.
func (s *CommandService) PauseMeeting(ctx context.Context, meetingID string) (*CommandResult, error) {
	return s.toggleRecording(ctx, meetingID, models.CommandPause)
}

// ResumeMeeting resumes a paused recording.
func (s *CommandService) ResumeMeeting(ctx context.Context, meetingID string) (*CommandResult, error) {
	return s.toggleRecording(ctx, meetingID, models.CommandResume)
}

// toggleRecording publishes pause or resume and then persists the matching status.
// The command reaches the bot even when the store write fails; the result reports it.
func (s *CommandService) toggleRecording(ctx context.Context, meetingID string, command models.CommandType) (*CommandResult, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}
	if meetingID == "" {
		return nil, domain.NewValidationError("missing meeting_id")
	}
	ctx = logging.WithMeeting(ctx, meetingID, string(command)+"_meeting")

	check, next, status := CheckCanPause, models.RecordingStatusPaused, CommandStatusPaused
	if command == models.CommandResume {
		check, next, status = CheckCanResume, models.RecordingStatusRecording, CommandStatusResumed
	}

	record, err := s.RecordingRepository.GetRecording(ctx, meetingID)
	if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		slog.ErrorContext(ctx, "error reading meeting state", logging.ErrKey, err)
		return nil, domain.NewInternalError("failed to read meeting state", err)
	}

	guard := check(record, s.now())
	if !guard.Allowed {
		slog.InfoContext(ctx, "command refused", "reason", guard.Reason)
		return nil, domain.NewValidationError("guard failed", &GuardError{Action: string(command), Reason: guard.Reason})
	}

	if err := s.Publisher.PublishCommand(ctx, models.MeetingCommand{Command: command, MeetingID: meetingID}); err != nil {
		return nil, err
	}

	updated := true
	if _, err := s.RecordingRepository.UpdateRecordingStatus(ctx, meetingID, next, s.now()); err != nil {
		slog.WarnContext(ctx, "command sent but status not persisted", logging.ErrKey, err)
		updated = false
	}

	slog.InfoContext(ctx, "command sent", "previous_status", guard.CurrentStatus, "store_updated", updated)

	return &CommandResult{
		Status:         status,
		MeetingID:      meetingID,
		StoreUpdated:   updated,
		PreviousStatus: guard.CurrentStatus,
	}, nil
}

// StopMeeting asks the bot of a meeting to leave. Finished meetings are refused; a
// meeting the store does not know yet is still stopped since its bot may be starting.
func (s *CommandService) StopMeeting(ctx context.Context, meetingID string) (*CommandResult, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}
	if meetingID == "" {
		return nil, domain.NewValidationError("missing meeting_id")
	}
	ctx = logging.WithMeeting(ctx, meetingID, "stop_meeting")

	record, err := s.RecordingRepository.GetRecording(ctx, meetingID)
	switch {
	case err == nil && record.Status.IsTerminal():
		return nil, domain.NewConflictError("meeting already finished", domain.ErrTerminalRecord)
	case err != nil && !errors.Is(err, domain.ErrRecordNotFound):
		slog.WarnContext(ctx, "meeting state unreadable, stopping anyway", logging.ErrKey, err)
	}

	if err := s.Publisher.PublishCommand(ctx, models.MeetingCommand{Command: models.CommandStop, MeetingID: meetingID}); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "stop command sent")

	return &CommandResult{Status: CommandStatusStopped, MeetingID: meetingID}, nil
}
