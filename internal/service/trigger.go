// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/utils"
)

// BestEffort is an operation whose failure is logged and never retried.
type BestEffort struct {
	Name string
	Run  func(ctx context.Context) error
}

// Do runs the operation once and reports whether it succeeded.
func (b BestEffort) Do(ctx context.Context) bool {
	if err := b.Run(ctx); err != nil {
		slog.WarnContext(ctx, "best-effort operation failed", "best_effort", b.Name, logging.ErrKey, err)
		return false
	}
	return true
}

// TriggerService starts the bot of a scheduled meeting when its schedule fires.
type TriggerService struct {
	Publisher       domain.CommandPublisher
	ScheduleBackend domain.ScheduleBackend
}

// NewTriggerService creates a new TriggerService.
func NewTriggerService(publisher domain.CommandPublisher, scheduleBackend domain.ScheduleBackend) *TriggerService {
	return &TriggerService{
		Publisher:       publisher,
		ScheduleBackend: scheduleBackend,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *TriggerService) ServiceReady() bool {
	return s.Publisher != nil && s.ScheduleBackend != nil
}

// TriggerResult describes a fired schedule.
type TriggerResult struct {
	MeetingID       string
	Platform        models.Platform
	ScheduleDeleted bool
}

// Fire publishes the start command of a fired schedule and then deletes the schedule.
// The schedule name doubles as idempotency key so that a redelivered invocation does
// not start a second bot. A failed publish leaves the schedule in place and is returned
// so the scheduler retries the invocation.
func (s *TriggerService) Fire(ctx context.Context, input models.TriggerInput) (*TriggerResult, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}
	if strings.TrimSpace(input.MeetingID) == "" || strings.TrimSpace(input.MeetingURL) == "" {
		return nil, domain.NewValidationError("missing meetingId or meetingUrl")
	}
	ctx = logging.WithMeeting(ctx, input.MeetingID, "trigger")

	normalized := utils.NormalizeMeetingURL(input.MeetingURL, "")
	if normalized.Platform == models.PlatformUnknown {
		return nil, domain.NewValidationError("unsupported meeting platform", domain.ErrUnsupportedPlatform)
	}

	cmd := models.MeetingCommand{
		Command:     models.CommandStart,
		MeetingID:   input.MeetingID,
		MeetingURL:  normalized.URL,
		Platform:    normalized.Platform,
		MeetingType: models.MeetingTypeRegular,
	}
	var opts []domain.PublishOption
	if input.ScheduleName != "" {
		opts = append(opts, domain.WithIdempotencyKey(input.ScheduleName))
	}
	if err := s.Publisher.PublishCommand(ctx, cmd, opts...); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "scheduled start command sent", "schedule_name", input.ScheduleName)

	result := &TriggerResult{MeetingID: input.MeetingID, Platform: normalized.Platform}
	if input.ScheduleName != "" {
		result.ScheduleDeleted = BestEffort{
			Name: "delete_schedule",
			Run: func(ctx context.Context) error {
				return s.ScheduleBackend.DeleteSchedule(ctx, input.ScheduleName, input.GroupName)
			},
		}.Do(ctx)
	}
	return result, nil
}
