// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/infrastructure/metrics"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/utils"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/constants"
	pkgutils "github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/utils"
)

// ComputeFireAt returns when the bot of a meeting starting at start should be started.
// A meeting that began within constants.RecentStartWindow, or that starts within
// constants.ScheduleLeadTime, is joined right away; later meetings are joined
// constants.ScheduleLeadTime before they start.
func ComputeFireAt(now, start time.Time) time.Time {
	if start.Before(now) && start.After(now.Add(-constants.RecentStartWindow)) {
		return now
	}
	lead := start.Add(-constants.ScheduleLeadTime)
	if !lead.After(now) {
		return now
	}
	return lead
}

// SchedulerService turns calendar events into one-shot bot start triggers.
type SchedulerService struct {
	ScheduleRepository domain.ScheduleRepository
	ScheduleBackend    domain.ScheduleBackend
	Config             ServiceConfig
	now                clock
}

// NewSchedulerService creates a new SchedulerService.
func NewSchedulerService(
	scheduleRepository domain.ScheduleRepository,
	scheduleBackend domain.ScheduleBackend,
	config ServiceConfig,
) *SchedulerService {
	return &SchedulerService{
		ScheduleRepository: scheduleRepository,
		ScheduleBackend:    scheduleBackend,
		Config:             config,
		now:                systemClock,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *SchedulerService) ServiceReady() bool {
	return s.ScheduleRepository != nil && s.ScheduleBackend != nil
}

// ScheduleStart creates the trigger that starts a bot for the event. Concurrent calls
// for the same meeting create a single trigger: the others observe the scheduling
// lock and report already_scheduled.
func (s *SchedulerService) ScheduleStart(ctx context.Context, event models.CalendarEvent) (*models.ScheduleOutcome, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}
	ctx = logging.WithMeeting(ctx, event.ID, "schedule_start")
	now := s.now()

	start, meetingURL, err := s.validateEvent(ctx, event, now)
	if err != nil {
		metrics.SchedulingRequests.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	acquired, err := s.ScheduleRepository.AcquireScheduleLock(ctx, event.ID, now)
	if err != nil {
		slog.ErrorContext(ctx, "error acquiring scheduling lock", logging.ErrKey, err)
		metrics.SchedulingRequests.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, domain.NewInternalError("error acquiring scheduling lock", err)
	}
	if !acquired {
		slog.InfoContext(ctx, "meeting already locked for scheduling, skipping")
		metrics.SchedulingRequests.WithLabelValues(metrics.OutcomeAlreadyScheduled).Inc()
		return &models.ScheduleOutcome{
			Status:    models.ScheduleOutcomeAlreadyScheduled,
			MeetingID: event.ID,
		}, nil
	}

	schedule := models.Schedule{
		Name:   models.ScheduleName(s.Config.Environment, event.ID, now),
		Group:  models.ScheduleGroupName(s.Config.Environment),
		FireAt: ComputeFireAt(now, start),
	}
	input := models.TriggerInput{
		MeetingID:    event.ID,
		MeetingURL:   meetingURL,
		ScheduleName: schedule.Name,
		GroupName:    schedule.Group,
	}

	if err := s.ScheduleBackend.CreateSchedule(ctx, schedule, input); err != nil {
		slog.ErrorContext(ctx, "error creating schedule", logging.ErrKey, err, "schedule_name", schedule.Name)
		if releaseErr := s.ScheduleRepository.ReleaseScheduleLock(ctx, event.ID); releaseErr != nil {
			slog.ErrorContext(ctx, "error removing scheduling lock", logging.ErrKey, releaseErr, logging.PriorityCritical())
		}
		metrics.SchedulingRequests.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, domain.NewInternalError("error scheduling meeting trigger", err)
	}

	if err := s.ScheduleRepository.MarkScheduled(ctx, event.ID, schedule, now); err != nil {
		slog.ErrorContext(ctx, "error recording schedule", logging.ErrKey, err, "schedule_name", schedule.Name)
	}

	slog.InfoContext(ctx, "meeting scheduled",
		"schedule_name", schedule.Name,
		"fire_at", schedule.FireAt,
		"start_time", start,
	)
	metrics.SchedulingRequests.WithLabelValues(metrics.OutcomeScheduled).Inc()

	return &models.ScheduleOutcome{
		Status:       models.ScheduleOutcomeScheduled,
		MeetingID:    event.ID,
		ScheduleName: schedule.Name,
		GroupName:    schedule.Group,
		FireAt:       pkgutils.TimePtr(schedule.FireAt),
	}, nil
}

// validateEvent returns the start of the occurrence to schedule and the meeting URL.
func (s *SchedulerService) validateEvent(ctx context.Context, event models.CalendarEvent, now time.Time) (time.Time, string, error) {
	if strings.TrimSpace(event.ID) == "" {
		return time.Time{}, "", domain.NewValidationError("missing meeting id")
	}
	// Stop, pause and resume address the meeting by id inside their routing key.
	if !models.IsRoutableMeetingID(event.ID) {
		return time.Time{}, "", domain.NewValidationError(
			fmt.Sprintf("meeting id %q must not contain '.', '*', '>' or whitespace", event.ID), domain.ErrValidationFailed)
	}

	start, err := time.Parse(time.RFC3339, event.StartTime)
	if err != nil {
		slog.WarnContext(ctx, "invalid start time", "start_time", event.StartTime)
		return time.Time{}, "", domain.NewValidationError("invalid startTime, expected RFC 3339", err)
	}
	start = start.UTC()

	meetingURL := strings.TrimSpace(event.MeetingURL)
	if meetingURL == "" {
		found, _, ok := utils.FindMeetingURL(event.Description)
		if !ok {
			return time.Time{}, "", domain.NewValidationError("missing meetingUrl")
		}
		meetingURL = found
	}
	if utils.DetectPlatform(meetingURL) == models.PlatformUnknown {
		return time.Time{}, "", domain.NewValidationError("unsupported meeting platform", domain.ErrUnsupportedPlatform)
	}

	if event.Recurrence != "" {
		start, err = nextOccurrence(event.Recurrence, start, now)
		if err != nil {
			slog.WarnContext(ctx, "invalid recurrence", "recurrence", event.Recurrence, logging.ErrKey, err)
			return time.Time{}, "", err
		}
	}

	return start, meetingURL, nil
}

// nextOccurrence returns the first occurrence of a recurring meeting that has not
// been over for longer than constants.RecentStartWindow.
func nextOccurrence(recurrence string, first, now time.Time) (time.Time, error) {
	rule, err := rrule.StrToRRule(strings.TrimPrefix(strings.TrimSpace(recurrence), "RRULE:"))
	if err != nil {
		return time.Time{}, domain.NewValidationError("invalid recurrence", err)
	}
	rule.DTStart(first)

	next := rule.After(now.Add(-constants.RecentStartWindow), false)
	if next.IsZero() {
		return time.Time{}, domain.NewValidationError("recurrence has no upcoming occurrence")
	}
	return next.UTC(), nil
}
