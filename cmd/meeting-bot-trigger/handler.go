// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/service"
)

// trigger fires a scheduled meeting start.
type trigger interface {
	Fire(ctx context.Context, input models.TriggerInput) (*service.TriggerResult, error)
}

// bus is the command bus session shared by the invocations of a warm function.
type bus interface {
	WaitReady(ctx context.Context) error
}

// triggerResponse is returned to the scheduler for its invocation log.
type triggerResponse struct {
	InvocationID    string          `json:"invocationId"`
	MeetingID       string          `json:"meetingId"`
	Platform        models.Platform `json:"platform"`
	ScheduleDeleted bool            `json:"scheduleDeleted"`
}

// Handler is invoked once per fired schedule.
type Handler struct {
	Bus          bus
	Trigger      trigger
	ReadyTimeout time.Duration
}

// Handle waits for the bus session and publishes the start command. Returning an
// error makes the scheduler retry the invocation; the schedule name keeps the
// retried command from starting a second bot.
func (h *Handler) Handle(ctx context.Context, input models.TriggerInput) (*triggerResponse, error) {
	invocationID := uuid.NewString()
	ctx = logging.AppendCtx(ctx, slog.String("invocation_id", invocationID))
	slog.InfoContext(ctx, "schedule fired",
		"meeting_id", input.MeetingID,
		"schedule_name", input.ScheduleName,
	)

	readyCtx, cancel := context.WithTimeout(ctx, h.ReadyTimeout)
	defer cancel()
	if err := h.Bus.WaitReady(readyCtx); err != nil {
		slog.ErrorContext(ctx, "command bus not ready", logging.ErrKey, err)
		return nil, fmt.Errorf("wait for command bus: %w", err)
	}

	result, err := h.Trigger.Fire(ctx, input)
	if err != nil {
		level := slog.LevelError
		if domain.GetErrorType(err) == domain.ErrorTypeValidation {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "trigger failed", logging.ErrKey, err)
		return nil, err
	}

	return &triggerResponse{
		InvocationID:    invocationID,
		MeetingID:       result.MeetingID,
		Platform:        result.Platform,
		ScheduleDeleted: result.ScheduleDeleted,
	}, nil
}
