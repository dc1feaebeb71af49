// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
)

// ScheduleBackend creates and removes one-shot triggers that start a bot at a given time.
type ScheduleBackend interface {
	CreateSchedule(ctx context.Context, schedule models.Schedule, input models.TriggerInput) error
	DeleteSchedule(ctx context.Context, name, group string) error
}

// TaskCounter reports how many bot tasks the orchestration platform runs.
type TaskCounter interface {
	TaskCount(ctx context.Context) (*models.TaskCounts, error)
}
