// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
)

// RecordingRepository defines the state store operations on bot session records.
// Records are written by the bots; the control plane reads them and applies
// administrative status changes.
type RecordingRepository interface {
	GetRecording(ctx context.Context, meetingID string) (*models.MeetingStateRecord, error)
	// UpdateRecordingStatus applies an administrative status change. It refuses
	// terminal records and transitions the bot lifecycle does not allow.
	UpdateRecordingStatus(ctx context.Context, meetingID string, status models.RecordingStatus, at time.Time) (*models.MeetingStateRecord, error)

	// Status index queries
	ListRecordingsByStatus(ctx context.Context, status models.RecordingStatus) ([]*models.MeetingStateRecord, error)

	// Bulk operations
	ListAllRecordings(ctx context.Context) ([]*models.MeetingStateRecord, error)
	CountRecordings(ctx context.Context) (int, error)
}

// ScheduleRepository defines the per-meeting scheduling lock and bookkeeping.
type ScheduleRepository interface {
	// AcquireScheduleLock returns false when another scheduler holds the lock.
	AcquireScheduleLock(ctx context.Context, meetingID string, now time.Time) (bool, error)
	ReleaseScheduleLock(ctx context.Context, meetingID string) error
	// MarkScheduled records the created trigger and releases the lock in one write.
	MarkScheduled(ctx context.Context, meetingID string, schedule models.Schedule, now time.Time) error
	GetSchedule(ctx context.Context, meetingID string) (*models.ScheduleRecord, error)
}
