// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/utils"
)

// NatsScheduleRepository is the NATS KV implementation of [domain.ScheduleRepository].
type NatsScheduleRepository struct {
	*NatsBaseRepository[models.ScheduleRecord]
	keyBuilder *KeyBuilder
}

// NewNatsScheduleRepository creates a repository over the schedules bucket
func NewNatsScheduleRepository(kvStore INatsKeyValue) *NatsScheduleRepository {
	return &NatsScheduleRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.ScheduleRecord](kvStore, "schedule"),
		keyBuilder:         NewKeyBuilder(""),
	}
}

func (r *NatsScheduleRepository) scheduleKey(meetingID string) string {
	return r.keyBuilder.EntityKey(KeyPrefixSchedule, meetingID)
}

// AcquireScheduleLock sets the schedule lock with a conditional write. It returns false,
// without error, when the lock is already held or another writer won the race.
func (r *NatsScheduleRepository) AcquireScheduleLock(ctx context.Context, meetingID string, now time.Time) (bool, error) {
	key := r.scheduleKey(meetingID)

	record, revision, err := r.GetWithRevision(ctx, key)
	if err != nil {
		if domain.GetErrorType(err) != domain.ErrorTypeNotFound {
			return false, err
		}
		_, err = r.Create(ctx, key, &models.ScheduleRecord{
			MeetingID:    meetingID,
			ScheduleLock: true,
			UpdatedAt:    now.UTC(),
		})
		return lockResult(ctx, meetingID, err)
	}

	if record.ScheduleLock {
		slog.DebugContext(ctx, "schedule lock already held", "meeting_id", meetingID)
		return false, nil
	}

	record.ScheduleLock = true
	record.UpdatedAt = now.UTC()
	_, err = r.Update(ctx, key, record, revision)
	return lockResult(ctx, meetingID, err)
}

func lockResult(ctx context.Context, meetingID string, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if domain.GetErrorType(err) == domain.ErrorTypeConflict {
		slog.DebugContext(ctx, "lost schedule lock race", "meeting_id", meetingID)
		return false, nil
	}
	return false, err
}

// ReleaseScheduleLock clears the lock. A missing record is not an error.
func (r *NatsScheduleRepository) ReleaseScheduleLock(ctx context.Context, meetingID string) error {
	return r.modify(ctx, meetingID, func(record *models.ScheduleRecord) {
		record.ScheduleLock = false
		record.UpdatedAt = time.Now().UTC()
	})
}

// MarkScheduled records the created trigger and clears the lock in the same write.
func (r *NatsScheduleRepository) MarkScheduled(ctx context.Context, meetingID string, schedule models.Schedule, now time.Time) error {
	return r.modify(ctx, meetingID, func(record *models.ScheduleRecord) {
		record.ScheduleLock = false
		record.ScheduleCreated = true
		record.ScheduleName = schedule.Name
		record.FireAt = utils.TimePtr(schedule.FireAt.UTC())
		record.UpdatedAt = now.UTC()
	})
}

// modify applies change with a revision-checked write, retrying when a concurrent
// writer got in between.
func (r *NatsScheduleRepository) modify(ctx context.Context, meetingID string, change func(*models.ScheduleRecord)) error {
	key := r.scheduleKey(meetingID)

	var lastErr error
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		record, revision, err := r.GetWithRevision(ctx, key)
		if err != nil {
			if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
				return nil
			}
			return err
		}

		change(record)
		_, err = r.Update(ctx, key, record, revision)
		if err == nil {
			return nil
		}
		if domain.GetErrorType(err) != domain.ErrorTypeConflict {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// GetSchedule returns the scheduling record of a meeting
func (r *NatsScheduleRepository) GetSchedule(ctx context.Context, meetingID string) (*models.ScheduleRecord, error) {
	record, err := r.Get(ctx, r.scheduleKey(meetingID))
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return nil, domain.NewNotFoundError(fmt.Sprintf("no schedule for meeting %s", meetingID), err)
		}
		return nil, err
	}
	return record, nil
}
