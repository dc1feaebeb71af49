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
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
)

// maxUpdateAttempts bounds retries of a status change that raced a bot heartbeat write.
const maxUpdateAttempts = 3

// NatsRecordingRepository is the NATS KV implementation of [domain.RecordingRepository].
// Records live under "recording.<meeting id>"; the status index under
// "index.status.<status>.<meeting id>".
type NatsRecordingRepository struct {
	*NatsBaseRepository[models.MeetingStateRecord]
	keyBuilder *KeyBuilder
}

// NewNatsRecordingRepository creates a repository over the recordings bucket
func NewNatsRecordingRepository(kvStore INatsKeyValue) *NatsRecordingRepository {
	return &NatsRecordingRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.MeetingStateRecord](kvStore, "recording"),
		keyBuilder:         NewKeyBuilder(""),
	}
}

func (r *NatsRecordingRepository) recordKey(meetingID string) string {
	return r.keyBuilder.EntityKey(KeyPrefixRecording, meetingID)
}

func (r *NatsRecordingRepository) statusIndexKey(status models.RecordingStatus, meetingID string) string {
	return r.keyBuilder.IndexKey(KeyPrefixIndexStatus, string(status), meetingID)
}

func notFound(meetingID string) error {
	return domain.NewNotFoundError(fmt.Sprintf("no record for meeting %s", meetingID), domain.ErrRecordNotFound)
}

// GetRecording returns the state record of a meeting
func (r *NatsRecordingRepository) GetRecording(ctx context.Context, meetingID string) (*models.MeetingStateRecord, error) {
	record, _, err := r.getWithRevision(ctx, meetingID)
	return record, err
}

func (r *NatsRecordingRepository) getWithRevision(ctx context.Context, meetingID string) (*models.MeetingStateRecord, uint64, error) {
	record, revision, err := r.GetWithRevision(ctx, r.recordKey(meetingID))
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return nil, 0, notFound(meetingID)
		}
		return nil, 0, err
	}
	return record, revision, nil
}

// PutRecording writes a whole record and moves its status index entry.
func (r *NatsRecordingRepository) PutRecording(ctx context.Context, record *models.MeetingStateRecord) error {
	if record == nil || record.MeetingID == "" {
		return domain.NewValidationError("meeting_id is required")
	}

	previous, _, err := r.getWithRevision(ctx, record.MeetingID)
	if err != nil && domain.GetErrorType(err) != domain.ErrorTypeNotFound {
		return err
	}

	if _, err := r.Put(ctx, r.recordKey(record.MeetingID), record); err != nil {
		return err
	}

	var from models.RecordingStatus
	if previous != nil {
		from = previous.Status
	}
	return r.moveIndex(ctx, record.MeetingID, from, record.Status)
}

// UpdateRecordingStatus applies an administrative status change with a revision-checked write.
// Terminal records and transitions outside the bot lifecycle are refused with a Conflict.
func (r *NatsRecordingRepository) UpdateRecordingStatus(ctx context.Context, meetingID string, status models.RecordingStatus, at time.Time) (*models.MeetingStateRecord, error) {
	var lastErr error
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		record, revision, err := r.getWithRevision(ctx, meetingID)
		if err != nil {
			return nil, err
		}

		previous := record.Status
		if previous.IsTerminal() {
			return nil, domain.NewConflictError(
				fmt.Sprintf("meeting %s is already %s", meetingID, previous), domain.ErrTerminalRecord)
		}
		if !models.CanTransition(previous, status) {
			return nil, domain.NewConflictError(
				fmt.Sprintf("cannot move meeting %s from %s to %s", meetingID, previous, status), domain.ErrInvalidTransition)
		}

		updatedAt := at.UTC()
		record.Status = status
		record.LastStatusUpdate = &updatedAt

		_, err = r.Update(ctx, r.recordKey(meetingID), record, revision)
		if err == nil {
			if err := r.moveIndex(ctx, meetingID, previous, status); err != nil {
				// the record is authoritative; the index watcher repairs the entry
				slog.WarnContext(ctx, "status index not updated", logging.ErrKey, err,
					"meeting_id", meetingID, "status", status)
			}
			return record, nil
		}
		if domain.GetErrorType(err) != domain.ErrorTypeConflict {
			return nil, err
		}

		lastErr = err
		slog.DebugContext(ctx, "record changed during status update, retrying",
			"meeting_id", meetingID, "attempt", attempt)
	}

	return nil, lastErr
}

func (r *NatsRecordingRepository) moveIndex(ctx context.Context, meetingID string, from, to models.RecordingStatus) error {
	if from == to {
		return nil
	}
	if to != "" {
		if err := r.PutIndex(ctx, r.statusIndexKey(to, meetingID)); err != nil {
			return err
		}
	}
	if from != "" {
		return r.DeleteIndex(ctx, r.statusIndexKey(from, meetingID))
	}
	return nil
}

// ListRecordingsByStatus resolves the status index. Entries whose record has moved on
// since the index was written are skipped.
func (r *NatsRecordingRepository) ListRecordingsByStatus(ctx context.Context, status models.RecordingStatus) ([]*models.MeetingStateRecord, error) {
	keys, err := r.ListKeys(ctx, r.keyBuilder.IndexFilter(KeyPrefixIndexStatus, string(status)))
	if err != nil {
		return nil, err
	}

	records := make([]*models.MeetingStateRecord, 0, len(keys))
	for _, key := range keys {
		meetingID, err := r.keyBuilder.IDFromKey(key)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed index key", "key", key, logging.ErrKey, err)
			continue
		}

		record, err := r.GetRecording(ctx, meetingID)
		if err != nil {
			if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
				slog.DebugContext(ctx, "index entry without record", "key", key)
				continue
			}
			return nil, err
		}
		if record.Status != status {
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// ListAllRecordings returns every record in the bucket
func (r *NatsRecordingRepository) ListAllRecordings(ctx context.Context) ([]*models.MeetingStateRecord, error) {
	return r.ListEntities(ctx, r.keyBuilder.EntityFilter(KeyPrefixRecording))
}

// CountRecordings returns how many records the bucket holds
func (r *NatsRecordingRepository) CountRecordings(ctx context.Context) (int, error) {
	keys, err := r.ListKeys(ctx, r.keyBuilder.EntityFilter(KeyPrefixRecording))
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
