// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
	"github.com/nats-io/nats.go/jetstream"
)

// StatusIndexer keeps the status index of the recordings bucket in line with the records.
// Bots write their records without touching the index, so the indexer watches every
// record key and moves the matching index entry. Writes are idempotent, several
// instances may run it at once.
type StatusIndexer struct {
	kvStore    INatsKeyValue
	keyBuilder *KeyBuilder
	// indexed maps a meeting id to the statuses it currently has index entries for.
	indexed map[string]map[models.RecordingStatus]struct{}
	synced  chan struct{}
}

// NewStatusIndexer creates an indexer over the recordings bucket
func NewStatusIndexer(kvStore INatsKeyValue) *StatusIndexer {
	return &StatusIndexer{
		kvStore:    kvStore,
		keyBuilder: NewKeyBuilder(""),
		indexed:    make(map[string]map[models.RecordingStatus]struct{}),
		synced:     make(chan struct{}),
	}
}

// Synced is closed once every record present at start has been indexed.
func (s *StatusIndexer) Synced() <-chan struct{} {
	return s.synced
}

// Run watches the bucket until ctx is done.
func (s *StatusIndexer) Run(ctx context.Context) error {
	if err := s.loadIndex(ctx); err != nil {
		return err
	}

	watcher, err := s.kvStore.Watch(ctx, s.keyBuilder.EntityFilter(KeyPrefixRecording))
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Stop() }()

	initial := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-watcher.Updates():
			if !ok {
				return nil
			}
			if entry == nil {
				if initial {
					initial = false
					close(s.synced)
					slog.InfoContext(ctx, "status index synced", "records", len(s.indexed))
				}
				continue
			}
			s.apply(ctx, entry)
		}
	}
}

// loadIndex reads the index entries left by previous runs.
func (s *StatusIndexer) loadIndex(ctx context.Context) error {
	lister, err := s.kvStore.ListKeysFiltered(ctx, s.keyBuilder.IndexTypeFilter(KeyPrefixIndexStatus))
	if err != nil {
		return err
	}
	defer func() { _ = lister.Stop() }()

	for key := range lister.Keys() {
		meetingID, err := s.keyBuilder.IDFromKey(key)
		if err != nil {
			continue
		}
		status, err := s.keyBuilder.IndexValueFromKey(key)
		if err != nil {
			continue
		}
		s.mark(meetingID, models.RecordingStatus(status))
	}
	return nil
}

func (s *StatusIndexer) mark(meetingID string, status models.RecordingStatus) {
	statuses, ok := s.indexed[meetingID]
	if !ok {
		statuses = make(map[models.RecordingStatus]struct{})
		s.indexed[meetingID] = statuses
	}
	statuses[status] = struct{}{}
}

func (s *StatusIndexer) apply(ctx context.Context, entry jetstream.KeyValueEntry) {
	meetingID, err := s.keyBuilder.IDFromKey(entry.Key())
	if err != nil {
		slog.WarnContext(ctx, "skipping malformed record key", "key", entry.Key(), logging.ErrKey, err)
		return
	}

	var current models.RecordingStatus
	if entry.Operation() == jetstream.KeyValuePut {
		var record models.MeetingStateRecord
		if err := json.Unmarshal(entry.Value(), &record); err != nil {
			slog.WarnContext(ctx, "skipping undecodable record", "key", entry.Key(), logging.ErrKey, err)
			return
		}
		current = record.Status
	}

	if current != "" {
		if _, ok := s.indexed[meetingID][current]; !ok {
			key := s.keyBuilder.IndexKey(KeyPrefixIndexStatus, string(current), meetingID)
			if _, err := s.kvStore.Put(ctx, key, []byte{}); err != nil {
				slog.ErrorContext(ctx, "error creating index", logging.ErrKey, err, "index_key", key)
				return
			}
			s.mark(meetingID, current)
		}
	}

	for status := range s.indexed[meetingID] {
		if status == current {
			continue
		}
		key := s.keyBuilder.IndexKey(KeyPrefixIndexStatus, string(status), meetingID)
		if err := s.kvStore.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			slog.WarnContext(ctx, "error deleting index", logging.ErrKey, err, "index_key", key)
			continue
		}
		delete(s.indexed[meetingID], status)
	}

	if len(s.indexed[meetingID]) == 0 {
		delete(s.indexed, meetingID)
	}
}
