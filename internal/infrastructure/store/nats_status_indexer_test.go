// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordJSON(t *testing.T, id string, status models.RecordingStatus) []byte {
	t.Helper()
	data, err := json.Marshal(models.MeetingStateRecord{MeetingID: id, Status: status})
	require.NoError(t, err)
	return data
}

func TestStatusIndexer_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv := newMockNatsKeyValue()
	// records written by bots, without index entries
	kv.seed("recording.a", recordJSON(t, "a", models.RecordingStatusRecording))
	kv.seed("recording.b", recordJSON(t, "b", models.RecordingStatusWaitingToJoin))
	// entry left by an earlier run that no longer matches the record
	kv.seed("index.status.paused.a", []byte{})

	indexer := NewStatusIndexer(kv)
	done := make(chan error, 1)
	go func() { done <- indexer.Run(ctx) }()

	select {
	case <-indexer.Synced():
	case <-time.After(2 * time.Second):
		t.Fatal("indexer did not sync")
	}

	assert.True(t, kv.has("index.status.recording.a"))
	assert.True(t, kv.has("index.status.waiting_to_join.b"))
	assert.False(t, kv.has("index.status.paused.a"))

	// a bot moves b into the meeting
	_, err := kv.Put(ctx, "recording.b", recordJSON(t, "b", models.RecordingStatusRecording))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return kv.has("index.status.recording.b") && !kv.has("index.status.waiting_to_join.b")
	}, 2*time.Second, 10*time.Millisecond)

	// a record removed from the bucket leaves no index entry behind
	require.NoError(t, kv.Delete(ctx, "recording.a"))
	assert.Eventually(t, func() bool {
		return !kv.has("index.status.recording.a")
	}, 2*time.Second, 10*time.Millisecond)

	repo := NewNatsRecordingRepository(kv)
	records, err := repo.ListRecordingsByStatus(ctx, models.RecordingStatusRecording)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0].MeetingID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("indexer did not stop")
	}
}
