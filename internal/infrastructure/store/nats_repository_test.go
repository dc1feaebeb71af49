// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjectMatches(t *testing.T) {
	tests := []struct {
		filter string
		key    string
		want   bool
	}{
		{"recording.>", "recording.m-1", true},
		{"recording.>", "recording", false},
		{"recording.>", "schedule.m-1", false},
		{"index.status.paused.*", "index.status.paused.m-1", true},
		{"index.status.paused.*", "index.status.paused.m-1.extra", false},
		{"index.status.>", "index.status.paused.m-1", true},
		{"schedule.m-1", "schedule.m-1", true},
		{"schedule.m-1", "schedule.m-2", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter+" "+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, subjectMatches(tt.filter, tt.key))
		})
	}
}

func TestBucketNames(t *testing.T) {
	names := []string{KVStoreNameRecordings, KVStoreNameSchedules, KVStoreNamePendingSchedules}
	seen := map[string]bool{}
	for _, name := range names {
		assert.False(t, seen[name], "bucket %s declared twice", name)
		assert.True(t, keyValid(name))
		seen[name] = true
	}
}
