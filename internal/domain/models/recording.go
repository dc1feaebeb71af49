// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// RecordingStatus is the lifecycle state a bot persists for its meeting.
type RecordingStatus string

const (
	RecordingStatusWaitingToJoin RecordingStatus = "waiting_to_join"
	RecordingStatusRecording     RecordingStatus = "recording"
	RecordingStatusPaused        RecordingStatus = "paused"
	RecordingStatusCompleted     RecordingStatus = "completed"
	RecordingStatusNotAdmitted   RecordingStatus = "not_admitted"
)

// ActiveRecordingStatuses are the statuses of a bot that still occupies an instance.
var ActiveRecordingStatuses = []RecordingStatus{
	RecordingStatusRecording,
	RecordingStatusPaused,
	RecordingStatusWaitingToJoin,
}

// IsTerminal reports whether the meeting is finished for good.
func (s RecordingStatus) IsTerminal() bool {
	return s == RecordingStatusCompleted || s == RecordingStatusNotAdmitted
}

// allowedTransitions encodes waiting_to_join -> recording <-> paused -> completed|not_admitted.
var allowedTransitions = map[RecordingStatus][]RecordingStatus{
	RecordingStatusWaitingToJoin: {RecordingStatusRecording, RecordingStatusCompleted, RecordingStatusNotAdmitted},
	RecordingStatusRecording:     {RecordingStatusPaused, RecordingStatusCompleted, RecordingStatusNotAdmitted},
	RecordingStatusPaused:        {RecordingStatusRecording, RecordingStatusCompleted, RecordingStatusNotAdmitted},
}

// CanTransition reports whether a record may move from one status to another.
func CanTransition(from, to RecordingStatus) bool {
	if from == to {
		return !from.IsTerminal()
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// MeetingStateRecord is the persisted state of one bot session, keyed by meeting id.
// The bot writes heartbeats and lifecycle changes; the control plane only writes
// administrative pause/resume changes.
type MeetingStateRecord struct {
	MeetingID              string          `json:"meeting_id"`
	BotID                  string          `json:"bot_id,omitempty"`
	Status                 RecordingStatus `json:"status"`
	StartedAt              *time.Time      `json:"started_at,omitempty"`
	JoinedAt               *time.Time      `json:"joined_at,omitempty"`
	EndedAt                *time.Time      `json:"ended_at,omitempty"`
	LastHeartbeat          *time.Time      `json:"last_heartbeat,omitempty"`
	LastStatusUpdate       *time.Time      `json:"last_status_update,omitempty"`
	TranscriptionGenerated bool            `json:"transcription_generated"`
}

// HeartbeatAge returns how old the last heartbeat is, and false when there is none.
func (r *MeetingStateRecord) HeartbeatAge(now time.Time) (time.Duration, bool) {
	if r == nil || r.LastHeartbeat == nil || r.LastHeartbeat.IsZero() {
		return 0, false
	}
	return now.Sub(*r.LastHeartbeat), true
}
