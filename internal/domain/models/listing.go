// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// ListingStatus is the status shown for a record in the recordings listing. Unlike
// BotStatus it keeps the persisted status visible when the heartbeat went stale.
type ListingStatus string

const (
	ListingStatusCompleted      ListingStatus = "completed"
	ListingStatusNotAdmitted    ListingStatus = "not_admitted"
	ListingStatusInMeeting      ListingStatus = "in_meeting"
	ListingStatusStaleRecording ListingStatus = "stale_recording"
	ListingStatusPaused         ListingStatus = "paused"
	ListingStatusStalePaused    ListingStatus = "stale_paused"
	ListingStatusWaitingToJoin  ListingStatus = "waiting_to_join"
	ListingStatusStaleWaiting   ListingStatus = "stale_waiting"
	ListingStatusUnknown        ListingStatus = "unknown"
)

// RecordingListing is one row of the recordings listing.
type RecordingListing struct {
	MeetingID              string          `json:"meeting_id"`
	BotID                  string          `json:"bot_id,omitempty"`
	Status                 ListingStatus   `json:"status"`
	OriginalStatus         RecordingStatus `json:"original_status"`
	StartedAt              *time.Time      `json:"started_at,omitempty"`
	JoinedAt               *time.Time      `json:"joined_at,omitempty"`
	EndedAt                *time.Time      `json:"ended_at,omitempty"`
	LastHeartbeat          *time.Time      `json:"last_heartbeat,omitempty"`
	TranscriptionGenerated bool            `json:"transcription_generated"`
	IsActive               bool            `json:"is_active"`
	HeartbeatAgeMinutes    *int            `json:"heartbeat_age_minutes"`
}

// ActiveBreakdown splits the active recordings by what the bot is doing.
type ActiveBreakdown struct {
	InMeeting     int `json:"in_meeting"`
	Paused        int `json:"paused"`
	WaitingToJoin int `json:"waiting_to_join"`
}

// RecordingsSummary aggregates the listing.
type RecordingsSummary struct {
	TotalRecordings int             `json:"total_recordings"`
	ActiveCount     int             `json:"active_count"`
	CompletedCount  int             `json:"completed_count"`
	InMeetingCount  int             `json:"in_meeting_count"`
	ActiveBreakdown ActiveBreakdown `json:"active_breakdown"`
}

// RecordingsReport is every known record, most recently started first.
type RecordingsReport struct {
	Summary    RecordingsSummary   `json:"summary"`
	Recordings []*RecordingListing `json:"recordings"`
}
