// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"fmt"
	"math"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/constants"
	pkgutils "github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/utils"
)

// DeriveStatus maps a persisted record onto the status reported to callers.
// A bot whose last heartbeat is older than constants.HeartbeatStaleAfter, or that
// never sent one, is recorder_unavailable whatever it last persisted.
func DeriveStatus(record *models.MeetingStateRecord, now time.Time) models.DerivedStatus {
	age, hasHeartbeat := record.HeartbeatAge(now)
	derived := models.DerivedStatus{
		Status:       models.BotStatusUnknown,
		HasHeartbeat: hasHeartbeat,
		HeartbeatAge: age,
	}
	if record == nil {
		return derived
	}

	fresh := hasHeartbeat && age <= constants.HeartbeatStaleAfter
	live := func(status models.BotStatus) {
		if fresh {
			derived.Status = status
			derived.IsActive = true
			return
		}
		derived.Status = models.BotStatusRecorderUnavailable
	}

	switch record.Status {
	case models.RecordingStatusCompleted:
		derived.Status = models.BotStatusFinished
	case models.RecordingStatusNotAdmitted:
		derived.Status = models.BotStatusNotAdmitted
	case models.RecordingStatusPaused:
		live(models.BotStatusPaused)
	case models.RecordingStatusWaitingToJoin:
		live(models.BotStatusWaitingToJoin)
	case models.RecordingStatusRecording:
		live(models.BotStatusInMeeting)
	}
	return derived
}

// BuildStatusView renders a derived status the way the status endpoints report it.
func BuildStatusView(record *models.MeetingStateRecord, derived models.DerivedStatus, now time.Time) models.BotStatusView {
	view := models.BotStatusView{
		Status:    derived.Status,
		BotID:     models.UnknownBotID,
		Timestamp: now,
		Core: models.BotCoreState{
			IsBotRunning: derived.IsActive,
			IsBotPaused:  derived.Status == models.BotStatusPaused,
			HasJoined:    derived.Status == models.BotStatusInMeeting || derived.Status == models.BotStatusPaused,
		},
		Meeting: models.BotMeetingSnapshot{
			IsActiveMeeting: derived.IsActive,
		},
	}
	if record == nil {
		return view
	}
	if record.BotID != "" {
		view.BotID = record.BotID
	}
	view.Meeting.MeetingID = record.MeetingID
	view.Meeting.StartedAt = record.StartedAt
	view.Meeting.EndedAt = record.EndedAt
	view.Meeting.LastHeartbeat = record.LastHeartbeat
	view.Meeting.RecordingStatus = record.Status
	return view
}

// Guard failure reasons returned to callers of pause and resume.
const (
	ReasonNotFound       = "Meeting not found in database"
	ReasonNotJoined      = "Bot has not joined the meeting yet"
	ReasonNoHeartbeat    = "No heartbeat detected"
	ReasonAlreadyPaused  = "Meeting is already paused"
	reasonStaleHeartbeat = "Heartbeat is stale (%d minutes old)"
	reasonWrongStatus    = "Meeting status is '%s'"
	reasonNotPaused      = "Meeting is not paused (current status: %s)"
)

// GuardResult tells whether a record may receive a pause or resume command.
type GuardResult struct {
	Allowed       bool
	Reason        string
	CurrentStatus models.RecordingStatus
}

func deny(reason string) GuardResult {
	return GuardResult{Reason: reason}
}

// CheckActivelyRecording checks that a bot joined its meeting, is still sending
// heartbeats and holds a non terminal status.
func CheckActivelyRecording(record *models.MeetingStateRecord, now time.Time) GuardResult {
	if record == nil {
		return deny(ReasonNotFound)
	}
	if record.JoinedAt == nil || record.JoinedAt.IsZero() {
		return deny(ReasonNotJoined)
	}

	age, ok := record.HeartbeatAge(now)
	if !ok {
		return deny(ReasonNoHeartbeat)
	}
	if age > constants.HeartbeatStaleAfter {
		return deny(fmt.Sprintf(reasonStaleHeartbeat, int(math.Round(age.Minutes()))))
	}

	switch record.Status {
	case models.RecordingStatusRecording, models.RecordingStatusPaused, models.RecordingStatusWaitingToJoin:
		return GuardResult{Allowed: true, CurrentStatus: record.Status}
	}
	return deny(fmt.Sprintf(reasonWrongStatus, record.Status))
}

// CheckCanPause additionally refuses a meeting that is already paused, and one
// whose record cannot move to paused yet.
func CheckCanPause(record *models.MeetingStateRecord, now time.Time) GuardResult {
	guard := CheckActivelyRecording(record, now)
	if !guard.Allowed {
		return guard
	}
	switch {
	case guard.CurrentStatus == models.RecordingStatusPaused:
		return GuardResult{Reason: ReasonAlreadyPaused, CurrentStatus: guard.CurrentStatus}
	case !models.CanTransition(guard.CurrentStatus, models.RecordingStatusPaused):
		return GuardResult{
			Reason:        fmt.Sprintf(reasonWrongStatus, guard.CurrentStatus),
			CurrentStatus: guard.CurrentStatus,
		}
	}
	return guard
}

// CheckCanResume additionally requires the meeting to be paused.
func CheckCanResume(record *models.MeetingStateRecord, now time.Time) GuardResult {
	guard := CheckActivelyRecording(record, now)
	if guard.Allowed && guard.CurrentStatus != models.RecordingStatusPaused {
		return GuardResult{
			Reason:        fmt.Sprintf(reasonNotPaused, guard.CurrentStatus),
			CurrentStatus: guard.CurrentStatus,
		}
	}
	return guard
}

// ClassifyForListing returns the listing status of a record and whether it counts as active.
func ClassifyForListing(record *models.MeetingStateRecord, now time.Time) (models.ListingStatus, bool) {
	age, ok := record.HeartbeatAge(now)
	fresh := ok && age <= constants.HeartbeatStaleAfter

	pick := func(live, stale models.ListingStatus) (models.ListingStatus, bool) {
		if fresh {
			return live, true
		}
		return stale, false
	}

	switch record.Status {
	case models.RecordingStatusCompleted:
		return models.ListingStatusCompleted, false
	case models.RecordingStatusNotAdmitted:
		return models.ListingStatusNotAdmitted, false
	case models.RecordingStatusRecording:
		return pick(models.ListingStatusInMeeting, models.ListingStatusStaleRecording)
	case models.RecordingStatusPaused:
		return pick(models.ListingStatusPaused, models.ListingStatusStalePaused)
	case models.RecordingStatusWaitingToJoin:
		return pick(models.ListingStatusWaitingToJoin, models.ListingStatusStaleWaiting)
	}
	return models.ListingStatusUnknown, false
}

// heartbeatAgeMinutes rounds the heartbeat age to whole minutes, nil without a heartbeat.
func heartbeatAgeMinutes(record *models.MeetingStateRecord, now time.Time) *int {
	age, ok := record.HeartbeatAge(now)
	if !ok {
		return nil
	}
	return pkgutils.IntPtr(int(math.Round(age.Minutes())))
}
