// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"time"
)

// ScheduleRecord is the per-meeting scheduling state. ScheduleLock is held by at most one
// scheduler at a time.
type ScheduleRecord struct {
	MeetingID       string     `json:"meeting_id"`
	ScheduleLock    bool       `json:"schedule_lock,omitempty"`
	ScheduleCreated bool       `json:"schedule_created,omitempty"`
	ScheduleName    string     `json:"schedule_name,omitempty"`
	FireAt          *time.Time `json:"fire_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Schedule is a one-shot trigger registered with the external scheduler.
type Schedule struct {
	Name   string
	Group  string
	FireAt time.Time
}

// ScheduleGroupName returns the schedule group of an environment.
func ScheduleGroupName(environment string) string {
	return fmt.Sprintf("meet-bot-%s", environment)
}

// ScheduleName returns a name unique per meeting and scheduling attempt.
func ScheduleName(environment, meetingID string, now time.Time) string {
	return fmt.Sprintf("meeting-%s-%s-%d", environment, meetingID, now.UnixMilli())
}

// TriggerInput is the payload the external scheduler hands to the trigger when a schedule fires.
type TriggerInput struct {
	MeetingID    string `json:"meetingId" msgpack:"meeting_id"`
	MeetingURL   string `json:"meetingUrl" msgpack:"meeting_url"`
	ScheduleName string `json:"scheduleName" msgpack:"schedule_name"`
	GroupName    string `json:"groupName" msgpack:"group_name"`
}

// CalendarEvent is the body of the calendar webhook.
type CalendarEvent struct {
	ID         string `json:"id"`
	StartTime  string `json:"startTime"`
	MeetingURL string `json:"meetingUrl"`
	// Description is searched for a meeting link when MeetingURL is empty.
	Description string `json:"description,omitempty"`
	// Recurrence is an optional RFC 5545 RRULE; StartTime is its first occurrence.
	Recurrence string `json:"recurrence,omitempty"`
}

// ScheduleOutcomeStatus tells the caller whether a trigger was created.
type ScheduleOutcomeStatus string

const (
	ScheduleOutcomeScheduled        ScheduleOutcomeStatus = "scheduled"
	ScheduleOutcomeAlreadyScheduled ScheduleOutcomeStatus = "already_scheduled"
)

// ScheduleOutcome is the result of a scheduling request.
type ScheduleOutcome struct {
	Status       ScheduleOutcomeStatus `json:"status"`
	MeetingID    string                `json:"meeting_id"`
	ScheduleName string                `json:"schedule_name,omitempty"`
	GroupName    string                `json:"group_name,omitempty"`
	FireAt       *time.Time            `json:"fire_at,omitempty"`
}
