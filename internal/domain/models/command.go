// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"strings"
)

// CommandType is the instruction sent to a meeting bot.
type CommandType string

// Commands understood by the meeting bot.
const (
	CommandStart  CommandType = "start"
	CommandStop   CommandType = "stop"
	CommandPause  CommandType = "pause"
	CommandResume CommandType = "resume"
	CommandStatus CommandType = "status"
)

// IsValid reports whether c is one of the known commands.
func (c CommandType) IsValid() bool {
	switch c {
	case CommandStart, CommandStop, CommandPause, CommandResume, CommandStatus:
		return true
	}
	return false
}

// IsDurable reports whether the command must survive a broker restart.
// Status probes are only meaningful while the caller is waiting for the answer.
func (c CommandType) IsDurable() bool {
	return c != CommandStatus
}

// Platform is the conferencing product hosting a meeting.
type Platform string

const (
	PlatformGoogleMeet Platform = "google-meet"
	PlatformTeams      Platform = "teams"
	PlatformZoom       Platform = "zoom"
	PlatformUnknown    Platform = "unknown"
)

// MeetingType selects the bot's processing pipeline.
type MeetingType string

const (
	MeetingTypeRegular   MeetingType = "regular"
	MeetingTypeBrainDump MeetingType = "brain-dump"
)

// StartRoutingKey is the routing key shared by every start command so that any idle bot can take it.
const StartRoutingKey = "start.meeting"

// MeetingCommand is the message published on the bus for a meeting bot.
type MeetingCommand struct {
	Command       CommandType `json:"command"`
	MeetingID     string      `json:"meetingId"`
	MeetingURL    string      `json:"meetingUrl,omitempty"`
	Platform      Platform    `json:"platform,omitempty"`
	Passcode      string      `json:"passcode,omitempty"`
	CompanionName string      `json:"companionName,omitempty"`
	MeetingType   MeetingType `json:"meetingType,omitempty"`
	CorrelationID string      `json:"correlationId,omitempty"`
	ReplyTo       string      `json:"replyTo,omitempty"`
}

// routingTokenReserved are the characters that split or match routing key tokens.
const routingTokenReserved = ".*> \t\r\n"

// IsRoutableMeetingID reports whether id can be used as a single routing key token.
func IsRoutableMeetingID(id string) bool {
	return strings.TrimSpace(id) != "" && !strings.ContainsAny(id, routingTokenReserved)
}

// AddressesMeeting reports whether the routing key of the command carries the meeting id.
func (c MeetingCommand) AddressesMeeting() bool {
	return c.Command != CommandStart
}

// RoutingKey returns the topic address of the command.
func (c MeetingCommand) RoutingKey() string {
	if c.Command == CommandStart {
		return StartRoutingKey
	}
	return fmt.Sprintf("meeting.%s.%s", c.MeetingID, c.Command)
}
