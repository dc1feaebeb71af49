// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// UnknownBotID stands in for records written before the bot reported its id.
const UnknownBotID = "unknown"

// BotStatusView is the status of a bot as returned to callers.
type BotStatusView struct {
	Status    BotStatus          `json:"status"`
	BotID     string             `json:"botId"`
	Timestamp time.Time          `json:"timestamp"`
	Core      BotCoreState       `json:"core"`
	Meeting   BotMeetingSnapshot `json:"meeting"`
}

// BotCoreState holds the bot flags that can be told from the stored record.
// IsClosing and IsFinalizing are only known to the bot itself.
type BotCoreState struct {
	IsBotRunning bool `json:"isBotRunning"`
	IsBotPaused  bool `json:"isBotPaused"`
	HasJoined    bool `json:"hasJoined"`
	IsClosing    bool `json:"isClosing"`
	IsFinalizing bool `json:"isFinalizing"`
}

// BotMeetingSnapshot describes the meeting the bot records.
type BotMeetingSnapshot struct {
	MeetingID       string          `json:"meetingId"`
	IsActiveMeeting bool            `json:"isActiveMeeting"`
	StartedAt       *time.Time      `json:"startedAt"`
	EndedAt         *time.Time      `json:"endedAt"`
	LastHeartbeat   *time.Time      `json:"lastHeartbeat"`
	RecordingStatus RecordingStatus `json:"recordingStatus"`
}
