// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// BotStatus is the canonical status reported to callers of the status endpoints.
type BotStatus string

const (
	BotStatusFinished            BotStatus = "finished"
	BotStatusNotAdmitted         BotStatus = "not_admitted"
	BotStatusPaused              BotStatus = "paused"
	BotStatusWaitingToJoin       BotStatus = "waiting_to_join"
	BotStatusInMeeting           BotStatus = "in_meeting"
	BotStatusRecorderUnavailable BotStatus = "recorder_unavailable"
	BotStatusUnknown             BotStatus = "unknown"
	BotStatusNotFound            BotStatus = "not_found"
	BotStatusServiceUnavailable  BotStatus = "service_unavailable"
)

// DerivedStatus is the status computed from a persisted record at a point in time.
type DerivedStatus struct {
	Status       BotStatus
	IsActive     bool
	HasHeartbeat bool
	HeartbeatAge time.Duration
}

// StatusResult is the outcome of a status lookup. It is one of DerivedResult,
// RPCResult, NotFoundResult or UnavailableResult.
type StatusResult interface {
	statusResult()
}

// DerivedResult is a status computed from the state store.
type DerivedResult struct {
	Record  *MeetingStateRecord
	Derived DerivedStatus
}

// RPCResult is a live answer from the bot itself.
type RPCResult struct {
	Response *RPCStatusResponse
}

// NotFoundResult means no state record exists for the meeting.
type NotFoundResult struct {
	MeetingID string
}

// UnavailableResult means the state could not be read.
type UnavailableResult struct {
	Err error
}

func (DerivedResult) statusResult()     {}
func (RPCResult) statusResult()         {}
func (NotFoundResult) statusResult()    {}
func (UnavailableResult) statusResult() {}

// RPCStatusResponse is a status answer published by a bot on the reply subject.
type RPCStatusResponse struct {
	CorrelationID string
	MeetingID     string
	// Payload is the bot's answer as sent, passed through to the caller.
	Payload map[string]any
}

// InstanceCounts aggregates how many bot instances are busy.
type InstanceCounts struct {
	Active  int    `json:"active"`
	Total   int    `json:"total"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// TaskCounts is the orchestration platform's view of the bot service.
type TaskCounts struct {
	Desired     int32  `json:"desired"`
	Running     int32  `json:"running"`
	Pending     int32  `json:"pending"`
	ServiceName string `json:"serviceName"`
	ClusterName string `json:"clusterName"`
	Status      string `json:"status,omitempty"`
	Error       string `json:"error,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Capacity relates active meetings to the provisioned bot tasks.
type Capacity struct {
	MaxInstances       int `json:"max_instances"`
	MinInstances       int `json:"min_instances"`
	UtilizationPercent int `json:"utilization_percent"`
	AvailableSlots     int `json:"available_slots"`
}

// ScaleStatus is the read-only input handed to the external scaling policy.
type ScaleStatus struct {
	Environment string         `json:"environment"`
	Meetings    InstanceCounts `json:"meetings"`
	Tasks       *TaskCounts    `json:"ecs"`
	Capacity    Capacity       `json:"capacity"`
}
