// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/constants"
)

// How a status answer was obtained.
const (
	communicationStore    = "state-store"
	communicationRPCDebug = "bus-rpc-debug"
)

type schedulerInfo struct {
	Status              string    `json:"status"`
	Environment         string    `json:"environment"`
	Timestamp           time.Time `json:"timestamp"`
	RequestedMeetingID  string    `json:"requestedMeetingId,omitempty"`
	CommunicationMethod string    `json:"communicationMethod,omitempty"`
}

type instancesInfo struct {
	models.InstanceCounts
	MaxConcurrentPerInstance int    `json:"maxConcurrentPerInstance"`
	Source                   string `json:"source"`
}

type botStatusResponse struct {
	models.BotStatusView
	Error     string             `json:"error,omitempty"`
	Scheduler schedulerInfo      `json:"scheduler"`
	Instances instancesInfo      `json:"instances"`
	ECS       *models.TaskCounts `json:"ecs"`
}

type missingMeetingResponse struct {
	Error     string             `json:"error"`
	Message   string             `json:"message"`
	Scheduler schedulerInfo      `json:"scheduler"`
	Instances instancesInfo      `json:"instances"`
	ECS       *models.TaskCounts `json:"ecs"`
}

type unavailableResponse struct {
	Status  models.BotStatus `json:"status"`
	Error   string           `json:"error"`
	Message string           `json:"message,omitempty"`
}

type recordingsResponse struct {
	Success     bool                       `json:"success"`
	Timestamp   time.Time                  `json:"timestamp"`
	Summary     models.RecordingsSummary   `json:"summary"`
	Recordings  []*models.RecordingListing `json:"recordings"`
	Environment string                     `json:"environment"`
	ECS         *models.TaskCounts         `json:"ecs"`
}

func (a *MeetingBotAPI) schedulerInfo(meetingID, method string) schedulerInfo {
	return schedulerInfo{
		Status:              "healthy",
		Environment:         a.config.Environment,
		Timestamp:           a.now(),
		RequestedMeetingID:  meetingID,
		CommunicationMethod: method,
	}
}

func newInstancesInfo(counts models.InstanceCounts) instancesInfo {
	return instancesInfo{
		InstanceCounts:           counts,
		MaxConcurrentPerInstance: constants.MaxConcurrentMeetingsPerInstance,
		Source:                   "scheduler",
	}
}

// BotStatus reports the status of a meeting's bot with the instance and task
// counts. By default the status is derived from the store; debug=true asks the bot.
func (a *MeetingBotAPI) BotStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	meetingID := strings.TrimSpace(query.Get("meeting_id"))
	debug := query.Get("debug") == "true" || query.Get("debug") == "1"

	if meetingID == "" {
		instances, tasks := a.autoscalingService.Snapshot(ctx)
		writeJSON(ctx, w, http.StatusBadRequest, missingMeetingResponse{
			Error:     "Missing meeting_id parameter",
			Message:   "Provide the meeting to look up with ?meeting_id=",
			Scheduler: a.schedulerInfo("", ""),
			Instances: newInstancesInfo(instances),
			ECS:       tasks,
		})
		return
	}

	switch result := a.statusService.GetStatus(ctx, meetingID, debug).(type) {
	case models.DerivedResult:
		instances, tasks := a.autoscalingService.Snapshot(ctx)
		body := botStatusResponse{
			BotStatusView: service.BuildStatusView(result.Record, result.Derived, a.now()),
			Scheduler:     a.schedulerInfo(meetingID, communicationStore),
			Instances:     newInstancesInfo(instances),
			ECS:           tasks,
		}
		code := http.StatusOK
		if result.Derived.Status == models.BotStatusRecorderUnavailable {
			code = http.StatusInternalServerError
			body.Error = "Bot recorder is unavailable"
		}
		writeJSON(ctx, w, code, body)

	case models.RPCResult:
		instances, tasks := a.autoscalingService.Snapshot(ctx)
		body := make(map[string]any, len(result.Response.Payload)+3)
		maps.Copy(body, result.Response.Payload)
		body["scheduler"] = a.schedulerInfo(meetingID, communicationRPCDebug)
		body["instances"] = newInstancesInfo(instances)
		body["ecs"] = tasks
		writeJSON(ctx, w, http.StatusOK, body)

	case models.NotFoundResult:
		writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			Error:   "Meeting not found",
			Message: "No meeting with ID: " + meetingID,
		})

	case models.UnavailableResult:
		writeJSON(ctx, w, http.StatusInternalServerError, unavailableResponse{
			Status:  models.BotStatusServiceUnavailable,
			Error:   "Meeting state is unavailable",
			Message: result.Err.Error(),
		})
	}
}

// Recordings lists every known recording with its listing status and summary.
func (a *MeetingBotAPI) Recordings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := a.recordingsService.ListRecordings(ctx)
	if err != nil {
		writeJSON(ctx, w, domain.HTTPStatus(err), errorResponse{
			Error:   "Failed to fetch recordings",
			Message: err.Error(),
		})
		return
	}

	writeJSON(ctx, w, http.StatusOK, recordingsResponse{
		Success:     true,
		Timestamp:   a.now(),
		Summary:     report.Summary,
		Recordings:  report.Recordings,
		Environment: a.config.Environment,
		ECS:         a.autoscalingService.TaskDetails(ctx),
	})
}

// ScaleStatus returns the inputs of the external scaling policy.
func (a *MeetingBotAPI) ScaleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := a.autoscalingService.ScaleStatus(ctx)
	if err != nil {
		writeError(ctx, w, err, "")
		return
	}

	writeJSON(ctx, w, http.StatusOK, status)
}
