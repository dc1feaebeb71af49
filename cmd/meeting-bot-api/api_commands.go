// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/utils"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/constants"
	pkgutils "github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/utils"
)

type startMeetingRequest struct {
	MeetURL       string `json:"meetUrl"`
	MeetingID     string `json:"meetingId"`
	LegacyID      string `json:"meeting_id"`
	Passcode      string `json:"passcode"`
	CompanionName string `json:"companionName"`
	MeetingType   string `json:"meetingType"`
}

type meetingRequest struct {
	MeetingID string `json:"meeting_id"`
}

type commandResponse struct {
	Status    string `json:"status"`
	MeetingID string `json:"meeting_id"`
}

type toggleResponse struct {
	Status          string                 `json:"status"`
	MeetingID       string                 `json:"meeting_id"`
	DynamoDBUpdated bool                   `json:"dynamodb_updated"`
	PreviousStatus  models.RecordingStatus `json:"previous_status"`
}

// StartMeeting queues a start command for any idle bot.
func (a *MeetingBotAPI) StartMeeting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body startMeetingRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(ctx, w, err, "")
		return
	}

	meetingID := pkgutils.CoalesceString(strings.TrimSpace(body.MeetingID), strings.TrimSpace(body.LegacyID))

	result, err := a.commandService.StartMeeting(ctx, service.StartMeetingRequest{
		MeetingURL:     body.MeetURL,
		MeetingID:      meetingID,
		Passcode:       body.Passcode,
		CompanionName:  body.CompanionName,
		MeetingType:    body.MeetingType,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(constants.IdempotencyKeyHeader)),
	})
	if errors.Is(err, domain.ErrUnsupportedPlatform) {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			Error:         "Unsupported meeting platform",
			Message:       "The meeting URL does not belong to a supported platform",
			SupportedURLs: utils.SupportedMeetingURLs,
		})
		return
	}
	if err != nil {
		writeError(ctx, w, err, meetingID)
		return
	}

	writeJSON(ctx, w, http.StatusOK, commandResponse{Status: result.Status, MeetingID: result.MeetingID})
}

// PauseMeeting pauses the recording of a live meeting.
func (a *MeetingBotAPI) PauseMeeting(w http.ResponseWriter, r *http.Request) {
	a.toggleRecording(w, r, "pause", a.commandService.PauseMeeting)
}

// ResumeMeeting resumes a paused recording.
func (a *MeetingBotAPI) ResumeMeeting(w http.ResponseWriter, r *http.Request) {
	a.toggleRecording(w, r, "resume", a.commandService.ResumeMeeting)
}

func (a *MeetingBotAPI) toggleRecording(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	run func(ctx context.Context, meetingID string) (*service.CommandResult, error),
) {
	ctx := r.Context()

	var body meetingRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(ctx, w, err, "")
		return
	}
	meetingID := strings.TrimSpace(body.MeetingID)

	result, err := run(ctx, meetingID)
	var guardErr *service.GuardError
	if errors.As(err, &guardErr) {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			Error:     "Cannot " + action + " meeting",
			Reason:    guardErr.Reason,
			MeetingID: meetingID,
		})
		return
	}
	if err != nil {
		writeError(ctx, w, err, meetingID)
		return
	}

	writeJSON(ctx, w, http.StatusOK, toggleResponse{
		Status:          result.Status,
		MeetingID:       result.MeetingID,
		DynamoDBUpdated: result.StoreUpdated,
		PreviousStatus:  result.PreviousStatus,
	})
}

// StopMeeting asks the meeting's bot to leave.
func (a *MeetingBotAPI) StopMeeting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body meetingRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(ctx, w, err, "")
		return
	}
	meetingID := strings.TrimSpace(body.MeetingID)

	result, err := a.commandService.StopMeeting(ctx, meetingID)
	if err != nil {
		writeError(ctx, w, err, meetingID)
		return
	}

	writeJSON(ctx, w, http.StatusOK, commandResponse{Status: result.Status, MeetingID: result.MeetingID})
}
