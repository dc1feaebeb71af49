// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"log/slog"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/middleware"
)

// CalendarWebhook schedules a bot start for a calendar event. A meeting that is
// already scheduled is answered with 200 and the already_scheduled outcome.
func (a *MeetingBotAPI) CalendarWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var event models.CalendarEvent
	if err := decodeBody(r, &event); err != nil {
		if raw, ok := middleware.GetRawBodyFromContext(ctx); ok {
			slog.WarnContext(ctx, "undecodable calendar webhook", "body", string(raw))
		}
		writeError(ctx, w, err, "")
		return
	}

	outcome, err := a.schedulerService.ScheduleStart(ctx, event)
	if err != nil {
		writeJSON(ctx, w, domain.HTTPStatus(err), errorResponse{
			Error:     "Failed to schedule meeting",
			Message:   err.Error(),
			MeetingID: event.ID,
		})
		return
	}

	writeJSON(ctx, w, http.StatusOK, outcome)
}
