// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	goahttp "goa.design/goa/v3/http"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/constants"
)

// busReadiness reports whether the command bus session is usable.
type busReadiness interface {
	IsReady() bool
}

// MeetingBotAPI serves the control plane's HTTP endpoints.
type MeetingBotAPI struct {
	bus                busReadiness
	commandService     *service.CommandService
	statusService      *service.StatusService
	recordingsService  *service.RecordingsService
	schedulerService   *service.SchedulerService
	autoscalingService *service.AutoscalingService
	config             service.ServiceConfig
	now                func() time.Time
}

// NewMeetingBotAPI creates a new MeetingBotAPI.
func NewMeetingBotAPI(
	bus busReadiness,
	commandService *service.CommandService,
	statusService *service.StatusService,
	recordingsService *service.RecordingsService,
	schedulerService *service.SchedulerService,
	autoscalingService *service.AutoscalingService,
	config service.ServiceConfig,
) *MeetingBotAPI {
	return &MeetingBotAPI{
		bus:                bus,
		commandService:     commandService,
		statusService:      statusService,
		recordingsService:  recordingsService,
		schedulerService:   schedulerService,
		autoscalingService: autoscalingService,
		config:             config,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error         string   `json:"error"`
	Message       string   `json:"message,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	MeetingID     string   `json:"meeting_id,omitempty"`
	SupportedURLs []string `json:"supportedUrls,omitempty"`
}

// writeJSON encodes body with the goa response encoder.
func writeJSON(ctx context.Context, w http.ResponseWriter, code int, body any) {
	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	encoder := goahttp.ResponseEncoder(ctx, w)
	w.WriteHeader(code)
	if err := encoder.Encode(body); err != nil {
		slog.ErrorContext(ctx, "error encoding response", logging.ErrKey, err)
	}
}

// writeError answers with the status code of err's domain type.
func writeError(ctx context.Context, w http.ResponseWriter, err error, meetingID string) {
	code := domain.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request failed", logging.ErrKey, err, "status", code)
	} else {
		slog.WarnContext(ctx, "request rejected", logging.ErrKey, err, "status", code)
	}
	writeJSON(ctx, w, code, errorResponse{Error: err.Error(), MeetingID: meetingID})
}

// decodeBody decodes the JSON request body into body. An empty body decodes to
// the zero value.
func decodeBody(r *http.Request, body any) error {
	if err := goahttp.RequestDecoder(r).Decode(body); err != nil && !errors.Is(err, io.EOF) {
		return domain.NewValidationError("invalid JSON body", err)
	}
	return nil
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Health answers healthy once the command bus is connected.
func (a *MeetingBotAPI) Health(w http.ResponseWriter, r *http.Request) {
	if a.bus == nil || !a.bus.IsReady() {
		writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{
			Status: "unhealthy",
			Error:  domain.ErrBusNotReady.Error(),
		})
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "healthy"})
}

// Readyz checks if the service is able to take inbound requests.
func (a *MeetingBotAPI) Readyz(w http.ResponseWriter, _ *http.Request) {
	if !a.ServiceReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(domain.ErrServiceUnavailable.Error() + "\n"))
		return
	}
	_, _ = w.Write([]byte("OK\n"))
}

// Livez checks if the service is alive.
func (a *MeetingBotAPI) Livez(w http.ResponseWriter, _ *http.Request) {
	// This always returns as long as the service is still running. As this
	// endpoint is expected to be used as a Kubernetes liveness check, this
	// service must likewise self-detect non-recoverable errors and
	// self-terminate.
	_, _ = w.Write([]byte("OK\n"))
}

// ServiceReady reports whether every service is wired and the bus is connected.
func (a *MeetingBotAPI) ServiceReady() bool {
	return a.bus != nil && a.bus.IsReady() &&
		a.commandService != nil && a.commandService.ServiceReady() &&
		a.statusService != nil && a.statusService.ServiceReady() &&
		a.recordingsService != nil && a.recordingsService.ServiceReady() &&
		a.schedulerService != nil && a.schedulerService.ServiceReady() &&
		a.autoscalingService != nil && a.autoscalingService.ServiceReady()
}
