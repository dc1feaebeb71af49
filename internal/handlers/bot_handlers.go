// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/constants"
)

// BotHandler answers bot status requests from other services over NATS.
type BotHandler struct {
	statusService      *service.StatusService
	autoscalingService *service.AutoscalingService
	now                func() time.Time
}

// NewBotHandler creates a new BotHandler.
func NewBotHandler(statusService *service.StatusService, autoscalingService *service.AutoscalingService) *BotHandler {
	return &BotHandler{
		statusService:      statusService,
		autoscalingService: autoscalingService,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

func (h *BotHandler) HandlerReady() bool {
	return h.statusService != nil && h.statusService.ServiceReady() &&
		h.autoscalingService != nil && h.autoscalingService.ServiceReady()
}

// Subjects lists the subjects the handler answers on.
func (h *BotHandler) Subjects() []string {
	return []string{constants.BotStatusSubject, constants.ActiveInstancesSubject}
}

// HandleMessage implements domain.MessageHandler interface
func (h *BotHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	slog.DebugContext(ctx, "handling NATS message")

	handlers := map[string]func(ctx context.Context, msg domain.Message) ([]byte, error){
		constants.BotStatusSubject:       h.HandleBotStatus,
		constants.ActiveInstancesSubject: h.HandleActiveInstances,
	}

	handler, ok := handlers[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown subject")
		respond(ctx, msg, nil)
		return
	}

	response, err := handler(ctx, msg)
	if err != nil {
		slog.ErrorContext(ctx, "error handling message", logging.ErrKey, err)
		respond(ctx, msg, nil)
		return
	}

	respond(ctx, msg, response)
}

func respond(ctx context.Context, msg domain.Message, response []byte) {
	if !msg.HasReply() {
		slog.DebugContext(ctx, "handled NATS message (no reply expected)")
		return
	}
	if err := msg.Respond(response); err != nil {
		slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
		return
	}
	slog.DebugContext(ctx, "responded to NATS message", "response_size", len(response))
}

// notFoundReply is the answer for meetings without a state record.
type notFoundReply struct {
	MeetingID string           `json:"meeting_id"`
	Status    models.BotStatus `json:"status"`
}

// HandleBotStatus answers with the status of the meeting id carried in the message body.
func (h *BotHandler) HandleBotStatus(ctx context.Context, msg domain.Message) ([]byte, error) {
	if h.statusService == nil || !h.statusService.ServiceReady() {
		return nil, domain.ErrServiceUnavailable
	}

	meetingID := strings.TrimSpace(string(msg.Data()))
	if meetingID == "" {
		return nil, domain.NewValidationError("missing meeting id")
	}
	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", meetingID))

	switch result := h.statusService.GetStatus(ctx, meetingID, false).(type) {
	case models.DerivedResult:
		return json.Marshal(service.BuildStatusView(result.Record, result.Derived, h.now()))
	case models.NotFoundResult:
		return json.Marshal(notFoundReply{MeetingID: meetingID, Status: models.BotStatusNotFound})
	case models.UnavailableResult:
		return nil, fmt.Errorf("reading meeting state: %w", result.Err)
	default:
		return nil, fmt.Errorf("unexpected status result %T", result)
	}
}

// HandleActiveInstances answers with the current instance counts.
func (h *BotHandler) HandleActiveInstances(ctx context.Context, _ domain.Message) ([]byte, error) {
	if h.autoscalingService == nil || !h.autoscalingService.ServiceReady() {
		return nil, domain.ErrServiceUnavailable
	}
	return json.Marshal(h.autoscalingService.CountActive(ctx))
}
