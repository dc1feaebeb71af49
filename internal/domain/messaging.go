// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
)

// Message represents a domain message interface
type Message interface {
	Subject() string
	Data() []byte
	Respond(data []byte) error
	HasReply() bool
}

// MessageHandler defines how the service handles incoming messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandlerReady() bool
}

// PublishOptions tune a single command publish.
type PublishOptions struct {
	// IdempotencyKey lets the broker drop duplicates of the same command within its de-duplication window.
	IdempotencyKey string
}

// PublishOption configures PublishOptions.
type PublishOption func(*PublishOptions)

// WithIdempotencyKey sets the de-duplication key of a command.
func WithIdempotencyKey(key string) PublishOption {
	return func(o *PublishOptions) {
		o.IdempotencyKey = key
	}
}

// ApplyPublishOptions folds opts into a PublishOptions value.
func ApplyPublishOptions(opts ...PublishOption) PublishOptions {
	var o PublishOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CommandPublisher is the single writer of bot commands to the bus.
type CommandPublisher interface {
	PublishCommand(ctx context.Context, cmd models.MeetingCommand, opts ...PublishOption) error
	IsReady() bool
}

// StatusRequester asks a running bot for its live status.
type StatusRequester interface {
	QueryStatus(ctx context.Context, meetingID string) (*models.RPCStatusResponse, error)
}
