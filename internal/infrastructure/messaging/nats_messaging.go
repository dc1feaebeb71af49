// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
)

// INatsConn is the NATS connection interface needed to serve request/reply subjects.
type INatsConn interface {
	IsConnected() bool
	QueueSubscribe(subj, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// NatsMessage adapts a NATS message to [domain.Message].
type NatsMessage struct {
	msg *nats.Msg
}

// NewNatsMessage wraps msg.
func NewNatsMessage(msg *nats.Msg) *NatsMessage {
	return &NatsMessage{msg: msg}
}

func (m *NatsMessage) Subject() string {
	return m.msg.Subject
}

func (m *NatsMessage) Data() []byte {
	return m.msg.Data
}

func (m *NatsMessage) HasReply() bool {
	return m.msg.Reply != ""
}

func (m *NatsMessage) Respond(data []byte) error {
	return m.msg.Respond(data)
}

// SubscribeHandler queue-subscribes handler to every subject. Each message is handled
// with a context derived from ctx.
func SubscribeHandler(ctx context.Context, conn INatsConn, queue string, handler domain.MessageHandler, subjects ...string) ([]*nats.Subscription, error) {
	subscriptions := make([]*nats.Subscription, 0, len(subjects))
	for _, subject := range subjects {
		sub, err := conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
			handler.HandleMessage(ctx, NewNatsMessage(msg))
		})
		if err != nil {
			for _, s := range subscriptions {
				if unsubErr := s.Unsubscribe(); unsubErr != nil {
					slog.WarnContext(ctx, "error unsubscribing", logging.ErrKey, unsubErr, "subject", s.Subject)
				}
			}
			return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
		}
		slog.DebugContext(ctx, "subscribed to NATS subject", "subject", subject, "queue", queue)
		subscriptions = append(subscriptions, sub)
	}
	return subscriptions, nil
}
