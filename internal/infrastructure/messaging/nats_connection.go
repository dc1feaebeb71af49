// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/constants"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NatsDialerConfig configures the sessions opened by NewNatsDialer.
type NatsDialerConfig struct {
	URL     string
	Name    string
	Timeout time.Duration
	// StreamMaxAge bounds how long an unconsumed command stays in the stream.
	StreamMaxAge time.Duration
	// DuplicateWindow is how long idempotency keys are remembered.
	DuplicateWindow time.Duration
}

// CommandStreamConfig returns the durable command stream definition.
func CommandStreamConfig(cfg NatsDialerConfig) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        constants.CommandStreamName,
		Description: "Commands for meeting bots",
		Subjects:    constants.CommandStreamSubjects,
		Retention:   jetstream.LimitsPolicy,
		Storage:     jetstream.FileStorage,
		MaxAge:      cfg.StreamMaxAge,
		Duplicates:  cfg.DuplicateWindow,
	}
}

// NewNatsDialer returns a Dialer opening NATS sessions with the client's own
// reconnect logic disabled; the gateway decides when to reconnect.
func NewNatsDialer(cfg NatsDialerConfig) Dialer {
	return func(ctx context.Context) (BusConnection, error) {
		closed := make(chan struct{})
		nc, err := nats.Connect(cfg.URL,
			nats.Name(cfg.Name),
			nats.Timeout(cfg.Timeout),
			nats.NoReconnect(),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					slog.WarnContext(ctx, "NATS bus disconnected", logging.ErrKey, err)
				}
			}),
			nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
				if s != nil {
					slog.ErrorContext(ctx, "async NATS error", logging.ErrKey, err, "subject", s.Subject)
					return
				}
				slog.ErrorContext(ctx, "async NATS error", logging.ErrKey, err)
			}),
			nats.ClosedHandler(func(_ *nats.Conn) {
				close(closed)
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("connect to %s: %w", cfg.URL, err)
		}

		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("jetstream: %w", err)
		}

		if _, err := js.CreateOrUpdateStream(ctx, CommandStreamConfig(cfg)); err != nil {
			nc.Close()
			return nil, fmt.Errorf("declare stream %s: %w", constants.CommandStreamName, err)
		}

		return &natsBusConnection{nc: nc, js: js, closed: closed}, nil
	}
}

type natsBusConnection struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	closed chan struct{}
}

func (c *natsBusConnection) PublishDurable(ctx context.Context, msg *nats.Msg, msgID string) error {
	var opts []jetstream.PublishOpt
	if msgID != "" {
		opts = append(opts, jetstream.WithMsgID(msgID))
	}
	ack, err := c.js.PublishMsg(ctx, msg, opts...)
	if err != nil {
		return err
	}
	if ack.Duplicate {
		slog.InfoContext(ctx, "duplicate command dropped by the stream", "subject", msg.Subject, "msg_id", msgID)
	}
	return nil
}

func (c *natsBusConnection) Publish(msg *nats.Msg) error {
	return c.nc.PublishMsg(msg)
}

func (c *natsBusConnection) Subscribe(subject string, handler nats.MsgHandler) (Subscription, error) {
	return c.nc.Subscribe(subject, handler)
}

func (c *natsBusConnection) Closed() <-chan struct{} {
	return c.closed
}

func (c *natsBusConnection) Close() {
	c.nc.Close()
}
