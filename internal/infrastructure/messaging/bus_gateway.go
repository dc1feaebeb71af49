// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/infrastructure/metrics"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/constants"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// BusState is the state of the gateway's broker session.
type BusState int32

const (
	BusDisconnected BusState = iota
	BusConnecting
	BusReady
)

func (s BusState) String() string {
	switch s {
	case BusDisconnected:
		return "disconnected"
	case BusConnecting:
		return "connecting"
	case BusReady:
		return "ready"
	}
	return fmt.Sprintf("BusState(%d)", int32(s))
}

// Subscription is an active subscription on a BusConnection.
type Subscription interface {
	Unsubscribe() error
}

// BusConnection is one established broker session.
type BusConnection interface {
	// PublishDurable publishes msg to the durable command stream. A non-empty msgID
	// lets the broker drop duplicates.
	PublishDurable(ctx context.Context, msg *nats.Msg, msgID string) error
	// Publish publishes msg without persistence.
	Publish(msg *nats.Msg) error
	Subscribe(subject string, handler nats.MsgHandler) (Subscription, error)
	// Closed is closed when the session is lost for good.
	Closed() <-chan struct{}
	Close()
}

// Dialer opens a new broker session.
type Dialer func(ctx context.Context) (BusConnection, error)

// ReadyHook runs after every successful connect, before the gateway reports Ready.
type ReadyHook func(ctx context.Context, conn BusConnection) error

// BusGateway owns the process' single broker session. Run drives the
// Disconnected -> Connecting -> Ready state machine and reconnects after a fixed
// delay whenever the session is lost. Publishing never waits for a session.
type BusGateway struct {
	dial           Dialer
	reconnectDelay time.Duration

	mu     sync.RWMutex
	state  BusState
	conn   BusConnection
	hooks  []ReadyHook
	readyC chan struct{}
}

// GatewayOption configures a BusGateway.
type GatewayOption func(*BusGateway)

// WithReconnectDelay sets the pause between connection attempts.
func WithReconnectDelay(d time.Duration) GatewayOption {
	return func(g *BusGateway) {
		if d > 0 {
			g.reconnectDelay = d
		}
	}
}

// NewBusGateway creates a gateway in the Disconnected state.
func NewBusGateway(dial Dialer, opts ...GatewayOption) *BusGateway {
	g := &BusGateway{
		dial:           dial,
		reconnectDelay: constants.DefaultBusReconnectDelay,
		readyC:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// OnReady registers a hook run on every new session. Register hooks before Run.
func (g *BusGateway) OnReady(hook ReadyHook) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hooks = append(g.hooks, hook)
}

// State returns the current session state.
func (g *BusGateway) State() BusState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// IsReady reports whether commands can be published.
func (g *BusGateway) IsReady() bool {
	return g.State() == BusReady
}

// WaitReady blocks until the gateway is Ready or ctx is done.
func (g *BusGateway) WaitReady(ctx context.Context) error {
	g.mu.RLock()
	readyC := g.readyC
	g.mu.RUnlock()

	select {
	case <-readyC:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", domain.ErrBusNotReady, ctx.Err())
	}
}

func (g *BusGateway) setState(ctx context.Context, state BusState, conn BusConnection) {
	g.mu.Lock()
	previous := g.state
	g.state = state
	g.conn = conn
	switch {
	case state == BusReady:
		close(g.readyC)
	case previous == BusReady:
		g.readyC = make(chan struct{})
	}
	g.mu.Unlock()

	metrics.BusState.Set(float64(state))
	if previous != state {
		slog.DebugContext(ctx, "bus state changed", "from", previous.String(), "to", state.String())
	}
}

// Run connects and keeps the session alive until ctx is done.
func (g *BusGateway) Run(ctx context.Context) error {
	for {
		g.setState(ctx, BusConnecting, nil)

		conn, err := g.connect(ctx)
		if err != nil {
			g.setState(ctx, BusDisconnected, nil)
			slog.WarnContext(ctx, "bus connection failed, retrying",
				logging.ErrKey, err, "retry_in", g.reconnectDelay.String())
			if !g.sleep(ctx) {
				return nil
			}
			continue
		}

		g.setState(ctx, BusReady, conn)
		metrics.BusConnects.Inc()
		slog.InfoContext(ctx, "bus connection ready")

		select {
		case <-ctx.Done():
			g.setState(ctx, BusDisconnected, nil)
			conn.Close()
			return nil
		case <-conn.Closed():
			g.setState(ctx, BusDisconnected, nil)
			slog.WarnContext(ctx, "bus connection lost, reconnecting",
				"retry_in", g.reconnectDelay.String())
			if !g.sleep(ctx) {
				return nil
			}
		}
	}
}

func (g *BusGateway) connect(ctx context.Context) (BusConnection, error) {
	conn, err := g.dial(ctx)
	if err != nil {
		return nil, err
	}

	g.mu.RLock()
	hooks := append([]ReadyHook(nil), g.hooks...)
	g.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ready hook: %w", err)
		}
	}
	return conn, nil
}

// sleep waits for the reconnect delay. It returns false when ctx ended first.
func (g *BusGateway) sleep(ctx context.Context) bool {
	timer := time.NewTimer(g.reconnectDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (g *BusGateway) readyConn() (BusConnection, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.conn, g.state == BusReady && g.conn != nil
}

// ValidateMeetingID checks that id can be used as a single routing key token.
func ValidateMeetingID(id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.NewValidationError("meeting id is required", domain.ErrValidationFailed)
	}
	if !models.IsRoutableMeetingID(id) {
		return domain.NewValidationError(
			fmt.Sprintf("meeting id %q must not contain '.', '*', '>' or whitespace", id), domain.ErrValidationFailed)
	}
	return nil
}

// PublishCommand publishes cmd under its routing key. Lifecycle commands go to the
// durable stream; status probes are published without persistence. It fails with
// [domain.ErrBusNotReady] unless the session is Ready.
func (g *BusGateway) PublishCommand(ctx context.Context, cmd models.MeetingCommand, opts ...domain.PublishOption) error {
	if !cmd.Command.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("unknown command %q", cmd.Command), domain.ErrValidationFailed)
	}
	if strings.TrimSpace(cmd.MeetingID) == "" {
		return domain.NewValidationError("meeting id is required", domain.ErrValidationFailed)
	}
	// Start commands share one routing key, so only addressed commands constrain the id.
	if cmd.AddressesMeeting() {
		if err := ValidateMeetingID(cmd.MeetingID); err != nil {
			return err
		}
	}

	conn, ok := g.readyConn()
	if !ok {
		metrics.CommandsPublished.WithLabelValues(string(cmd.Command), metrics.OutcomeNotReady).Inc()
		return domain.ErrBusNotReady
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return domain.NewInternalError("failed to encode command", err)
	}

	msg := nats.NewMsg(constants.SubjectPrefix + cmd.RoutingKey())
	msg.Data = data
	if cmd.CorrelationID != "" {
		msg.Header.Set(constants.CorrelationIDHeader, cmd.CorrelationID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if cmd.Command.IsDurable() {
		options := domain.ApplyPublishOptions(opts...)
		err = conn.PublishDurable(ctx, msg, options.IdempotencyKey)
	} else {
		err = conn.Publish(msg)
	}
	if err != nil {
		metrics.CommandsPublished.WithLabelValues(string(cmd.Command), metrics.OutcomeError).Inc()
		slog.ErrorContext(ctx, "error publishing command", logging.ErrKey, err,
			"subject", msg.Subject, "command", cmd.Command, logging.PriorityCritical())
		return domain.NewInternalError("failed to publish command", err)
	}

	metrics.CommandsPublished.WithLabelValues(string(cmd.Command), metrics.OutcomeSuccess).Inc()
	slog.DebugContext(ctx, "published command", "subject", msg.Subject, "command", cmd.Command)
	return nil
}
