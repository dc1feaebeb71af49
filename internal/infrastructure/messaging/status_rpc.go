// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/akamensky/base58"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/infrastructure/metrics"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/constants"
	"github.com/nats-io/nats.go"
)

// commandPublisher is the part of the gateway the status client needs.
type commandPublisher interface {
	PublishCommand(ctx context.Context, cmd models.MeetingCommand, opts ...domain.PublishOption) error
}

type statusReply struct {
	response *models.RPCStatusResponse
}

type pendingEntry struct {
	meetingID string
	reply     chan statusReply
	timer     *time.Timer
}

// StatusRPCClient asks running bots for their live status. Requests are matched to
// answers on the shared reply subject by correlation id; every pending request owns
// its timer and is removed from the table exactly once.
type StatusRPCClient struct {
	publisher commandPublisher
	timeout   time.Duration
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingEntry
}

// NewStatusRPCClient creates a client publishing through publisher.
func NewStatusRPCClient(publisher commandPublisher, timeout time.Duration) *StatusRPCClient {
	if timeout <= 0 {
		timeout = constants.DefaultStatusRPCTimeout
	}
	return &StatusRPCClient{
		publisher: publisher,
		timeout:   timeout,
		now:       time.Now,
		pending:   make(map[string]*pendingEntry),
	}
}

// PendingStatus is one outstanding status request.
type PendingStatus struct {
	CorrelationID string
	client        *StatusRPCClient
	entry         *pendingEntry
}

// NewCorrelationID returns an unguessable id of the form status-<unix ms>-<base58>.
func NewCorrelationID(now time.Time) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("status-%d-%s", now.UnixMilli(), base58.Encode(buf)), nil
}

// Subscribe attaches the reply handler to conn. Register it with the gateway's
// OnReady so the subscription follows every new session.
func (c *StatusRPCClient) Subscribe(_ context.Context, conn BusConnection) error {
	_, err := conn.Subscribe(constants.StatusReplySubject, c.HandleResponse)
	return err
}

// Send registers a pending request and publishes the status probe.
func (c *StatusRPCClient) Send(ctx context.Context, meetingID string) (*PendingStatus, error) {
	correlationID, err := NewCorrelationID(c.now())
	if err != nil {
		return nil, domain.NewInternalError("failed to generate correlation id", err)
	}

	entry := &pendingEntry{
		meetingID: meetingID,
		reply:     make(chan statusReply, 1),
	}

	c.mu.Lock()
	c.pending[correlationID] = entry
	entry.timer = time.AfterFunc(c.timeout, func() {
		if c.remove(correlationID) != nil {
			metrics.StatusRequests.WithLabelValues(metrics.OutcomeTimeout).Inc()
			close(entry.reply)
		}
	})
	metrics.StatusRequestsPending.Set(float64(len(c.pending)))
	c.mu.Unlock()

	err = c.publisher.PublishCommand(ctx, models.MeetingCommand{
		Command:       models.CommandStatus,
		MeetingID:     meetingID,
		CorrelationID: correlationID,
		ReplyTo:       constants.StatusReplySubject,
	})
	if err != nil {
		if removed := c.remove(correlationID); removed != nil {
			removed.timer.Stop()
		}
		metrics.StatusRequests.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	slog.DebugContext(ctx, "status request sent", "meeting_id", meetingID, "correlation_id", correlationID)
	return &PendingStatus{CorrelationID: correlationID, client: c, entry: entry}, nil
}

// Wait blocks until the bot answers, the request times out or ctx is done.
func (p *PendingStatus) Wait(ctx context.Context) (*models.RPCStatusResponse, error) {
	select {
	case reply, ok := <-p.entry.reply:
		if !ok {
			return nil, domain.ErrStatusTimeout
		}
		return reply.response, nil
	case <-ctx.Done():
		if removed := p.client.remove(p.CorrelationID); removed != nil {
			removed.timer.Stop()
		}
		return nil, ctx.Err()
	}
}

// QueryStatus sends a status request and waits for the answer.
func (c *StatusRPCClient) QueryStatus(ctx context.Context, meetingID string) (*models.RPCStatusResponse, error) {
	pending, err := c.Send(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	return pending.Wait(ctx)
}

// PendingCount returns the number of requests waiting for an answer.
func (c *StatusRPCClient) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// remove takes the entry out of the table. Only the first caller gets it.
func (c *StatusRPCClient) remove(correlationID string) *pendingEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.pending[correlationID]
	if !ok {
		return nil
	}
	delete(c.pending, correlationID)
	metrics.StatusRequestsPending.Set(float64(len(c.pending)))
	return entry
}

// HandleResponse resolves the pending request a reply belongs to. Replies for unknown,
// expired or already answered requests are logged and dropped.
func (c *StatusRPCClient) HandleResponse(msg *nats.Msg) {
	ctx := context.Background()

	var payload map[string]any
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		slog.WarnContext(ctx, "discarding undecodable status response", logging.ErrKey, err)
		return
	}

	correlationID, _ := payload["correlationId"].(string)
	if correlationID == "" && msg.Header != nil {
		correlationID = msg.Header.Get(constants.CorrelationIDHeader)
	}
	if correlationID == "" {
		slog.WarnContext(ctx, "discarding status response without correlation id")
		return
	}

	entry := c.remove(correlationID)
	if entry == nil {
		slog.DebugContext(ctx, "discarding status response for unknown request", "correlation_id", correlationID)
		return
	}
	entry.timer.Stop()

	meetingID, _ := payload["meetingId"].(string)
	if meetingID == "" {
		meetingID = entry.meetingID
	}

	metrics.StatusRequests.WithLabelValues(metrics.OutcomeAnswered).Inc()
	entry.reply <- statusReply{response: &models.RPCStatusResponse{
		CorrelationID: correlationID,
		MeetingID:     meetingID,
		Payload:       payload,
	}}
}
