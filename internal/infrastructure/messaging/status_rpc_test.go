// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/constants"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturePublisher collects published status probes.
type capturePublisher struct {
	mu       sync.Mutex
	commands []models.MeetingCommand
	sent     chan models.MeetingCommand
	err      error
}

func newCapturePublisher(buffer int) *capturePublisher {
	return &capturePublisher{sent: make(chan models.MeetingCommand, buffer)}
}

func (p *capturePublisher) PublishCommand(_ context.Context, cmd models.MeetingCommand, _ ...domain.PublishOption) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	p.commands = append(p.commands, cmd)
	p.mu.Unlock()
	p.sent <- cmd
	return nil
}

func answer(t *testing.T, client *StatusRPCClient, cmd models.MeetingCommand, extra map[string]any) {
	t.Helper()
	body := map[string]any{
		"correlationId": cmd.CorrelationID,
		"meetingId":     cmd.MeetingID,
		"status":        "recording",
	}
	for k, v := range extra {
		body[k] = v
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	client.HandleResponse(&nats.Msg{Subject: constants.StatusReplySubject, Data: data})
}

func TestNewCorrelationID(t *testing.T) {
	now := time.UnixMilli(1718000000000)
	pattern := regexp.MustCompile(`^status-1718000000000-[1-9A-HJ-NP-Za-km-z]+$`)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := NewCorrelationID(now)
		require.NoError(t, err)
		assert.Regexp(t, pattern, id)
		assert.False(t, seen[id], "correlation ids must not repeat")
		seen[id] = true
	}
}

func TestStatusRPCClient_QueryStatus(t *testing.T) {
	publisher := newCapturePublisher(1)
	client := NewStatusRPCClient(publisher, time.Second)

	go func() {
		cmd := <-publisher.sent
		answer(t, client, cmd, map[string]any{"participants": 3.0})
	}()

	response, err := client.QueryStatus(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, "m-1", response.MeetingID)
	assert.Equal(t, "recording", response.Payload["status"])
	assert.Equal(t, 3.0, response.Payload["participants"])
	assert.Equal(t, 0, client.PendingCount())

	require.Len(t, publisher.commands, 1)
	probe := publisher.commands[0]
	assert.Equal(t, models.CommandStatus, probe.Command)
	assert.Equal(t, constants.StatusReplySubject, probe.ReplyTo)
	assert.Equal(t, response.CorrelationID, probe.CorrelationID)
}

func TestStatusRPCClient_ConcurrentRequestsAnsweredInReverse(t *testing.T) {
	const requests = 100
	publisher := newCapturePublisher(requests)
	client := NewStatusRPCClient(publisher, 5*time.Second)

	go func() {
		probes := make([]models.MeetingCommand, 0, requests)
		for len(probes) < requests {
			probes = append(probes, <-publisher.sent)
		}
		for i := len(probes) - 1; i >= 0; i-- {
			answer(t, client, probes[i], nil)
		}
	}()

	var wg sync.WaitGroup
	errs := make(chan error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(meetingID string) {
			defer wg.Done()
			response, err := client.QueryStatus(context.Background(), meetingID)
			if err != nil {
				errs <- err
				return
			}
			if response.MeetingID != meetingID {
				errs <- fmt.Errorf("request for %s resolved with answer for %s", meetingID, response.MeetingID)
			}
		}(fmt.Sprintf("m-%d", i))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, 0, client.PendingCount())
}

func TestStatusRPCClient_Timeout(t *testing.T) {
	publisher := newCapturePublisher(1)
	client := NewStatusRPCClient(publisher, 20*time.Millisecond)

	start := time.Now()
	response, err := client.QueryStatus(context.Background(), "m-1")

	assert.Nil(t, response)
	assert.ErrorIs(t, err, domain.ErrStatusTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, 0, client.PendingCount())

	// a late answer is dropped
	answer(t, client, <-publisher.sent, nil)
	assert.Equal(t, 0, client.PendingCount())
}

func TestStatusRPCClient_PublishFailureRemovesEntry(t *testing.T) {
	publisher := newCapturePublisher(1)
	publisher.err = domain.ErrBusNotReady
	client := NewStatusRPCClient(publisher, time.Second)

	_, err := client.QueryStatus(context.Background(), "m-1")

	assert.ErrorIs(t, err, domain.ErrBusNotReady)
	assert.Equal(t, 0, client.PendingCount())
}

func TestStatusRPCClient_ContextCancelled(t *testing.T) {
	publisher := newCapturePublisher(1)
	client := NewStatusRPCClient(publisher, time.Minute)

	pending, err := client.Send(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, 1, client.PendingCount())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pending.Wait(ctx)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, client.PendingCount())
}

func TestStatusRPCClient_HandleResponse(t *testing.T) {
	publisher := newCapturePublisher(4)
	client := NewStatusRPCClient(publisher, time.Second)

	pending, err := client.Send(context.Background(), "m-1")
	require.NoError(t, err)

	// malformed, unknown and id-less answers leave the request pending
	client.HandleResponse(&nats.Msg{Data: []byte("not json")})
	client.HandleResponse(&nats.Msg{Data: []byte(`{"status":"recording"}`)})
	client.HandleResponse(&nats.Msg{Data: []byte(`{"correlationId":"status-0-unknown"}`)})
	assert.Equal(t, 1, client.PendingCount())

	// the correlation id may travel in the header only
	msg := nats.NewMsg(constants.StatusReplySubject)
	msg.Header.Set(constants.CorrelationIDHeader, pending.CorrelationID)
	msg.Data = []byte(`{"status":"paused"}`)
	client.HandleResponse(msg)

	response, err := pending.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "m-1", response.MeetingID, "meeting id falls back to the request")
	assert.Equal(t, "paused", response.Payload["status"])

	// duplicate answer is ignored
	client.HandleResponse(msg)
	assert.Equal(t, 0, client.PendingCount())
}

func TestStatusRPCClient_SubscribeOnReady(t *testing.T) {
	conn := newFakeConnection()
	dialer := &scriptedDialer{results: []dialResult{{conn: conn}}}
	gateway := NewBusGateway(dialer.dial, WithReconnectDelay(testReconnectDelay))
	client := NewStatusRPCClient(gateway, time.Second)
	gateway.OnReady(client.Subscribe)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = gateway.Run(ctx) }()
	require.NoError(t, gateway.WaitReady(context.Background()))
	require.NotNil(t, conn.handler(constants.StatusReplySubject))

	go func() {
		for {
			messages := conn.messages()
			if len(messages) > 0 {
				var probe models.MeetingCommand
				if err := json.Unmarshal(messages[0].msg.Data, &probe); err == nil {
					body, _ := json.Marshal(map[string]any{"correlationId": probe.CorrelationID, "meetingId": probe.MeetingID})
					conn.handler(constants.StatusReplySubject)(&nats.Msg{Data: body})
				}
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	response, err := client.QueryStatus(context.Background(), "m-7")
	require.NoError(t, err)
	assert.Equal(t, "m-7", response.MeetingID)
}
