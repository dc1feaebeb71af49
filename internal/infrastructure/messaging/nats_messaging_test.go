// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/constants"
)

type mockNatsConn struct {
	mock.Mock
}

func (m *mockNatsConn) IsConnected() bool {
	return m.Called().Bool(0)
}

func (m *mockNatsConn) QueueSubscribe(subj, queue string, cb nats.MsgHandler) (*nats.Subscription, error) {
	args := m.Called(subj, queue, cb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*nats.Subscription), args.Error(1)
}

type recordingHandler struct {
	messages []domain.Message
}

func (h *recordingHandler) HandleMessage(_ context.Context, msg domain.Message) {
	h.messages = append(h.messages, msg)
}

func (h *recordingHandler) HandlerReady() bool { return true }

func TestNatsMessage(t *testing.T) {
	withReply := NewNatsMessage(&nats.Msg{Subject: constants.BotStatusSubject, Reply: "_INBOX.1", Data: []byte("m-1")})
	assert.Equal(t, constants.BotStatusSubject, withReply.Subject())
	assert.Equal(t, []byte("m-1"), withReply.Data())
	assert.True(t, withReply.HasReply())

	noReply := NewNatsMessage(&nats.Msg{Subject: constants.ActiveInstancesSubject})
	assert.False(t, noReply.HasReply())
	assert.ErrorIs(t, noReply.Respond([]byte("{}")), nats.ErrMsgNotBound)
}

func TestSubscribeHandler(t *testing.T) {
	conn := &mockNatsConn{}
	handler := &recordingHandler{}
	callbacks := map[string]nats.MsgHandler{}

	for _, subject := range []string{constants.BotStatusSubject, constants.ActiveInstancesSubject} {
		conn.On("QueueSubscribe", subject, constants.MeetBotAPIQueue, mock.Anything).
			Run(func(args mock.Arguments) { callbacks[args.String(0)] = args.Get(2).(nats.MsgHandler) }).
			Return(&nats.Subscription{Subject: subject}, nil).Once()
	}

	subs, err := SubscribeHandler(context.Background(), conn, constants.MeetBotAPIQueue, handler,
		constants.BotStatusSubject, constants.ActiveInstancesSubject)

	require.NoError(t, err)
	assert.Len(t, subs, 2)
	conn.AssertExpectations(t)

	callbacks[constants.BotStatusSubject](&nats.Msg{Subject: constants.BotStatusSubject, Data: []byte("m-1")})
	require.Len(t, handler.messages, 1)
	assert.Equal(t, []byte("m-1"), handler.messages[0].Data())
}

func TestSubscribeHandler_Error(t *testing.T) {
	conn := &mockNatsConn{}
	conn.On("QueueSubscribe", constants.BotStatusSubject, mock.Anything, mock.Anything).
		Return(&nats.Subscription{Subject: constants.BotStatusSubject}, nil)
	conn.On("QueueSubscribe", constants.ActiveInstancesSubject, mock.Anything, mock.Anything).
		Return(nil, errors.New("nats: connection closed"))

	subs, err := SubscribeHandler(context.Background(), conn, constants.MeetBotAPIQueue, &recordingHandler{},
		constants.BotStatusSubject, constants.ActiveInstancesSubject)

	assert.Error(t, err)
	assert.Nil(t, subs)
}
