// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"errors"
	"sync"

	"github.com/nats-io/nats.go"
)

type publishedMsg struct {
	msg     *nats.Msg
	msgID   string
	durable bool
}

// fakeConnection implements BusConnection in memory.
type fakeConnection struct {
	mu         sync.Mutex
	published  []publishedMsg
	handlers   map[string]nats.MsgHandler
	publishErr error
	closed     chan struct{}
	closeOnce  sync.Once
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{
		handlers: make(map[string]nats.MsgHandler),
		closed:   make(chan struct{}),
	}
}

func (f *fakeConnection) record(msg *nats.Msg, msgID string, durable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishedMsg{msg: msg, msgID: msgID, durable: durable})
	return nil
}

func (f *fakeConnection) PublishDurable(_ context.Context, msg *nats.Msg, msgID string) error {
	return f.record(msg, msgID, true)
}

func (f *fakeConnection) Publish(msg *nats.Msg) error {
	return f.record(msg, "", false)
}

type fakeSubscription struct {
	conn    *fakeConnection
	subject string
}

func (s *fakeSubscription) Unsubscribe() error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	delete(s.conn.handlers, s.subject)
	return nil
}

func (f *fakeConnection) Subscribe(subject string, handler nats.MsgHandler) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[subject] = handler
	return &fakeSubscription{conn: f, subject: subject}, nil
}

func (f *fakeConnection) Closed() <-chan struct{} { return f.closed }

func (f *fakeConnection) Close() {
	f.closeOnce.Do(func() { close(f.closed) })
}

func (f *fakeConnection) messages() []publishedMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedMsg(nil), f.published...)
}

func (f *fakeConnection) handler(subject string) nats.MsgHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[subject]
}

func (f *fakeConnection) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// scriptedDialer hands out the queued results in order, then keeps failing.
type scriptedDialer struct {
	mu      sync.Mutex
	results []dialResult
	calls   int
}

type dialResult struct {
	conn *fakeConnection
	err  error
}

func (d *scriptedDialer) dial(context.Context) (BusConnection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.results) == 0 {
		return nil, errors.New("connection refused")
	}
	next := d.results[0]
	d.results = d.results[1:]
	if next.err != nil {
		return nil, next.err
	}
	return next.conn, nil
}

func (d *scriptedDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
