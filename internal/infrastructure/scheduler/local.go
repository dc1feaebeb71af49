// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
)

const (
	defaultRetryDelay  = time.Minute
	defaultMaxAttempts = 3
)

// FireFunc runs a trigger whose time has come.
type FireFunc func(ctx context.Context, input models.TriggerInput) error

type stopper interface {
	Stop() bool
}

// localTrigger is the msgpack encoded value of a trigger key.
type localTrigger struct {
	Name     string              `msgpack:"name"`
	Group    string              `msgpack:"group"`
	FireAt   time.Time           `msgpack:"fire_at"`
	Attempts int                 `msgpack:"attempts"`
	Input    models.TriggerInput `msgpack:"input"`
}

// LocalBackend keeps one-shot triggers in a NATS KV bucket and fires them from the
// API processes themselves. Every replica arms a timer per trigger; a firing replica
// claims the trigger with a revision-checked update so that only one of them runs it.
// A failed run is retried after RetryDelay, at most MaxAttempts times.
type LocalBackend struct {
	kv          store.INatsKeyValue
	keyBuilder  *store.KeyBuilder
	RetryDelay  time.Duration
	MaxAttempts int

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) stopper

	mu     sync.Mutex
	timers map[string]stopper
}

// NewLocalBackend creates a backend storing triggers in kv.
func NewLocalBackend(kv store.INatsKeyValue) *LocalBackend {
	return &LocalBackend{
		kv:          kv,
		keyBuilder:  store.NewKeyBuilder(""),
		RetryDelay:  defaultRetryDelay,
		MaxAttempts: defaultMaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		timers: make(map[string]stopper),
	}
}

func (b *LocalBackend) triggerKey(name string) string {
	return b.keyBuilder.EntityKey(store.KeyPrefixTrigger, name)
}

// CreateSchedule stores a trigger. Names are unique; storing one twice is an error.
func (b *LocalBackend) CreateSchedule(ctx context.Context, schedule models.Schedule, input models.TriggerInput) error {
	data, err := msgpack.Marshal(&localTrigger{
		Name:   schedule.Name,
		Group:  schedule.Group,
		FireAt: schedule.FireAt.UTC(),
		Input:  input,
	})
	if err != nil {
		return fmt.Errorf("failed to encode trigger: %w", err)
	}

	if _, err := b.kv.Create(ctx, b.triggerKey(schedule.Name), data); err != nil {
		return fmt.Errorf("failed to store trigger %s: %w", schedule.Name, err)
	}
	slog.DebugContext(ctx, "trigger stored", "schedule_name", schedule.Name, "fire_at", schedule.FireAt)
	return nil
}

// DeleteSchedule removes a trigger. A trigger that no longer exists is not an error.
func (b *LocalBackend) DeleteSchedule(ctx context.Context, name, _ string) error {
	key := b.triggerKey(name)
	b.disarm(key)

	err := b.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete trigger %s: %w", name, err)
	}
	return nil
}

// Run arms a timer for every stored trigger and follows changes to the bucket until
// ctx is done. Due triggers are handed to fire.
func (b *LocalBackend) Run(ctx context.Context, fire FireFunc) error {
	watcher, err := b.kv.Watch(ctx, b.keyBuilder.EntityFilter(store.KeyPrefixTrigger))
	if err != nil {
		return fmt.Errorf("failed to watch triggers: %w", err)
	}
	defer func() {
		_ = watcher.Stop()
		b.disarmAll()
	}()

	slog.InfoContext(ctx, "local trigger scheduler started")
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "local trigger scheduler stopped")
			return nil
		case entry, ok := <-watcher.Updates():
			if !ok {
				return nil
			}
			// nil marks the end of the initial values
			if entry == nil {
				continue
			}
			b.apply(ctx, entry, fire)
		}
	}
}

func (b *LocalBackend) apply(ctx context.Context, entry jetstream.KeyValueEntry, fire FireFunc) {
	key := entry.Key()
	if entry.Operation() != jetstream.KeyValuePut {
		b.disarm(key)
		return
	}

	var trigger localTrigger
	if err := msgpack.Unmarshal(entry.Value(), &trigger); err != nil {
		slog.WarnContext(ctx, "skipping undecodable trigger", "key", key, logging.ErrKey, err)
		return
	}

	delay := max(trigger.FireAt.Sub(b.now()), 0)

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.timers[key]; ok {
		existing.Stop()
	}
	b.timers[key] = b.afterFunc(delay, func() {
		b.fireDue(ctx, key, fire)
	})
}

// fireDue claims a due trigger and runs it. Losing the claim means another replica
// runs the trigger or it was rescheduled.
func (b *LocalBackend) fireDue(ctx context.Context, key string, fire FireFunc) {
	b.mu.Lock()
	delete(b.timers, key)
	b.mu.Unlock()

	entry, err := b.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, jetstream.ErrKeyNotFound) {
			slog.ErrorContext(ctx, "error reading due trigger", "key", key, logging.ErrKey, err)
		}
		return
	}

	var trigger localTrigger
	if err := msgpack.Unmarshal(entry.Value(), &trigger); err != nil {
		slog.ErrorContext(ctx, "error decoding due trigger", "key", key, logging.ErrKey, err)
		return
	}
	now := b.now()
	if trigger.FireAt.After(now) {
		return
	}

	claimed := trigger
	claimed.Attempts++
	claimed.FireAt = now.Add(b.RetryDelay)
	data, err := msgpack.Marshal(&claimed)
	if err != nil {
		slog.ErrorContext(ctx, "error encoding trigger claim", "key", key, logging.ErrKey, err)
		return
	}
	if _, err := b.kv.Update(ctx, key, data, entry.Revision()); err != nil {
		slog.DebugContext(ctx, "trigger claimed elsewhere", "schedule_name", trigger.Name, logging.ErrKey, err)
		return
	}

	ctx = logging.AppendCtx(ctx, slog.String("schedule_name", trigger.Name))
	err = fire(ctx, trigger.Input)
	switch {
	case err == nil:
	case domain.GetErrorType(err) == domain.ErrorTypeValidation:
		slog.ErrorContext(ctx, "dropping invalid trigger", logging.ErrKey, err)
	case claimed.Attempts >= b.MaxAttempts:
		slog.ErrorContext(ctx, "trigger failed, giving up",
			logging.ErrKey, err, "attempts", claimed.Attempts, logging.PriorityCritical())
	default:
		slog.WarnContext(ctx, "trigger failed, will retry",
			logging.ErrKey, err, "attempts", claimed.Attempts, "retry_at", claimed.FireAt)
		return
	}

	if err := b.DeleteSchedule(ctx, trigger.Name, trigger.Group); err != nil {
		slog.WarnContext(ctx, "error removing fired trigger", logging.ErrKey, err)
	}
}

func (b *LocalBackend) disarm(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if timer, ok := b.timers[key]; ok {
		timer.Stop()
		delete(b.timers, key)
	}
}

func (b *LocalBackend) disarmAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, timer := range b.timers {
		timer.Stop()
		delete(b.timers, key)
	}
}
