// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"

	"github.com/nats-io/nats.go/jetstream"
)

// NATS Key-Value store bucket names
const (
	// KVStoreNameRecordings holds one state record per bot session, written by the bots.
	KVStoreNameRecordings = "meet-bot-recordings"
	// KVStoreNameSchedules holds the per-meeting scheduling lock and bookkeeping.
	KVStoreNameSchedules = "meet-bot-schedules"
	// KVStoreNamePendingSchedules holds the one-shot triggers of the local schedule backend.
	KVStoreNamePendingSchedules = "meet-bot-pending-schedules"
)

// INatsKeyValue is the subset of [jetstream.KeyValue] the repositories use.
type INatsKeyValue interface {
	ListKeys(context.Context, ...jetstream.WatchOpt) (jetstream.KeyLister, error)
	ListKeysFiltered(ctx context.Context, filters ...string) (jetstream.KeyLister, error)
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(context.Context, string, []byte) (uint64, error)
	Create(ctx context.Context, key string, value []byte, opts ...jetstream.KVCreateOpt) (uint64, error)
	Update(context.Context, string, []byte, uint64) (uint64, error)
	Delete(context.Context, string, ...jetstream.KVDeleteOpt) error
	Watch(ctx context.Context, keys string, opts ...jetstream.WatchOpt) (jetstream.KeyWatcher, error)
}
