// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// mockKeyValueEntry implements jetstream.KeyValueEntry for testing
type mockKeyValueEntry struct {
	key       string
	value     []byte
	revision  uint64
	operation jetstream.KeyValueOp
}

func (m *mockKeyValueEntry) Key() string                     { return m.key }
func (m *mockKeyValueEntry) Value() []byte                   { return m.value }
func (m *mockKeyValueEntry) Revision() uint64                { return m.revision }
func (m *mockKeyValueEntry) Created() time.Time              { return time.Now() }
func (m *mockKeyValueEntry) Delta() uint64                   { return 0 }
func (m *mockKeyValueEntry) Operation() jetstream.KeyValueOp { return m.operation }
func (m *mockKeyValueEntry) Bucket() string                  { return "test-bucket" }

// mockKeyLister implements jetstream.KeyLister for testing
type mockKeyLister struct {
	keys []string
}

func (m *mockKeyLister) Keys() <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		for _, key := range m.keys {
			ch <- key
		}
	}()
	return ch
}

func (m *mockKeyLister) Stop() error { return nil }

// mockKeyWatcher implements jetstream.KeyWatcher for testing
type mockKeyWatcher struct {
	filter  string
	updates chan jetstream.KeyValueEntry
	once    sync.Once
	stop    func(*mockKeyWatcher)
}

func (w *mockKeyWatcher) Updates() <-chan jetstream.KeyValueEntry { return w.updates }

func (w *mockKeyWatcher) Stop() error {
	w.once.Do(func() { w.stop(w) })
	return nil
}

// mockNatsKeyValue implements INatsKeyValue for testing. Keys are matched against
// subject filters the way the server does.
type mockNatsKeyValue struct {
	mu          sync.Mutex
	data        map[string][]byte
	revisions   map[string]uint64
	sequence    uint64
	watchers    []*mockKeyWatcher
	putError    error
	getError    error
	deleteError error
	updateError error
	createError error
	listError   error
}

func newMockNatsKeyValue() *mockNatsKeyValue {
	return &mockNatsKeyValue{
		data:      make(map[string][]byte),
		revisions: make(map[string]uint64),
	}
}

// NewInMemoryKeyValue returns an in-memory bucket for tests of packages built on the store.
func NewInMemoryKeyValue() INatsKeyValue {
	return newMockNatsKeyValue()
}

// subjectMatches reports whether key matches a subject filter with '*' and '>' wildcards.
func subjectMatches(filter, key string) bool {
	filterTokens := strings.Split(filter, ".")
	keyTokens := strings.Split(key, ".")
	for i, token := range filterTokens {
		if token == ">" {
			return len(keyTokens) > i
		}
		if i >= len(keyTokens) {
			return false
		}
		if token != "*" && token != keyTokens[i] {
			return false
		}
	}
	return len(filterTokens) == len(keyTokens)
}

func (m *mockNatsKeyValue) sortedKeys(filters ...string) []string {
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		if len(filters) == 0 {
			keys = append(keys, key)
			continue
		}
		for _, filter := range filters {
			if subjectMatches(filter, key) {
				keys = append(keys, key)
				break
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *mockNatsKeyValue) ListKeys(ctx context.Context, opts ...jetstream.WatchOpt) (jetstream.KeyLister, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listError != nil {
		return nil, m.listError
	}
	return &mockKeyLister{keys: m.sortedKeys()}, nil
}

func (m *mockNatsKeyValue) ListKeysFiltered(ctx context.Context, filters ...string) (jetstream.KeyLister, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listError != nil {
		return nil, m.listError
	}
	return &mockKeyLister{keys: m.sortedKeys(filters...)}, nil
}

func (m *mockNatsKeyValue) Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	value, exists := m.data[key]
	if !exists {
		return nil, jetstream.ErrKeyNotFound
	}
	return &mockKeyValueEntry{key: key, value: value, revision: m.revisions[key], operation: jetstream.KeyValuePut}, nil
}

// store writes under m.mu and fans the change out to matching watchers.
func (m *mockNatsKeyValue) store(key string, data []byte) uint64 {
	m.sequence++
	m.data[key] = data
	m.revisions[key] = m.sequence
	m.notify(&mockKeyValueEntry{key: key, value: data, revision: m.sequence, operation: jetstream.KeyValuePut})
	return m.sequence
}

func (m *mockNatsKeyValue) notify(entry *mockKeyValueEntry) {
	for _, w := range m.watchers {
		if subjectMatches(w.filter, entry.key) {
			w.updates <- entry
		}
	}
}

func (m *mockNatsKeyValue) Put(ctx context.Context, key string, data []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putError != nil {
		return 0, m.putError
	}
	return m.store(key, data), nil
}

func (m *mockNatsKeyValue) Create(ctx context.Context, key string, data []byte, opts ...jetstream.KVCreateOpt) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createError != nil {
		return 0, m.createError
	}
	if _, exists := m.data[key]; exists {
		return 0, jetstream.ErrKeyExists
	}
	return m.store(key, data), nil
}

func (m *mockNatsKeyValue) Update(ctx context.Context, key string, data []byte, expectedRevision uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateError != nil {
		return 0, m.updateError
	}
	currentRevision, exists := m.revisions[key]
	if !exists {
		return 0, jetstream.ErrKeyNotFound
	}
	if currentRevision != expectedRevision {
		return 0, errors.New("nats: wrong last sequence")
	}
	return m.store(key, data), nil
}

func (m *mockNatsKeyValue) Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteError != nil {
		return m.deleteError
	}
	if _, exists := m.data[key]; !exists {
		return jetstream.ErrKeyNotFound
	}
	delete(m.data, key)
	delete(m.revisions, key)
	m.sequence++
	m.notify(&mockKeyValueEntry{key: key, revision: m.sequence, operation: jetstream.KeyValueDelete})
	return nil
}

// Watch replays the current values matching keys, sends the nil marker and then
// streams every later change.
func (m *mockNatsKeyValue) Watch(ctx context.Context, keys string, opts ...jetstream.WatchOpt) (jetstream.KeyWatcher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := &mockKeyWatcher{
		filter:  keys,
		updates: make(chan jetstream.KeyValueEntry, 1024),
		stop:    m.removeWatcher,
	}
	for _, key := range m.sortedKeys(keys) {
		w.updates <- &mockKeyValueEntry{key: key, value: m.data[key], revision: m.revisions[key], operation: jetstream.KeyValuePut}
	}
	w.updates <- nil
	m.watchers = append(m.watchers, w)
	return w, nil
}

func (m *mockNatsKeyValue) removeWatcher(w *mockKeyWatcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.watchers {
		if existing == w {
			m.watchers = append(m.watchers[:i], m.watchers[i+1:]...)
			break
		}
	}
	close(w.updates)
}

// seed stores value under key without notifying watchers, for test setup.
func (m *mockNatsKeyValue) seed(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence++
	m.data[key] = value
	m.revisions[key] = m.sequence
}

func (m *mockNatsKeyValue) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}
