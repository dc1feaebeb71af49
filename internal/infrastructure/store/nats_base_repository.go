// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation name for the store package.
const tracerName = "github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/infrastructure/store"

// NatsBaseRepository provides the JSON entity operations shared by the bucket repositories.
type NatsBaseRepository[T any] struct {
	kvStore    INatsKeyValue
	entityName string // Used in error messages (e.g., "recording", "schedule")
}

// NewNatsBaseRepository creates a new base repository for NATS KV operations
func NewNatsBaseRepository[T any](kvStore INatsKeyValue, entityName string) *NatsBaseRepository[T] {
	return &NatsBaseRepository[T]{
		kvStore:    kvStore,
		entityName: entityName,
	}
}

// IsReady checks if the repository is ready for use
func (r *NatsBaseRepository[T]) IsReady() bool {
	return r.kvStore != nil
}

func (r *NatsBaseRepository[T]) startSpan(ctx context.Context, operation, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{
		attribute.String("db.system", "nats"),
		attribute.String("db.operation", operation),
		attribute.String("db.nats.entity", r.entityName),
	}, attrs...)
	if key != "" {
		attrs = append(attrs, attribute.String("db.nats.key", key))
	}
	return otel.Tracer(tracerName).Start(ctx, "nats.kv."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// fail records err on the span and returns it.
func fail(span trace.Span, err error, status string) error {
	span.RecordError(err)
	if status == "" {
		status = err.Error()
	}
	span.SetStatus(codes.Error, status)
	return err
}

func (r *NatsBaseRepository[T]) unavailable() error {
	return domain.NewUnavailableError(fmt.Sprintf("%s repository is not available", r.entityName))
}

// isRevisionConflict reports whether a conditional write lost against a concurrent writer.
func isRevisionConflict(err error) bool {
	return errors.Is(err, jetstream.ErrKeyExists) || strings.Contains(err.Error(), "wrong last sequence")
}

// GetRaw retrieves a raw entry from NATS KV store
func (r *NatsBaseRepository[T]) GetRaw(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	ctx, span := r.startSpan(ctx, "get", key)
	defer span.End()

	if !r.IsReady() {
		return nil, fail(span, r.unavailable(), "")
	}

	entry, err := r.kvStore.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, fail(span, domain.NewNotFoundError(
				fmt.Sprintf("%s with key '%s' not found", r.entityName, key), err), "not found")
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error getting %s from NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		return nil, fail(span, domain.NewInternalError(
			fmt.Sprintf("failed to retrieve %s from store", r.entityName), err), "")
	}

	span.SetStatus(codes.Ok, "")
	return entry, nil
}

// Get retrieves and unmarshals an entity from NATS KV store
func (r *NatsBaseRepository[T]) Get(ctx context.Context, key string) (*T, error) {
	entity, _, err := r.GetWithRevision(ctx, key)
	return entity, err
}

// GetWithRevision retrieves an entity with its revision from NATS KV store
func (r *NatsBaseRepository[T]) GetWithRevision(ctx context.Context, key string) (*T, uint64, error) {
	entry, err := r.GetRaw(ctx, key)
	if err != nil {
		return nil, 0, err
	}

	entity, err := r.Unmarshal(ctx, entry.Value())
	if err != nil {
		return nil, 0, domain.NewInternalError(
			fmt.Sprintf("failed to unmarshal %s data", r.entityName), err)
	}

	return entity, entry.Revision(), nil
}

// Unmarshal decodes a stored value into the entity type
func (r *NatsBaseRepository[T]) Unmarshal(ctx context.Context, data []byte) (*T, error) {
	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error unmarshaling %s", r.entityName),
			logging.ErrKey, err)
		return nil, err
	}

	return &entity, nil
}

// Marshal marshals an entity to JSON bytes
func (r *NatsBaseRepository[T]) Marshal(ctx context.Context, entity *T) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error marshaling %s", r.entityName),
			logging.ErrKey, err)
		return nil, err
	}

	return data, nil
}

// Put writes an entity unconditionally
func (r *NatsBaseRepository[T]) Put(ctx context.Context, key string, entity *T) (uint64, error) {
	ctx, span := r.startSpan(ctx, "put", key)
	defer span.End()

	if !r.IsReady() {
		return 0, fail(span, r.unavailable(), "")
	}

	data, err := r.Marshal(ctx, entity)
	if err != nil {
		return 0, fail(span, domain.NewInternalError(fmt.Sprintf("failed to marshal %s", r.entityName), err), "")
	}

	revision, err := r.kvStore.Put(ctx, key, data)
	if err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error writing %s to NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		return 0, fail(span, domain.NewInternalError(fmt.Sprintf("failed to write %s to store", r.entityName), err), "")
	}

	span.SetStatus(codes.Ok, "")
	return revision, nil
}

// Create writes an entity only if the key does not exist yet. A key that already
// exists is reported as a Conflict.
func (r *NatsBaseRepository[T]) Create(ctx context.Context, key string, entity *T) (uint64, error) {
	ctx, span := r.startSpan(ctx, "create", key)
	defer span.End()

	if !r.IsReady() {
		return 0, fail(span, r.unavailable(), "")
	}

	data, err := r.Marshal(ctx, entity)
	if err != nil {
		return 0, fail(span, domain.NewInternalError(fmt.Sprintf("failed to marshal %s", r.entityName), err), "")
	}

	revision, err := r.kvStore.Create(ctx, key, data)
	if err != nil {
		if isRevisionConflict(err) {
			return 0, fail(span, domain.NewConflictError(fmt.Sprintf("%s already exists", r.entityName), err), "conflict")
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error creating %s in NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		return 0, fail(span, domain.NewInternalError(fmt.Sprintf("failed to create %s in store", r.entityName), err), "")
	}

	span.SetStatus(codes.Ok, "")
	return revision, nil
}

// Update updates an existing entity in the store with optimistic concurrency control
func (r *NatsBaseRepository[T]) Update(ctx context.Context, key string, entity *T, revision uint64) (uint64, error) {
	ctx, span := r.startSpan(ctx, "update", key, attribute.Int64("db.nats.revision", int64(revision)))
	defer span.End()

	if !r.IsReady() {
		return 0, fail(span, r.unavailable(), "")
	}

	data, err := r.Marshal(ctx, entity)
	if err != nil {
		return 0, fail(span, domain.NewInternalError(fmt.Sprintf("failed to marshal %s", r.entityName), err), "")
	}

	next, err := r.kvStore.Update(ctx, key, data, revision)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return 0, fail(span, domain.NewNotFoundError(fmt.Sprintf("%s not found", r.entityName), err), "not found")
		}
		if isRevisionConflict(err) {
			return 0, fail(span, domain.NewConflictError(fmt.Sprintf("%s has been modified", r.entityName), err), "conflict")
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error updating %s in NATS KV", r.entityName),
			logging.ErrKey, err, "key", key, "revision", revision)
		return 0, fail(span, domain.NewInternalError(fmt.Sprintf("failed to update %s in store", r.entityName), err), "")
	}

	span.SetStatus(codes.Ok, "")
	return next, nil
}

// Delete removes an entity from the store with optimistic concurrency control
func (r *NatsBaseRepository[T]) Delete(ctx context.Context, key string, revision uint64) error {
	ctx, span := r.startSpan(ctx, "delete", key, attribute.Int64("db.nats.revision", int64(revision)))
	defer span.End()

	if !r.IsReady() {
		return fail(span, r.unavailable(), "")
	}

	if err := r.kvStore.Delete(ctx, key, jetstream.LastRevision(revision)); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return fail(span, domain.NewNotFoundError(fmt.Sprintf("%s not found", r.entityName), err), "not found")
		}
		if isRevisionConflict(err) {
			return fail(span, domain.NewConflictError(fmt.Sprintf("%s has been modified", r.entityName), err), "conflict")
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error deleting %s from NATS KV", r.entityName),
			logging.ErrKey, err, "key", key, "revision", revision)
		return fail(span, domain.NewInternalError(fmt.Sprintf("failed to delete %s from store", r.entityName), err), "")
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ListKeys lists the keys matching filter, a NATS subject filter over the bucket keys
func (r *NatsBaseRepository[T]) ListKeys(ctx context.Context, filter string) ([]string, error) {
	ctx, span := r.startSpan(ctx, "list_keys", "", attribute.String("db.nats.filter", filter))
	defer span.End()

	if !r.IsReady() {
		return nil, fail(span, r.unavailable(), "")
	}

	lister, err := r.kvStore.ListKeysFiltered(ctx, filter)
	if err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error listing %s keys from NATS KV", r.entityName),
			logging.ErrKey, err, "filter", filter)
		return nil, fail(span, domain.NewInternalError(
			fmt.Sprintf("failed to list %s keys from store", r.entityName), err), "")
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for key := range lister.Keys() {
		keys = append(keys, key)
	}

	span.SetAttributes(attribute.Int("db.nats.keys_count", len(keys)))
	span.SetStatus(codes.Ok, "")
	return keys, nil
}

// ListEntities lists all entities whose keys match filter. Entries that cannot be read
// are logged and skipped.
func (r *NatsBaseRepository[T]) ListEntities(ctx context.Context, filter string) ([]*T, error) {
	keys, err := r.ListKeys(ctx, filter)
	if err != nil {
		return nil, err
	}

	entities := make([]*T, 0, len(keys))
	for _, key := range keys {
		entity, err := r.Get(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, fmt.Sprintf("failed to get %s, skipping", r.entityName),
				"key", key, logging.ErrKey, err)
			continue
		}
		entities = append(entities, entity)
	}

	return entities, nil
}

// PutIndex creates an index entry in the store (stores empty value, key is used for indexing)
func (r *NatsBaseRepository[T]) PutIndex(ctx context.Context, indexKey string) error {
	if !r.IsReady() {
		return r.unavailable()
	}

	if _, err := r.kvStore.Put(ctx, indexKey, []byte{}); err != nil {
		slog.ErrorContext(ctx, "error creating index",
			logging.ErrKey, err, "index_key", indexKey)
		return domain.NewInternalError("failed to create index", err)
	}

	return nil
}

// DeleteIndex removes an index entry from the store. A missing entry is not an error.
func (r *NatsBaseRepository[T]) DeleteIndex(ctx context.Context, indexKey string) error {
	if !r.IsReady() {
		return r.unavailable()
	}

	err := r.kvStore.Delete(ctx, indexKey)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		slog.WarnContext(ctx, "error deleting index",
			logging.ErrKey, err, "index_key", indexKey)
		return domain.NewInternalError("failed to delete index", err)
	}

	return nil
}
