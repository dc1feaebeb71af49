// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrKeyConstant(t *testing.T) {
	assert.Equal(t, "error", ErrKey)
}

func TestAppendCtx(t *testing.T) {
	ctx := AppendCtx(context.TODO(), slog.String("key1", "value1"))

	attrs, ok := ctx.Value(slogFields).([]slog.Attr)
	require.True(t, ok, "expected slog attributes in context")
	require.Len(t, attrs, 1)
	assert.Equal(t, "key1", attrs[0].Key)
	assert.Equal(t, "value1", attrs[0].Value.String())
}

func TestAppendCtx_SiblingsDoNotShareAttributes(t *testing.T) {
	parent := AppendCtx(context.Background(), slog.String("a", "1"))
	parent = AppendCtx(parent, slog.String("b", "2"))

	left := AppendCtx(parent, slog.String("side", "left"))
	right := AppendCtx(parent, slog.String("side", "right"))

	leftAttrs := left.Value(slogFields).([]slog.Attr)
	rightAttrs := right.Value(slogFields).([]slog.Attr)
	require.Len(t, leftAttrs, 3)
	require.Len(t, rightAttrs, 3)
	assert.Equal(t, "left", leftAttrs[2].Value.String())
	assert.Equal(t, "right", rightAttrs[2].Value.String())
}

func TestWithMeeting(t *testing.T) {
	ctx := WithMeeting(context.Background(), "m-1", "pause")
	attrs := ctx.Value(slogFields).([]slog.Attr)
	require.Len(t, attrs, 2)
	assert.Equal(t, MeetingIDKey, attrs[0].Key)
	assert.Equal(t, "m-1", attrs[0].Value.String())
	assert.Equal(t, OperationKey, attrs[1].Key)
	assert.Equal(t, "pause", attrs[1].Value.String())

	ctx = WithMeeting(context.Background(), "", "recordings")
	attrs = ctx.Value(slogFields).([]slog.Attr)
	require.Len(t, attrs, 1)
	assert.Equal(t, OperationKey, attrs[0].Key)
}

func TestNewHandler_WritesContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithMeeting(context.Background(), "m-42", "stop")
	logger.With("component", "test").InfoContext(ctx, "command published", "routing_key", "meeting.m-42.stop")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "command published", line["msg"])
	assert.Equal(t, "m-42", line[MeetingIDKey])
	assert.Equal(t, "stop", line[OperationKey])
	assert.Equal(t, "test", line["component"])
	assert.Equal(t, "meeting.m-42.stop", line["routing_key"])
}

func TestPriorityCritical(t *testing.T) {
	attr := PriorityCritical()
	assert.Equal(t, "priority", attr.Key)
	assert.Equal(t, "critical", attr.Value.String())
}
