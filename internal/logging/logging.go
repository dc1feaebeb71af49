// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package logging contains the logging functionality for the meeting bot service.
package logging

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"

	slogotel "github.com/remychantenay/slog-otel"
)

type ctxKey string

// Public constants
const (
	ErrKey = "error"

	// MeetingIDKey and OperationKey identify what a log line is about.
	MeetingIDKey = "meeting_id"
	OperationKey = "operation"
)

// Private constants
const (
	slogFields      ctxKey = "slog_fields"
	logLevelDefault        = slog.LevelDebug

	// Log levels
	debug = "debug"
	warn  = "warn"
	err   = "error"
	info  = "info"

	// Log field for errors that need an operator, e.g. commands that never reached the bus.
	priorityCritical = "critical"
)

type contextHandler struct {
	slog.Handler
}

// Handle adds contextual attributes to the Record before calling the underlying handler
func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(slogFields).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}

	return h.Handler.Handle(ctx, r)
}

// WithAttrs keeps the context handler in front of the derived handler.
func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

// WithGroup keeps the context handler in front of the derived handler.
func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// AppendCtx adds an slog attribute to the provided context so that it will be
// included in any Record created with such context
func AppendCtx(parent context.Context, attr slog.Attr) context.Context {
	if parent == nil {
		parent = context.Background()
	}

	existing, _ := parent.Value(slogFields).([]slog.Attr)
	// Copy so that sibling contexts derived from the same parent never share a backing array.
	v := make([]slog.Attr, 0, len(existing)+1)
	v = append(v, existing...)
	v = append(v, attr)
	return context.WithValue(parent, slogFields, v)
}

// WithMeeting tags every log line written with the returned context with the meeting
// id and the operation acting on it.
func WithMeeting(ctx context.Context, meetingID, operation string) context.Context {
	if meetingID != "" {
		ctx = AppendCtx(ctx, slog.String(MeetingIDKey, meetingID))
	}
	return AppendCtx(ctx, slog.String(OperationKey, operation))
}

// NewHandler builds the service handler chain: context attributes, then trace
// correlation, then JSON output to w.
func NewHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	return contextHandler{slogotel.OtelHandler{
		Next: slog.NewJSONHandler(w, opts),
	}}
}

// InitStructureLogConfig sets the structured log behavior
func InitStructureLogConfig() slog.Handler {
	logOptions := &slog.HandlerOptions{}

	// Configure log level
	logLevel := os.Getenv("LOG_LEVEL")
	switch logLevel {
	case debug:
		logOptions.Level = slog.LevelDebug
	case warn:
		logOptions.Level = slog.LevelWarn
	case err:
		logOptions.Level = slog.LevelError
	case info:
		logOptions.Level = slog.LevelInfo
	default:
		logOptions.Level = logLevelDefault
	}

	// Configure source information
	addSource := os.Getenv("LOG_ADD_SOURCE")
	logOptions.AddSource = addSource == "true" || addSource == "t" || addSource == "1"

	h := NewHandler(os.Stdout, logOptions)
	log.SetFlags(log.Llongfile)
	slog.SetDefault(slog.New(h))

	slog.Info("log config",
		"logLevel", logOptions.Level,
		"addSource", logOptions.AddSource,
	)

	return h
}

// Priority creates a slog.Attr for error priority classification
func Priority(level string) slog.Attr {
	return slog.String("priority", level)
}

// PriorityCritical creates a slog.Attr for critical errors
// this is used to identify critical errors in the logs
// the ones that should be escalated to the team
func PriorityCritical() slog.Attr {
	return Priority(priorityCritical)
}
