// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsscheduler "github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/scheduler/types"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
)

// atLayout is the timestamp layout of one-time schedule expressions.
const atLayout = "2006-01-02T15:04:05"

// SchedulerAPI is the subset of the EventBridge Scheduler client the backend uses.
type SchedulerAPI interface {
	CreateSchedule(ctx context.Context, params *awsscheduler.CreateScheduleInput, optFns ...func(*awsscheduler.Options)) (*awsscheduler.CreateScheduleOutput, error)
	DeleteSchedule(ctx context.Context, params *awsscheduler.DeleteScheduleInput, optFns ...func(*awsscheduler.Options)) (*awsscheduler.DeleteScheduleOutput, error)
}

// EventBridgeConfig names the function a schedule invokes and the role it assumes.
type EventBridgeConfig struct {
	TargetARN string
	RoleARN   string
}

// EventBridgeBackend registers one-shot triggers with AWS EventBridge Scheduler.
type EventBridgeBackend struct {
	client SchedulerAPI
	config EventBridgeConfig
}

// NewEventBridgeBackend creates a backend over an EventBridge Scheduler client.
func NewEventBridgeBackend(client SchedulerAPI, config EventBridgeConfig) *EventBridgeBackend {
	return &EventBridgeBackend{
		client: client,
		config: config,
	}
}

// ScheduleExpression returns the one-time expression firing at t, in UTC.
func ScheduleExpression(t time.Time) string {
	return fmt.Sprintf("at(%s)", t.UTC().Format(atLayout))
}

// CreateSchedule registers a schedule that invokes the trigger function once at
// schedule.FireAt with input as its JSON payload.
func (b *EventBridgeBackend) CreateSchedule(ctx context.Context, schedule models.Schedule, input models.TriggerInput) error {
	payload, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger input: %w", err)
	}

	_, err = b.client.CreateSchedule(ctx, &awsscheduler.CreateScheduleInput{
		Name:                       aws.String(schedule.Name),
		GroupName:                  aws.String(schedule.Group),
		ScheduleExpression:         aws.String(ScheduleExpression(schedule.FireAt)),
		ScheduleExpressionTimezone: aws.String("UTC"),
		FlexibleTimeWindow: &types.FlexibleTimeWindow{
			Mode: types.FlexibleTimeWindowModeOff,
		},
		Target: &types.Target{
			Arn:     aws.String(b.config.TargetARN),
			RoleArn: aws.String(b.config.RoleARN),
			Input:   aws.String(string(payload)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create schedule %s: %w", schedule.Name, err)
	}

	slog.DebugContext(ctx, "schedule created",
		"schedule_name", schedule.Name,
		"group_name", schedule.Group,
		"fire_at", schedule.FireAt,
	)
	return nil
}

// DeleteSchedule removes a schedule. A schedule that no longer exists is not an error.
func (b *EventBridgeBackend) DeleteSchedule(ctx context.Context, name, group string) error {
	_, err := b.client.DeleteSchedule(ctx, &awsscheduler.DeleteScheduleInput{
		Name:      aws.String(name),
		GroupName: aws.String(group),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			slog.DebugContext(ctx, "schedule already deleted", "schedule_name", name)
			return nil
		}
		slog.ErrorContext(ctx, "error deleting schedule", logging.ErrKey, err, "schedule_name", name)
		return fmt.Errorf("failed to delete schedule %s: %w", name, err)
	}
	return nil
}
