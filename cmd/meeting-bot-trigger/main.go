// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main is the function invoked by the one-shot schedules created for
// calendar events. It publishes the start command of the scheduled meeting and
// deletes the schedule that fired.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsscheduler "github.com/aws/aws-sdk-go-v2/service/scheduler"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/infrastructure/scheduler"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/service"
)

const natsClientName = "lfx-v2-meeting-bot-trigger"

func main() {
	logging.InitStructureLogConfig()
	env := parseEnv()

	// The session outlives single invocations so that a warm function reuses it.
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error loading AWS configuration")
		os.Exit(1)
	}

	gateway := messaging.NewBusGateway(
		messaging.NewNatsDialer(messaging.NatsDialerConfig{
			URL:             env.NatsURL,
			Name:            natsClientName,
			Timeout:         env.NatsTimeout,
			StreamMaxAge:    env.CommandStreamMaxAge,
			DuplicateWindow: env.CommandDuplicateWindow,
		}),
		messaging.WithReconnectDelay(env.BusReconnectDelay),
	)
	go func() {
		if err := gateway.Run(ctx); err != nil {
			slog.With(logging.ErrKey, err).Error("bus gateway stopped", logging.PriorityCritical())
		}
	}()

	// The schedule targets this function, so deletion only needs the client.
	backend := scheduler.NewEventBridgeBackend(awsscheduler.NewFromConfig(awsCfg), scheduler.EventBridgeConfig{})

	handler := &Handler{
		Bus:          gateway,
		Trigger:      service.NewTriggerService(gateway, backend),
		ReadyTimeout: env.BusReadyTimeout,
	}

	slog.With("environment", env.Environment).Info("meeting bot trigger started")
	lambda.Start(handler.Handle)
}
