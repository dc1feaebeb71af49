// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main is the meeting bot control plane API. It dispatches commands to the
// meeting bots over NATS, schedules bot starts for calendar events, reports bot
// status and answers NATS requests for bot status and instance counts.
package main

import (
	"context"
	_ "expvar"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/utils"
)

func main() {
	env := parseEnv()
	flags := parseFlags(env.Port)

	logging.InitStructureLogConfig()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	otelShutdown, err := utils.SetupOTelSDK(ctx)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up OpenTelemetry")
		return
	}

	// Setup NATS connection
	natsConn, err := setupNATS(ctx, env, &gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up NATS")
		return
	}

	// Get the key-value stores for the service.
	stores, err := getKeyValueStores(ctx, natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error getting key-value stores")
		return
	}

	awsCfg, err := loadAWSConfig(ctx, env)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error loading AWS configuration")
		return
	}

	gateway, statusRPC := setupBusGateway(env)
	scheduleBackend, localScheduler := setupScheduleBackend(env, awsCfg, stores)
	taskCounter := setupTaskCounter(env, awsCfg)

	// Initialize services
	serviceConfig := service.ServiceConfig{
		Environment:  env.Environment,
		MaxInstances: env.MaxInstances,
		MinInstances: env.MinInstances,
	}
	commandService := service.NewCommandService(gateway, stores.Recordings, serviceConfig)
	statusService := service.NewStatusService(stores.Recordings, statusRPC, serviceConfig)
	recordingsService := service.NewRecordingsService(stores.Recordings)
	schedulerService := service.NewSchedulerService(stores.Schedules, scheduleBackend, serviceConfig)
	autoscalingService := service.NewAutoscalingService(stores.Recordings, taskCounter, serviceConfig)
	triggerService := service.NewTriggerService(gateway, scheduleBackend)

	// Start the background tasks
	runBackground(ctx, &gracefulCloseWG, "bus gateway", gateway.Run)
	runBackground(ctx, &gracefulCloseWG, "status indexer", store.NewStatusIndexer(stores.RecordingsKV).Run)
	if localScheduler != nil {
		runBackground(ctx, &gracefulCloseWG, "local scheduler", func(ctx context.Context) error {
			return localScheduler.Run(ctx, fireTrigger(triggerService))
		})
	}

	// Initialize handlers
	botHandler := handlers.NewBotHandler(statusService, autoscalingService)

	api := NewMeetingBotAPI(
		gateway,
		commandService,
		statusService,
		recordingsService,
		schedulerService,
		autoscalingService,
		serviceConfig,
	)

	httpServer := setupHTTPServer(flags, env, api, &gracefulCloseWG)

	// Create NATS subscriptions for the service.
	err = createNatsSubscriptions(ctx, botHandler, natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error creating NATS subscriptions")
		return
	}

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	gracefulShutdown(httpServer, natsConn, otelShutdown, &gracefulCloseWG, cancel)
}
