// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	awsscheduler "github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/infrastructure/orchestrator"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/infrastructure/scheduler"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/constants"
)

const (
	// gracefulShutdownSeconds should be higher than NATS client
	// request timeout, and lower than the pod or liveness probe's
	// terminationGracePeriodSeconds.
	gracefulShutdownSeconds = 25

	natsClientName = "lfx-v2-meeting-bot-service"
)

// keyValueStores are the KV buckets of the service and the repositories over them.
type keyValueStores struct {
	Recordings       *store.NatsRecordingRepository
	Schedules        *store.NatsScheduleRepository
	RecordingsKV     jetstream.KeyValue
	PendingTriggerKV jetstream.KeyValue
}

// setupNATS connects to NATS for the key-value stores and the request/reply
// subjects. A connection closed before shutdown was requested stops the service.
func setupNATS(ctx context.Context, env environment, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	gracefulCloseWG.Add(1)
	conn, err := nats.Connect(
		env.NatsURL,
		nats.Name(natsClientName),
		nats.Timeout(env.NatsTimeout),
		nats.MaxReconnects(env.NatsMaxReconnect),
		nats.ReconnectWait(env.NatsReconnectWait),
		nats.DrainTimeout(gracefulShutdownSeconds*time.Second),
		nats.ConnectHandler(func(_ *nats.Conn) {
			slog.With("nats_url", env.NatsURL).Info("NATS connection established")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.With("nats_url", env.NatsURL).Warn("NATS connection re-established")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				slog.With(logging.ErrKey, err, "subject", s.Subject, "queue", s.Queue).Error("async NATS error")
			} else {
				slog.With(logging.ErrKey, err).Error("async NATS error outside subscription")
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if ctx.Err() != nil {
				// Shutdown is in progress; report the drain as complete.
				slog.Info("NATS connection closed gracefully")
				gracefulCloseWG.Done()
				return
			}
			slog.Error("NATS connection closed unexpectedly, stopping the service")
			gracefulCloseWG.Done()
			select {
			case done <- os.Interrupt:
			default:
			}
		}),
	)
	if err != nil {
		gracefulCloseWG.Done()
		return nil, fmt.Errorf("connect to %s: %w", env.NatsURL, err)
	}
	return conn, nil
}

// getKeyValueStores opens the service's buckets, creating those that are missing.
func getKeyValueStores(ctx context.Context, natsConn *nats.Conn) (*keyValueStores, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	recordingsKV, err := keyValueBucket(ctx, js, store.KVStoreNameRecordings, 5)
	if err != nil {
		return nil, err
	}
	schedulesKV, err := keyValueBucket(ctx, js, store.KVStoreNameSchedules, 1)
	if err != nil {
		return nil, err
	}
	pendingKV, err := keyValueBucket(ctx, js, store.KVStoreNamePendingSchedules, 1)
	if err != nil {
		return nil, err
	}

	return &keyValueStores{
		Recordings:       store.NewNatsRecordingRepository(recordingsKV),
		Schedules:        store.NewNatsScheduleRepository(schedulesKV),
		RecordingsKV:     recordingsKV,
		PendingTriggerKV: pendingKV,
	}, nil
}

func keyValueBucket(ctx context.Context, js jetstream.JetStream, bucket string, history uint8) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("open bucket %s: %w", bucket, err)
	}

	slog.With("bucket", bucket).Info("creating NATS KV bucket")
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		History: history,
		Storage: jetstream.FileStorage,
	})
	if err != nil && !errors.Is(err, jetstream.ErrBucketExists) {
		return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	if err != nil {
		// Another replica created it first.
		return js.KeyValue(ctx, bucket)
	}
	return kv, nil
}

// setupBusGateway builds the gateway owning the command bus session. Its status
// reply subscription is renewed on every new session.
func setupBusGateway(env environment) (*messaging.BusGateway, *messaging.StatusRPCClient) {
	dialer := messaging.NewNatsDialer(messaging.NatsDialerConfig{
		URL:             env.NatsURL,
		Name:            natsClientName + "-bus",
		Timeout:         env.NatsTimeout,
		StreamMaxAge:    env.CommandStreamMaxAge,
		DuplicateWindow: env.CommandDuplicateWindow,
	})
	gateway := messaging.NewBusGateway(dialer, messaging.WithReconnectDelay(env.BusReconnectDelay))

	statusRPC := messaging.NewStatusRPCClient(gateway, env.StatusRPCTimeout)
	gateway.OnReady(statusRPC.Subscribe)

	return gateway, statusRPC
}

// loadAWSConfig loads the shared AWS configuration when a backend needs it.
func loadAWSConfig(ctx context.Context, env environment) (*aws.Config, error) {
	if env.SchedulerBackend != schedulerBackendEventBridge && env.OrchestratorBackend != orchestratorBackendECS {
		return nil, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}
	return &cfg, nil
}

// setupScheduleBackend returns the configured schedule backend. The local backend
// is also returned on its own so that its timer loop can be started.
func setupScheduleBackend(env environment, awsCfg *aws.Config, stores *keyValueStores) (domain.ScheduleBackend, *scheduler.LocalBackend) {
	if env.SchedulerBackend == schedulerBackendEventBridge {
		client := awsscheduler.NewFromConfig(*awsCfg)
		return scheduler.NewEventBridgeBackend(client, scheduler.EventBridgeConfig{
			TargetARN: env.SchedulerTargetARN,
			RoleARN:   env.SchedulerRoleARN,
		}), nil
	}

	local := scheduler.NewLocalBackend(stores.PendingTriggerKV)
	return local, local
}

// setupTaskCounter returns the orchestrator task counter, or nil when disabled.
func setupTaskCounter(env environment, awsCfg *aws.Config) domain.TaskCounter {
	if env.OrchestratorBackend != orchestratorBackendECS {
		return nil
	}
	return orchestrator.NewECSTaskCounter(ecs.NewFromConfig(*awsCfg), orchestrator.ECSConfig{
		Environment: env.Environment,
		Cluster:     env.ECSCluster,
		Service:     env.ECSService,
	})
}

// fireTrigger adapts the trigger service to the local backend's callback.
func fireTrigger(triggerService *service.TriggerService) scheduler.FireFunc {
	return func(ctx context.Context, input models.TriggerInput) error {
		_, err := triggerService.Fire(ctx, input)
		return err
	}
}

// runBackground runs fn until ctx is done, tracked by the graceful close wait group.
func runBackground(ctx context.Context, gracefulCloseWG *sync.WaitGroup, name string, fn func(ctx context.Context) error) {
	gracefulCloseWG.Add(1)
	go func() {
		defer gracefulCloseWG.Done()
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			slog.With(logging.ErrKey, err, "task", name).Error("background task stopped", logging.PriorityCritical())
		}
	}()
}

// createNatsSubscriptions subscribes the bot handler to its request subjects.
func createNatsSubscriptions(ctx context.Context, botHandler *handlers.BotHandler, natsConn *nats.Conn) error {
	slog.With("nats_url", natsConn.ConnectedUrl()).InfoContext(ctx, "subscribing to NATS subjects")
	_, err := messaging.SubscribeHandler(ctx, natsConn, constants.MeetBotAPIQueue, botHandler, botHandler.Subjects()...)
	return err
}

// gracefulShutdown stops accepting requests, stops the background tasks and
// drains NATS, waiting at most gracefulShutdownSeconds.
func gracefulShutdown(
	httpServer *http.Server,
	natsConn *nats.Conn,
	otelShutdown func(context.Context) error,
	gracefulCloseWG *sync.WaitGroup,
	cancel context.CancelFunc,
) {
	slog.Info("graceful shutdown started")

	ctx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownSeconds*time.Second)
	defer shutdownCancel()

	go func() {
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.With(logging.ErrKey, err).Error("http shutdown error")
		}
		// Decrement the wait group only once the shutdown has completed.
		gracefulCloseWG.Done()
	}()

	// Stops the bus gateway, the status indexer and the local scheduler.
	cancel()

	if !natsConn.IsClosed() && !natsConn.IsDraining() {
		slog.Info("draining NATS connections")
		if err := natsConn.Drain(); err != nil {
			slog.With(logging.ErrKey, err).Error("error draining NATS connection")
		}
	}

	waitC := make(chan struct{})
	go func() {
		gracefulCloseWG.Wait()
		close(waitC)
	}()

	select {
	case <-waitC:
		slog.Info("graceful shutdown completed")
	case <-ctx.Done():
		slog.Warn("graceful shutdown timed out")
	}

	if otelShutdown != nil {
		if err := otelShutdown(context.Background()); err != nil {
			slog.With(logging.ErrKey, err).Error("error shutting down OpenTelemetry")
		}
	}
}
