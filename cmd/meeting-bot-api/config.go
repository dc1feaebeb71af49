// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
)

// Scheduler and orchestrator backends selectable through the environment.
const (
	schedulerBackendEventBridge = "eventbridge"
	schedulerBackendLocal       = "local"

	orchestratorBackendECS  = "ecs"
	orchestratorBackendNone = "none"
)

// flags are the command line flags for the meeting bot service.
type flags struct {
	Debug bool
	Port  string
	Bind  string
}

// environment are the environment variables for the meeting bot service.
type environment struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"dev"`

	NatsURL           string        `env:"NATS_URL" env-default:"nats://localhost:4222"`
	NatsTimeout       time.Duration `env:"NATS_TIMEOUT" env-default:"10s"`
	NatsMaxReconnect  int           `env:"NATS_MAX_RECONNECT" env-default:"3"`
	NatsReconnectWait time.Duration `env:"NATS_RECONNECT_WAIT" env-default:"2s"`

	BusReconnectDelay      time.Duration `env:"BUS_RECONNECT_DELAY" env-default:"5s"`
	CommandStreamMaxAge    time.Duration `env:"COMMAND_STREAM_MAX_AGE" env-default:"24h"`
	CommandDuplicateWindow time.Duration `env:"COMMAND_DUPLICATE_WINDOW" env-default:"2m"`
	StatusRPCTimeout       time.Duration `env:"STATUS_RPC_TIMEOUT" env-default:"5s"`

	SchedulerBackend   string `env:"SCHEDULER_BACKEND" env-default:"local"`
	SchedulerTargetARN string `env:"SCHEDULER_TARGET_ARN"`
	SchedulerRoleARN   string `env:"SCHEDULER_ROLE_ARN"`

	OrchestratorBackend string `env:"ORCHESTRATOR_BACKEND" env-default:"none"`
	ECSCluster          string `env:"ECS_CLUSTER"`
	ECSService          string `env:"ECS_SERVICE"`

	MaxInstances int `env:"MAX_INSTANCES" env-default:"10"`
	MinInstances int `env:"MIN_INSTANCES" env-default:"0"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-separator:","`
}

// parseFlags parses command line flags for the meeting bot service
func parseFlags(defaultPort string) flags {
	var debug = flag.Bool("d", false, "enable debug logging")
	var port = flag.String("p", defaultPort, "listen port")
	var bind = flag.String("bind", "*", "interface to bind on")

	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	// Based on the debug flag, set the log level environment variable used by [log.InitStructureLogConfig]
	if *debug {
		err := os.Setenv("LOG_LEVEL", "debug")
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error setting log level")
			os.Exit(1)
		}
	}

	return flags{
		Debug: *debug,
		Port:  *port,
		Bind:  *bind,
	}
}

// parseEnv loads an optional .env file and reads the environment variables for
// the meeting bot service. It exits on unusable configuration.
func parseEnv() environment {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.With(logging.ErrKey, err).Warn("error loading .env file")
	}

	env, err := readEnv()
	if err != nil {
		slog.With(logging.ErrKey, err).Error("invalid configuration")
		os.Exit(1)
	}
	return env
}

func readEnv() (environment, error) {
	var env environment
	if err := cleanenv.ReadEnv(&env); err != nil {
		return environment{}, err
	}

	env.Environment = normalizeEnvironment(env.Environment)

	switch env.SchedulerBackend {
	case schedulerBackendLocal:
	case schedulerBackendEventBridge:
		if env.SchedulerTargetARN == "" || env.SchedulerRoleARN == "" {
			return environment{}, errors.New("SCHEDULER_TARGET_ARN and SCHEDULER_ROLE_ARN are required by the eventbridge scheduler")
		}
	default:
		return environment{}, errors.New("SCHEDULER_BACKEND must be one of eventbridge, local")
	}

	switch env.OrchestratorBackend {
	case orchestratorBackendECS, orchestratorBackendNone:
	default:
		return environment{}, errors.New("ORCHESTRATOR_BACKEND must be one of ecs, none")
	}

	if env.MaxInstances < 1 || env.MinInstances < 0 || env.MinInstances > env.MaxInstances {
		return environment{}, errors.New("MIN_INSTANCES and MAX_INSTANCES must satisfy 0 <= min <= max, max >= 1")
	}

	return env, nil
}

// normalizeEnvironment maps the accepted spellings of an environment onto the
// short names used in schedule groups and orchestrator resource names.
func normalizeEnvironment(raw string) string {
	switch raw {
	case "dev", "development":
		return "dev"
	case "staging", "stg", "stage":
		return "staging"
	case "prod", "production":
		return "prod"
	default:
		return raw
	}
}
