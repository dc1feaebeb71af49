// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
)

// environment are the environment variables of the trigger function.
type environment struct {
	Environment string `env:"ENVIRONMENT" env-default:"dev"`

	NatsURL     string        `env:"NATS_URL" env-default:"nats://localhost:4222"`
	NatsTimeout time.Duration `env:"NATS_TIMEOUT" env-default:"10s"`

	BusReconnectDelay      time.Duration `env:"BUS_RECONNECT_DELAY" env-default:"5s"`
	BusReadyTimeout        time.Duration `env:"BUS_READY_TIMEOUT" env-default:"10s"`
	CommandStreamMaxAge    time.Duration `env:"COMMAND_STREAM_MAX_AGE" env-default:"24h"`
	CommandDuplicateWindow time.Duration `env:"COMMAND_DUPLICATE_WINDOW" env-default:"2m"`
}

// parseEnv reads the environment, loading an optional .env file first.
func parseEnv() environment {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.With(logging.ErrKey, err).Warn("error loading .env file")
	}

	var env environment
	if err := cleanenv.ReadEnv(&env); err != nil {
		slog.With(logging.ErrKey, err).Error("invalid environment")
		os.Exit(1)
	}
	return env
}
