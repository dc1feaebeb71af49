// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import "time"

type Service interface {
	ServiceReady() bool
}

// ServiceConfig is the configuration for the Services.
type ServiceConfig struct {
	// Environment names the deployment; it is part of schedule names and of the
	// orchestration resource names.
	Environment string
	// MaxInstances and MinInstances bound the bot task count the scaling policy may request.
	MaxInstances int
	MinInstances int
}

// clock is replaced in tests.
type clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
