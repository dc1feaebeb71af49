// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

import "time"

// Bot session timing
const (
	// HeartbeatStaleAfter is the staleness window: a bot whose last heartbeat is older
	// is considered unreachable.
	HeartbeatStaleAfter = 5 * time.Minute

	// ScheduleLeadTime is how long before a meeting starts the bot is started.
	ScheduleLeadTime = 5 * time.Minute

	// RecentStartWindow is how far in the past a meeting may have started and still be
	// joined immediately.
	RecentStartWindow = 30 * time.Minute

	// DefaultStatusRPCTimeout bounds how long a live status request waits for the bot.
	DefaultStatusRPCTimeout = 5 * time.Second

	// DefaultBusReconnectDelay is the fixed pause between bus reconnect attempts.
	DefaultBusReconnectDelay = 5 * time.Second

	// MaxConcurrentMeetingsPerInstance is how many meetings one bot task records at once.
	MaxConcurrentMeetingsPerInstance = 1
)
