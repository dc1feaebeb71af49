// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

// Constants for the HTTP request headers
const (
	// RequestIDHeader is the header name for the request ID
	RequestIDHeader string = "X-REQUEST-ID"

	// IdempotencyKeyHeader carries a client chosen key used to de-duplicate start commands
	IdempotencyKeyHeader string = "Idempotency-Key"

	// ContentTypeHeader is the header name for the response content type
	ContentTypeHeader string = "Content-Type"

	// ContentTypeJSON is the content type of every API response
	ContentTypeJSON string = "application/json"
)

// contextRequestID is the type for the request ID context key
type contextRequestID string

// RequestIDContextID is the context ID for the request ID
const RequestIDContextID contextRequestID = "X-REQUEST-ID"

// HTTP routes of the control plane
const (
	RouteHealth        = "/"
	RouteLivez         = "/livez"
	RouteReadyz        = "/readyz"
	RouteMetrics       = "/metrics"
	RouteStartMeeting  = "/start-meeting"
	RoutePauseMeeting  = "/pause-meeting"
	RouteResumeMeeting = "/resume-meeting"
	RouteStopMeeting   = "/stop-meeting"
	RouteBotStatus     = "/bot-status"
	RouteRecordings    = "/recordings"
	RouteCalendarHook  = "/webhook/calendar"
	RouteScaleStatus   = "/scale/status"
)

// IsProbeRoute reports whether path is polled by load balancers or the orchestrator.
func IsProbeRoute(path string) bool {
	switch path {
	case RouteHealth, RouteLivez, RouteReadyz, RouteMetrics:
		return true
	}
	return false
}
