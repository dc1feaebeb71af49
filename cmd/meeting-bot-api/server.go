// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	goahttp "goa.design/goa/v3/http"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/infrastructure/metrics"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/middleware"
	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/pkg/constants"
)

// newHTTPHandler mounts the API routes and wraps them in the middleware chain.
func newHTTPHandler(api *MeetingBotAPI, allowedOrigins []string) http.Handler {
	mux := goahttp.NewMuxer()

	mux.Handle(http.MethodGet, constants.RouteHealth, api.Health)
	mux.Handle(http.MethodGet, constants.RouteLivez, api.Livez)
	mux.Handle(http.MethodGet, constants.RouteReadyz, api.Readyz)
	mux.Handle(http.MethodGet, constants.RouteMetrics, metrics.Handler().ServeHTTP)

	mux.Handle(http.MethodPost, constants.RouteStartMeeting, api.StartMeeting)
	mux.Handle(http.MethodPost, constants.RoutePauseMeeting, api.PauseMeeting)
	mux.Handle(http.MethodPost, constants.RouteResumeMeeting, api.ResumeMeeting)
	mux.Handle(http.MethodPost, constants.RouteStopMeeting, api.StopMeeting)
	mux.Handle(http.MethodGet, constants.RouteBotStatus, api.BotStatus)
	mux.Handle(http.MethodGet, constants.RouteRecordings, api.Recordings)
	mux.Handle(http.MethodPost, constants.RouteCalendarHook, api.CalendarWebhook)
	mux.Handle(http.MethodGet, constants.RouteScaleStatus, api.ScaleStatus)

	var handler http.Handler = mux

	// Add HTTP middleware
	// Note: Order matters - RequestIDMiddleware should come first in the chain,
	// so it should be the last middleware added to the handler since it is executed in reverse order.
	handler = middleware.WebhookBodyCaptureMiddleware(constants.RouteCalendarHook)(handler)
	handler = middleware.RequestLoggerMiddleware()(handler)
	handler = middleware.RequestIDMiddleware()(handler)

	if len(allowedOrigins) > 0 {
		handler = cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", constants.ContentTypeHeader, constants.RequestIDHeader, constants.IdempotencyKeyHeader},
			ExposedHeaders: []string{constants.RequestIDHeader},
			MaxAge:         300,
		})(handler)
	}

	return otelhttp.NewHandler(handler, "meeting-bot-api", otelhttp.WithFilter(func(r *http.Request) bool {
		return !constants.IsProbeRoute(r.URL.Path)
	}))
}

// setupHTTPServer configures and starts the HTTP server
func setupHTTPServer(flags flags, env environment, api *MeetingBotAPI, gracefulCloseWG *sync.WaitGroup) *http.Server {
	// Set up http listener in a goroutine using provided command line parameters.
	var addr string
	if flags.Bind == "*" {
		addr = ":" + flags.Port
	} else {
		addr = flags.Bind + ":" + flags.Port
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           newHTTPHandler(api, env.CORSAllowedOrigins),
		ReadHeaderTimeout: 3 * time.Second,
	}
	gracefulCloseWG.Add(1)
	go func() {
		slog.With("addr", addr).Debug("starting http server, listening on port " + flags.Port)
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			slog.With(logging.ErrKey, err).Error("http listener error")
			os.Exit(1)
		}
		// Because ErrServerClosed is *immediately* returned when Shutdown is
		// called, not when when Shutdown completes, this must not yet decrement
		// the wait group.
	}()

	return httpServer
}
