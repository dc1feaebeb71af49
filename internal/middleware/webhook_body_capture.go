// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"slices"
)

// MaxWebhookBodyBytes bounds the size of a captured webhook body.
const MaxWebhookBodyBytes = 1 << 20

// WebhookBodyContextKey is the context key for storing raw webhook body
type WebhookBodyContextKey struct{}

// WebhookBodyCaptureMiddleware captures the raw request body of the given webhook
// paths and stores it in the request context, so that payloads rejected by the
// handler can be logged as received.
func WebhookBodyCaptureMiddleware(paths ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(paths, r.URL.Path) {
				body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBodyBytes))
				if err != nil {
					http.Error(w, "Failed to read request body", http.StatusBadRequest)
					return
				}

				_ = r.Body.Close()

				// Create a new reader with the same data for the next handler
				r.Body = io.NopCloser(bytes.NewReader(body))

				ctx := context.WithValue(r.Context(), WebhookBodyContextKey{}, body)
				r = r.WithContext(ctx)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetRawBodyFromContext extracts the raw body from the context
func GetRawBodyFromContext(ctx context.Context) ([]byte, bool) {
	body, ok := ctx.Value(WebhookBodyContextKey{}).([]byte)
	return body, ok
}
