// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsPublished(t *testing.T) {
	before := testutil.ToFloat64(CommandsPublished.WithLabelValues("pause", OutcomeSuccess))
	CommandsPublished.WithLabelValues("pause", OutcomeSuccess).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CommandsPublished.WithLabelValues("pause", OutcomeSuccess)))
}

func TestHandler(t *testing.T) {
	BusState.Set(2)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "meet_bot_bus_state 2")
	assert.Contains(t, string(body), "go_goroutines")
}
