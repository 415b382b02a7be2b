package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remedian/remedian/internal/daemon"
)

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{"lambda", "worker", "sweep", "daemon"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestMetricsServer_Health(t *testing.T) {
	d, err := daemon.New(nil, nil, daemon.Config{})
	require.NoError(t, err)

	srv := metricsServer(d)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestMetricsServer_Metrics(t *testing.T) {
	d, err := daemon.New(nil, nil, daemon.Config{})
	require.NoError(t, err)

	srv := metricsServer(d)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
