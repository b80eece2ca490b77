package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStatusConfig(t *testing.T, dir, listenAddr string) string {
	t.Helper()
	configPath := filepath.Join(dir, defaultConfigFile)
	configContent := "keys: [sk-test]\nserver:\n  listen: " + listenAddr + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))
	return configPath
}

func TestFindConfigFileForStatus(t *testing.T) {
	origWd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { require.NoError(t, os.Chdir(origWd)) }()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, defaultConfigFile)
	require.NoError(t, os.WriteFile(configPath, []byte("keys: [sk-test]\n"), 0o600))
	require.NoError(t, os.Chdir(tmpDir))

	found := findConfigFileForStatus()
	assert.Equal(t, defaultConfigFile, found)
}

func TestRunStatusServerRunning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	serverAddr := server.URL[len("http://"):]

	tmpDir := t.TempDir()
	configPath := writeStatusConfig(t, tmpDir, serverAddr)

	err := checkStatusWithConfig(&cobra.Command{}, configPath)
	assert.NoError(t, err)
}

func TestRunStatusServerNotRunning(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeStatusConfig(t, tmpDir, "127.0.0.1:19999")

	err := checkStatusWithConfig(&cobra.Command{}, configPath)
	assert.Error(t, err)
}

func TestRunStatusServerUnhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	serverAddr := server.URL[len("http://"):]

	tmpDir := t.TempDir()
	configPath := writeStatusConfig(t, tmpDir, serverAddr)

	err := checkStatusWithConfig(&cobra.Command{}, configPath)
	assert.Error(t, err)
}

func TestRunStatusInvalidConfig(t *testing.T) {
	err := checkStatusWithConfig(&cobra.Command{}, "/nonexistent/path/"+defaultConfigFile)
	assert.Error(t, err)
}
