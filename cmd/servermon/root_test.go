package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/require"

	"github.com/prestonvasquez/servermon/config"
)

func unusedAddress(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := newLogger("warn", &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")

	_, err = newLogger("loud", &buf)
	require.ErrorIs(t, err, config.ErrInvalidValue)
}

func TestRun_UnreachableServer(t *testing.T) {
	addr := unusedAddress(t)

	cfg, err := config.Parse([]byte(`
heartbeat_interval = "50ms"
timeout = "200ms"

[[servers]]
address = "`+addr+`"
`), ".toml")
	require.NoError(t, err)

	registry := metrics.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, hclog.NewNullLogger(), registry) }()

	changes := "servermon." + addr + ".changes"
	require.Eventually(t, func() bool {
		c, ok := registry.Get(changes).(metrics.Counter)
		return ok && c.Count() == 1
	}, 5*time.Second, 20*time.Millisecond, "the first failed check should report one change")

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}

	failures, ok := registry.Get("servermon." + addr + ".failures").(metrics.Counter)
	require.True(t, ok)
	require.Positive(t, failures.Count())

	var buf bytes.Buffer
	logger, err := newLogger("info", &buf)
	require.NoError(t, err)

	logMetrics(logger, registry)
	require.Contains(t, buf.String(), changes)
}

func TestRootCmd_Errors(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		cmd := NewRootCmd()
		cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.toml")})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})

		err := cmd.Execute()
		require.ErrorIs(t, err, config.ErrConfigLoadFailed)
	})

	t.Run("bad interval flag", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "servermon.yaml")
		require.NoError(t, os.WriteFile(path, []byte("servers:\n  - address: localhost:27017\n"), 0o600))

		cmd := NewRootCmd()
		cmd.SetArgs([]string{"--config", path, "--interval", "-1s"})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})

		err := cmd.Execute()
		require.ErrorIs(t, err, config.ErrInvalidValue)
	})

	t.Run("bad log level flag", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "servermon.yaml")
		require.NoError(t, os.WriteFile(path, []byte("servers:\n  - address: localhost:27017\n"), 0o600))

		cmd := NewRootCmd()
		cmd.SetArgs([]string{"--config", path, "--log-level", "loud"})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})

		err := cmd.Execute()
		require.ErrorIs(t, err, config.ErrInvalidValue)
	})
}
