package servermon

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prestonvasquez/servermon/connection"
	"github.com/prestonvasquez/servermon/description"
	"github.com/prestonvasquez/servermon/mongoevent"
	"github.com/prestonvasquez/servermon/mongolocal"
	"github.com/prestonvasquez/servermon/monitor"
	"github.com/prestonvasquez/servermon/notifier"
)

// awaitState polls the recorder until the latest reported description is in
// the wanted state or ctx is done.
func awaitState(ctx context.Context, sm *mongoevent.ServerMonitor, want description.ConnectionState) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for server state %s", want)
		case <-ticker.C:
			if latest, ok := sm.LatestDescription(); ok && latest.State() == want {
				return nil
			}
		}
	}
}

func TestMonitorServerLifecycle(t *testing.T) {
	ctx := context.Background()

	_, teardown, env := mongolocal.NewWithEnv(t, ctx)

	serverM := mongoevent.NewServerMonitor()
	n := notifier.New(connection.NewFactory(env.Address(), connection.WithTimeout(time.Second)), serverM)

	m := monitor.New(n,
		monitor.WithInterval(100*time.Millisecond),
		monitor.WithCheckTimeout(time.Second))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)

	go func() { done <- m.Run(runCtx) }()

	awaitCtx, awaitCancel := context.WithTimeout(ctx, 10*time.Second)
	defer awaitCancel()

	require.NoError(t, awaitState(awaitCtx, serverM, description.Connected))

	latest, _ := serverM.LatestDescription()
	require.Equal(t, description.Standalone, latest.Type())

	// Take the server away underneath the running monitor.
	teardown(t)

	require.NoError(t, awaitState(awaitCtx, serverM, description.Unconnected))

	events := serverM.Events()
	require.GreaterOrEqual(t, len(events), 2)
	require.Equal(t, description.Connecting, events[0].Previous.State())

	for i := 1; i < len(events); i++ {
		require.True(t, events[i-1].Current.Equal(events[i].Previous), "events should chain")
		require.False(t, events[i].Previous.Equal(events[i].Current), "events should only report changes")
	}

	cancel()
	require.NoError(t, <-done)
	require.True(t, n.Closed())
}
