package connection_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prestonvasquez/servermon/connection"
	"github.com/prestonvasquez/servermon/description"
	"github.com/prestonvasquez/servermon/failpoint"
	"github.com/prestonvasquez/servermon/mongoevent"
	"github.com/prestonvasquez/servermon/mongolocal"
	"github.com/prestonvasquez/servermon/notifier"
)

func TestStandalone(t *testing.T) {
	ctx := context.Background()

	_, teardown, env := mongolocal.NewWithEnv(t, ctx)
	defer teardown(t)

	poolM := mongoevent.NewPoolMonitor()
	cmdM := mongoevent.NewCommandMonitor()
	factory := connection.NewFactory(env.Address(),
		connection.WithPoolMonitor(mongoevent.NewPoolEventMonitor(poolM)),
		connection.WithCommandMonitor(mongoevent.NewCommandEventMonitor(cmdM)))

	recorder := mongoevent.NewServerMonitor()
	n := notifier.New(factory, recorder)

	n.Check(ctx)

	desc := n.Description()
	require.Equal(t, description.Connected, desc.State())
	require.Equal(t, description.Standalone, desc.Type())
	require.True(t, desc.OK())
	require.Greater(t, desc.AverageRTT(), time.Duration(0))
	require.Greater(t, desc.MaxDocumentSize(), 0)
	require.Len(t, recorder.Events(), 1)
	require.Empty(t, cmdM.FailedErrors())
	require.Equal(t, 1, poolM.ConnsReady(env.Address().String()))

	n.Check(ctx)
	require.Len(t, recorder.Events(), 1, "an unchanged server should not be reported again")

	require.NoError(t, n.Close())
	require.True(t, poolM.PoolClosed(env.Address().String()), "closing the notifier should disconnect its client")
}

func TestReplicaSetPrimary(t *testing.T) {
	ctx := context.Background()

	_, teardown, env := mongolocal.NewWithEnv(t, ctx, mongolocal.WithReplicaSet("rs0"))
	defer teardown(t)

	n := notifier.New(connection.NewFactory(env.Address()), mongoevent.NewServerMonitor())
	defer n.Close()

	// The single member needs a moment to elect itself.
	require.Eventually(t, func() bool {
		n.Check(ctx)
		return n.Description().Type() == description.ReplicaSetPrimary
	}, 30*time.Second, 250*time.Millisecond)

	setName, ok := n.Description().SetName()
	require.True(t, ok)
	require.Equal(t, "rs0", setName)
	require.Equal(t, 1, n.Description().Hosts().Len())
}

func TestStatusCommandFailures(t *testing.T) {
	const appName = "servermon-failpoint"

	ctx := context.Background()

	client, teardown, env := mongolocal.NewWithEnv(t, ctx, mongolocal.WithEnableTestCommands())
	defer teardown(t)

	factory := connection.NewFactory(env.Address(),
		connection.WithAppName(appName),
		connection.WithTimeout(2*time.Second),
		connection.WithHeartbeatInterval(500*time.Millisecond))

	recorder := mongoevent.NewServerMonitor()
	n := notifier.New(factory, recorder)
	defer n.Close()

	n.Check(ctx)
	require.Equal(t, description.Connected, n.Description().State())

	t.Run("command error", func(t *testing.T) {
		fpTeardown := failpoint.Enable(t, client, failpoint.NewStatusCommandErr(appName, 2))

		require.Eventually(t, func() bool {
			n.Check(ctx)
			return !n.Description().OK()
		}, 20*time.Second, 250*time.Millisecond)

		fpTeardown(t)

		require.NotEqual(t, description.Connecting, n.Description().State())
	})

	t.Run("closed connection", func(t *testing.T) {
		fpTeardown := failpoint.Enable(t, client, failpoint.NewStatusCommandCloseConnection(appName))

		require.Eventually(t, func() bool {
			n.Check(ctx)
			return n.Description().State() == description.Unconnected
		}, 20*time.Second, 250*time.Millisecond)

		fpTeardown(t)

		require.Eventually(t, func() bool {
			n.Check(ctx)
			return n.Description().State() == description.Connected && n.Description().OK()
		}, 20*time.Second, 250*time.Millisecond)
	})

	t.Run("blocked status command", func(t *testing.T) {
		fpTeardown := failpoint.Enable(t, client, failpoint.NewStatusCommandBlock(appName, 3*time.Second))

		require.Eventually(t, func() bool {
			n.Check(ctx)
			return n.Description().State() == description.Unconnected
		}, 30*time.Second, 250*time.Millisecond)

		fpTeardown(t)

		require.Eventually(t, func() bool {
			n.Check(ctx)
			return n.Description().State() == description.Connected
		}, 30*time.Second, 250*time.Millisecond)
	})
}
