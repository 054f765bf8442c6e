package connection

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/prestonvasquez/servermon/description"
	"github.com/prestonvasquez/servermon/notifier"
)

func TestCommandErrorReply(t *testing.T) {
	reply, err := bson.Marshal(bson.D{{"ok", 0.0}, {"code", int32(2)}, {"errmsg", "bad value"}})
	require.NoError(t, err)

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "command error with reply",
			err:  mongo.CommandError{Code: 2, Message: "bad value", Raw: reply},
			want: true,
		},
		{
			name: "command error without reply",
			err:  mongo.CommandError{Code: 2, Message: "bad value"},
			want: false,
		},
		{
			name: "network error",
			err:  mongo.CommandError{Labels: []string{"NetworkError"}, Raw: reply},
			want: false,
		},
		{
			name: "max time expired",
			err:  mongo.CommandError{Code: 50, Raw: reply},
			want: false,
		},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
		{name: "plain", err: errors.New("server selection error"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := commandErrorReply(tc.err)
			require.Equal(t, tc.want, ok)

			if tc.want {
				require.Equal(t, bson.Raw(reply), got)
			}
		})
	}
}

func TestStatusCommand(t *testing.T) {
	require.Equal(t, "hello", statusCommand(false)[0].Key)
	require.Equal(t, "isMaster", statusCommand(true)[0].Key)
}

// unusedAddress returns an address nothing is listening on.
func unusedAddress(t *testing.T) description.Address {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return description.Address(addr)
}

func TestRunStatusCommand_Unreachable(t *testing.T) {
	addr := unusedAddress(t)

	factory := NewFactory(addr, WithTimeout(200*time.Millisecond))
	require.Equal(t, addr, factory.Address())

	conn, err := factory.Create(context.Background())
	require.NoError(t, err, "creating a client should not dial")

	defer func() { require.NoError(t, conn.Close()) }()

	res, err := conn.RunStatusCommand(context.Background())
	require.Nil(t, res)
	require.Error(t, err)
	require.True(t, notifier.IsTransportError(err), "expected transport error, got %v", err)
}

func TestClose_Idempotent(t *testing.T) {
	factory := NewFactory(unusedAddress(t), WithTimeout(200*time.Millisecond))

	conn, err := factory.Create(context.Background())
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
}
