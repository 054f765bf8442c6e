package notifier

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/prestonvasquez/servermon/description"
)

// ErrTransport marks errors raised by the transport (dialing, socket I/O,
// timeouts) rather than by the server replying with a failure. Connections and
// factories wrap their transport errors with it.
var ErrTransport = errors.New("transport error")

// IsTransportError reports whether err is a transport failure.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrTransport)
}

// ConnectionFactory opens connections to a single server.
type ConnectionFactory interface {
	// Create opens a new connection to the server.
	Create(ctx context.Context) (Connection, error)
	// Address is the address of the server connections are opened to.
	Address() description.Address
}

// Connection is a connection a status command can be run on.
type Connection interface {
	// RunStatusCommand runs the status command and returns its reply.
	RunStatusCommand(ctx context.Context) (*CommandResult, error)
	// Close releases the connection. Calling it more than once is harmless.
	Close() error
}

// CommandResult is the outcome of a status command that reached the server.
type CommandResult struct {
	Address  description.Address
	OK       bool
	Elapsed  time.Duration
	Response bson.Raw
}

// ChangeEvent is delivered to a Listener when a server's description changes.
type ChangeEvent struct {
	Previous description.Server
	Current  description.Server
}

// Listener is notified when a server's description changes. It is called on
// the goroutine running Notifier.Check and must not call back into the same
// Notifier.
type Listener interface {
	ServerDescriptionChanged(evt *ChangeEvent)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(evt *ChangeEvent)

func (f ListenerFunc) ServerDescriptionChanged(evt *ChangeEvent) { f(evt) }
