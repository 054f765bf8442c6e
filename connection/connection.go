// Package connection opens monitoring connections to a MongoDB server with
// the Go driver and runs the status command over them.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/event"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/prestonvasquez/servermon/description"
	"github.com/prestonvasquez/servermon/notifier"
)

const (
	// DefaultTimeout bounds connection establishment and server selection.
	DefaultTimeout = 5 * time.Second

	// DefaultAppName is reported to the server in the connection handshake.
	DefaultAppName = "servermon"
)

type factoryOptions struct {
	timeout           time.Duration
	appName           string
	legacyHello       bool
	heartbeatInterval time.Duration
	commandMonitor    *event.CommandMonitor
	poolMonitor       *event.PoolMonitor
}

// Option configures NewFactory.
type Option func(*factoryOptions)

// WithTimeout sets the connect and server selection timeout. It also bounds
// status commands run with a context that has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *factoryOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithAppName sets the application name sent in the handshake.
func WithAppName(name string) Option {
	return func(o *factoryOptions) {
		o.appName = name
	}
}

// WithLegacyHello sends the status command as isMaster instead of hello, for
// servers older than 4.4.2.
func WithLegacyHello(legacy bool) Option {
	return func(o *factoryOptions) {
		o.legacyHello = legacy
	}
}

// WithHeartbeatInterval sets the driver's own heartbeat interval for the
// underlying client.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(o *factoryOptions) {
		o.heartbeatInterval = d
	}
}

// WithCommandMonitor attaches a command monitor to every client the factory
// creates.
func WithCommandMonitor(m *event.CommandMonitor) Option {
	return func(o *factoryOptions) {
		o.commandMonitor = m
	}
}

// WithPoolMonitor attaches a pool monitor to every client the factory
// creates.
func WithPoolMonitor(m *event.PoolMonitor) Option {
	return func(o *factoryOptions) {
		o.poolMonitor = m
	}
}

// Factory creates direct connections to a single server.
type Factory struct {
	addr description.Address
	opts factoryOptions
}

var _ notifier.ConnectionFactory = (*Factory)(nil)

// NewFactory creates a Factory for the server at addr ("host:port").
func NewFactory(addr description.Address, optionFuncs ...Option) *Factory {
	opts := factoryOptions{
		timeout: DefaultTimeout,
		appName: DefaultAppName,
	}

	for _, apply := range optionFuncs {
		apply(&opts)
	}

	return &Factory{addr: addr, opts: opts}
}

// Address returns the address connections are made to.
func (f *Factory) Address() description.Address {
	return f.addr
}

// Create builds a client bound directly to the factory's server. The driver
// dials lazily, so an unreachable server surfaces as a transport error from
// the first status command rather than from Create.
func (f *Factory) Create(_ context.Context) (notifier.Connection, error) {
	clientOpts := options.Client().
		ApplyURI("mongodb://" + f.addr.String()).
		SetDirect(true).
		SetMaxPoolSize(1).
		SetAppName(f.opts.appName).
		SetConnectTimeout(f.opts.timeout).
		SetServerSelectionTimeout(f.opts.timeout)

	if f.opts.heartbeatInterval > 0 {
		clientOpts.SetHeartbeatInterval(f.opts.heartbeatInterval)
	}

	if f.opts.commandMonitor != nil {
		clientOpts.SetMonitor(f.opts.commandMonitor)
	}

	if f.opts.poolMonitor != nil {
		clientOpts.SetPoolMonitor(f.opts.poolMonitor)
	}

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", f.addr, err)
	}

	return &Connection{
		addr:    f.addr,
		client:  client,
		command: statusCommand(f.opts.legacyHello),
		timeout: f.opts.timeout,
	}, nil
}

func statusCommand(legacy bool) bson.D {
	if legacy {
		return bson.D{{Key: "isMaster", Value: 1}}
	}

	return bson.D{{Key: "hello", Value: 1}}
}

// Connection runs status commands against one server.
type Connection struct {
	addr    description.Address
	client  *mongo.Client
	command bson.D
	timeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

var _ notifier.Connection = (*Connection)(nil)

// RunStatusCommand runs the status command on the admin database. A reply
// with ok: 0 is returned as a result with OK unset; every failure to get a
// reply is wrapped with notifier.ErrTransport.
func (c *Connection) RunStatusCommand(ctx context.Context) (*notifier.CommandResult, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := c.client.Database("admin").RunCommand(ctx, c.command).Raw()
	elapsed := time.Since(start)

	if err == nil {
		return &notifier.CommandResult{Address: c.addr, OK: true, Elapsed: elapsed, Response: raw}, nil
	}

	if reply, ok := commandErrorReply(err); ok {
		return &notifier.CommandResult{Address: c.addr, OK: false, Elapsed: elapsed, Response: reply}, nil
	}

	return nil, fmt.Errorf("%w: %s: %w", notifier.ErrTransport, c.addr, err)
}

// commandErrorReply returns the server's reply when err is a command error
// the server sent back, as opposed to a network failure or a timeout.
func commandErrorReply(err error) (bson.Raw, bool) {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return nil, false
	}

	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) || len(cmdErr.Raw) == 0 {
		return nil, false
	}

	return cmdErr.Raw, true
}

// Close disconnects the client. Only the first call has an effect.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		c.closeErr = c.client.Disconnect(ctx)
	})

	return c.closeErr
}
