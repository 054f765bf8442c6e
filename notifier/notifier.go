// Package notifier monitors the state of a single MongoDB server. Each call to
// Notifier.Check runs the status command against the server, rebuilds the
// server's description and tells a Listener when that description changed.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/rcrowley/go-metrics"

	"github.com/prestonvasquez/servermon/description"
)

// errClosed is returned internally when a check races with Close.
var errClosed = errors.New("notifier closed")

type options struct {
	logger   hclog.Logger
	registry metrics.Registry
	id       uuid.UUID
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger description changes and failures are reported to.
func WithLogger(logger hclog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics registers a status command timer and a failure counter for the
// server in registry.
func WithMetrics(registry metrics.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithID overrides the randomly generated notifier ID used in log lines.
func WithID(id uuid.UUID) Option {
	return func(o *options) {
		o.id = id
	}
}

// heldConn gives every opened connection a comparable identity.
type heldConn struct {
	Connection
}

// Notifier tracks the description of one server. Check may be called from any
// goroutine; calls are serialized. Description may be called concurrently
// with Check.
type Notifier struct {
	id       uuid.UUID
	factory  ConnectionFactory
	listener Listener
	logger   hclog.Logger

	statusTimer metrics.Timer
	failures    metrics.Counter

	// checkMu serializes checks and guards count and elapsedSum.
	checkMu    sync.Mutex
	count      int64
	elapsedSum time.Duration

	// connMu is never held across I/O.
	connMu sync.Mutex
	conn   *heldConn

	// notifyMu is held while a change is checked and delivered so that Close
	// can wait out an in-flight delivery.
	notifyMu sync.Mutex
	closed   atomic.Bool

	desc atomic.Pointer[description.Server]
}

// New creates a Notifier for the server connections from factory go to. The
// initial description is in the Connecting state.
func New(factory ConnectionFactory, listener Listener, opts ...Option) *Notifier {
	cfg := &options{id: uuid.New()}
	for _, apply := range opts {
		apply(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	n := &Notifier{
		id:          cfg.id,
		factory:     factory,
		listener:    listener,
		logger:      logger.Named("notifier").With("address", factory.Address().String(), "id", cfg.id.String()),
		statusTimer: metrics.NilTimer{},
		failures:    metrics.NilCounter{},
	}

	if cfg.registry != nil {
		prefix := "servermon." + factory.Address().String()
		n.statusTimer = metrics.GetOrRegisterTimer(prefix+".status", cfg.registry)
		n.failures = metrics.GetOrRegisterCounter(prefix+".failures", cfg.registry)
	}

	connecting := description.NewConnecting(factory.Address())
	n.desc.Store(&connecting)

	return n
}

// ID identifies the notifier in log output.
func (n *Notifier) ID() uuid.UUID { return n.id }

// Description returns the current description of the server.
func (n *Notifier) Description() description.Server {
	return *n.desc.Load()
}

// Closed reports whether Close has been called.
func (n *Notifier) Closed() bool {
	return n.closed.Load()
}

// Check runs one monitoring cycle: it opens a connection if there is none,
// runs the status command, publishes the resulting description and notifies
// the listener if the description changed. Failures degrade the description
// to Unconnected and are logged; they are not returned.
func (n *Notifier) Check(ctx context.Context) {
	n.checkMu.Lock()
	defer n.checkMu.Unlock()

	if n.closed.Load() {
		return
	}

	before := n.Description()

	current, err := n.probe(ctx)
	if err != nil {
		current = description.NewUnconnected(n.factory.Address())
		n.failures.Inc(1)
		n.logFailure(err)
	}

	n.desc.Store(&current)

	n.notify(before, current, err)
}

func (n *Notifier) probe(ctx context.Context) (description.Server, error) {
	conn, err := n.connection(ctx)
	if err != nil {
		return description.Server{}, err
	}

	res, err := conn.RunStatusCommand(ctx)
	if err != nil {
		if IsTransportError(err) {
			n.discard(conn)
		}

		return description.Server{}, err
	}

	n.count++
	n.elapsedSum += res.Elapsed
	n.statusTimer.Update(res.Elapsed)

	addr := res.Address
	if addr == "" {
		addr = n.factory.Address()
	}

	return description.NewFromStatus(addr, res.Response, res.OK, n.elapsedSum/time.Duration(n.count))
}

// connection returns the open connection, opening one if necessary.
func (n *Notifier) connection(ctx context.Context) (*heldConn, error) {
	n.connMu.Lock()
	conn := n.conn
	n.connMu.Unlock()

	if conn != nil {
		return conn, nil
	}

	created, err := n.factory.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	conn = &heldConn{Connection: created}

	n.connMu.Lock()
	if n.closed.Load() {
		n.connMu.Unlock()
		n.release(conn)

		return nil, errClosed
	}
	n.conn = conn
	n.connMu.Unlock()

	return conn, nil
}

// discard drops conn after a transport failure and resets the round-trip
// statistics. If Close already took the connection, Close releases it.
func (n *Notifier) discard(conn *heldConn) {
	n.connMu.Lock()
	owned := n.conn == conn
	if owned {
		n.conn = nil
	}
	n.connMu.Unlock()

	if owned {
		n.release(conn)
	}

	n.count = 0
	n.elapsedSum = 0
}

func (n *Notifier) release(conn *heldConn) {
	if err := conn.Close(); err != nil {
		n.logger.Debug("error closing connection", "error", err)
	}
}

func (n *Notifier) logFailure(err error) {
	switch {
	case errors.Is(err, errClosed):
	case IsTransportError(err):
		n.logger.Debug("status command failed", "error", err)
	default:
		n.logger.Error("failed to read server status", "error", err)
	}
}

func (n *Notifier) notify(before, current description.Server, err error) {
	n.notifyMu.Lock()
	defer n.notifyMu.Unlock()

	if n.closed.Load() || before.Equal(current) {
		return
	}

	if err != nil {
		n.logger.Info("error connecting to server", "error", err)
	} else {
		n.logger.Info("connected to server", "description", current.String())
	}

	if n.listener == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("listener panicked during server description change notification", "panic", r)
		}
	}()

	n.listener.ServerDescriptionChanged(&ChangeEvent{Previous: before, Current: current})
}

// Close stops the notifier. It releases the open connection, if any, and
// guarantees the listener is not called once Close returns. Close is
// idempotent.
func (n *Notifier) Close() error {
	if n.closed.Swap(true) {
		return nil
	}

	// Wait out a delivery that started before the flag was set.
	n.notifyMu.Lock()
	n.notifyMu.Unlock() //nolint:staticcheck

	n.connMu.Lock()
	conn := n.conn
	n.conn = nil
	n.connMu.Unlock()

	if conn == nil {
		return nil
	}

	return conn.Close()
}
