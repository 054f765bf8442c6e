// Package monitor drives a server check on a fixed heartbeat.
package monitor

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	// DefaultInterval is the time between two checks.
	DefaultInterval = 10 * time.Second

	// DefaultCheckTimeout bounds a single check.
	DefaultCheckTimeout = 5 * time.Second
)

// Checker is checked once per heartbeat and closed when the monitor stops.
type Checker interface {
	Check(ctx context.Context)
	Close() error
}

type options struct {
	interval     time.Duration
	checkTimeout time.Duration
	logger       hclog.Logger
}

// Option configures a Monitor.
type Option func(*options)

// WithInterval sets the heartbeat interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithCheckTimeout bounds every check. Non-positive values are ignored.
func WithCheckTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.checkTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger hclog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Monitor checks a Checker every interval until its context is cancelled.
type Monitor struct {
	checker      Checker
	interval     time.Duration
	checkTimeout time.Duration
	logger       hclog.Logger
}

// New creates a Monitor for checker.
func New(checker Checker, optionFuncs ...Option) *Monitor {
	opts := &options{
		interval:     DefaultInterval,
		checkTimeout: DefaultCheckTimeout,
		logger:       hclog.NewNullLogger(),
	}

	for _, apply := range optionFuncs {
		apply(opts)
	}

	return &Monitor{
		checker:      checker,
		interval:     opts.interval,
		checkTimeout: opts.checkTimeout,
		logger:       opts.logger.Named("monitor"),
	}
}

// Interval returns the heartbeat interval.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Run checks immediately and then once per interval. When ctx is done it
// closes the checker and returns the close error, if any.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Debug("starting heartbeat", "interval", m.interval)

	m.check(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("stopping heartbeat")
			return m.checker.Close()
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()

	m.checker.Check(checkCtx)
}
