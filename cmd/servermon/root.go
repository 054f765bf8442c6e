package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/prestonvasquez/servermon/config"
	"github.com/prestonvasquez/servermon/connection"
	"github.com/prestonvasquez/servermon/monitor"
	"github.com/prestonvasquez/servermon/notifier"
)

const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
	flagInterval = "interval"
)

// RootCmd holds the flag values of the servermon command.
type RootCmd struct {
	ConfigPath string
	LogLevel   string
	Interval   time.Duration

	out io.Writer
}

// NewRootCmd creates the servermon (Cobra) command.
func NewRootCmd() *cobra.Command {
	c := &RootCmd{out: os.Stderr}

	cobraCommand := &cobra.Command{
		Use:          "servermon --config <file>",
		Short:        "Monitors MongoDB servers and logs their state changes",
		Long:         c.longDescription(),
		SilenceUsage: true,
		Version:      version,
		RunE:         c.run,
	}

	c.initFlags(cobraCommand.Flags())

	return cobraCommand
}

func (c *RootCmd) initFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.ConfigPath, flagConfig, "c", "servermon.toml", "Path to the configuration file (.toml, .yaml or .yml)")
	fs.StringVar(&c.LogLevel, flagLogLevel, "", "Log level (trace, debug, info, warn, error); overrides the configuration file")
	fs.DurationVar(&c.Interval, flagInterval, 0, "Heartbeat interval; overrides the configuration file")
}

func (c *RootCmd) longDescription() string {
	return `servermon runs the status command against every configured MongoDB server on a
fixed heartbeat and logs whenever a server's description changes.`
}

func (c *RootCmd) run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed(flagLogLevel) {
		cfg.LogLevel = c.LogLevel
	}

	if cmd.Flags().Changed(flagInterval) {
		if c.Interval <= 0 {
			return fmt.Errorf("%w: --%s must be positive", config.ErrInvalidValue, flagInterval)
		}

		cfg.HeartbeatInterval = config.Duration(c.Interval)
	}

	logger, err := newLogger(cfg.LogLevel, c.out)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registry := metrics.NewRegistry()

	err = run(ctx, cfg, logger, registry)

	logMetrics(logger, registry)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("servermon exited with error", "error", err)
		return err
	}

	logger.Info("servermon stopped")

	return nil
}

// run monitors every configured server until ctx is done.
func run(ctx context.Context, cfg *config.Config, logger hclog.Logger, registry metrics.Registry) error {
	group, groupCtx := errgroup.WithContext(ctx)

	logger.Info("starting monitors", "servers", len(cfg.Servers), "interval", time.Duration(cfg.HeartbeatInterval))

	for _, addr := range cfg.Addresses() {
		factory := connection.NewFactory(addr,
			connection.WithTimeout(time.Duration(cfg.Timeout)),
			connection.WithAppName(cfg.AppName),
			connection.WithLegacyHello(cfg.LegacyHello))

		changes := metrics.GetOrRegisterCounter("servermon."+addr.String()+".changes", registry)
		changeLogger := logger.Named("changes").With("address", addr.String())

		n := notifier.New(factory,
			notifier.ListenerFunc(func(evt *notifier.ChangeEvent) {
				changes.Inc(1)
				changeLogger.Info("server description changed",
					"previous_type", evt.Previous.Type(),
					"current_type", evt.Current.Type(),
					"state", evt.Current.State())
			}),
			notifier.WithLogger(logger),
			notifier.WithMetrics(registry),
			notifier.WithID(uuid.New()))

		m := monitor.New(n,
			monitor.WithInterval(time.Duration(cfg.HeartbeatInterval)),
			monitor.WithCheckTimeout(time.Duration(cfg.Timeout)),
			monitor.WithLogger(logger.With("address", addr.String())))

		group.Go(func() error {
			if err := m.Run(groupCtx); err != nil {
				return fmt.Errorf("monitor %s: %w", addr, err)
			}

			return nil
		})
	}

	return group.Wait()
}

func newLogger(level string, out io.Writer) (hclog.Logger, error) {
	lvl := hclog.LevelFromString(strings.TrimSpace(level))
	if lvl == hclog.NoLevel {
		return nil, fmt.Errorf("%w: unknown log level '%s'", config.ErrInvalidValue, level)
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       "servermon",
		Level:      lvl,
		Output:     out,
		JSONFormat: false,
	}), nil
}

// logMetrics writes a final snapshot of every registered metric.
func logMetrics(logger hclog.Logger, registry metrics.Registry) {
	registry.Each(func(name string, i interface{}) {
		switch m := i.(type) {
		case metrics.Timer:
			s := m.Snapshot()
			logger.Info("metric", "name", name, "count", s.Count(), "mean", time.Duration(s.Mean()), "max", time.Duration(s.Max()))
		case metrics.Counter:
			logger.Info("metric", "name", name, "count", m.Count())
		}
	})
}
