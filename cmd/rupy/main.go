// Package main implements the rupy CLI for calling into the guest runtime.
package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feather-lang/rupy"
	"github.com/feather-lang/rupy/internal/config"
	"github.com/feather-lang/rupy/internal/logging"
)

var (
	// configPath is the optional YAML config file
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rupy",
	Short: "Call into the guest runtime from the command line",
	Long: `rupy starts a guest runtime, runs a command against it and stops it again.

Arguments are YAML literals: 16, 2.5, hello, "[1, 2]", "{a: 1}".

Configuration is read from --config and RUPY_* environment variables,
e.g. RUPY_LOGGING_LEVEL=debug or RUPY_BRIDGE_LEGACY_MODE=true.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(dirCmd)
	rootCmd.AddCommand(replCmd)
}

// app is the bridge and logger built from configuration.
type app struct {
	bridge *rupy.Bridge
	log    *zap.Logger
	reg    *prometheus.Registry
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a := &app{log: logger}
	opts := []rupy.Option{
		rupy.WithLogger(logger),
		rupy.WithLegacyMode(cfg.Bridge.LegacyMode),
	}
	if cfg.Metrics.Enabled {
		a.reg = prometheus.NewRegistry()
		opts = append(opts, rupy.WithRegisterer(a.reg), rupy.WithNamespace(cfg.Metrics.Namespace))
	}
	a.bridge = rupy.New(opts...)
	return a, nil
}

// run executes fn in a bridge session, then reports metrics if enabled.
func (a *app) run(fn func(b *rupy.Bridge) error) error {
	defer a.log.Sync() //nolint:errcheck
	err := a.bridge.Session(fn)
	a.reportMetrics()
	return err
}

func (a *app) reportMetrics() {
	if a.reg == nil {
		return
	}
	families, err := a.reg.Gather()
	if err != nil {
		a.log.Warn("failed to gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fields := []zap.Field{zap.String("metric", mf.GetName())}
			for _, lp := range m.GetLabel() {
				fields = append(fields, zap.String(lp.GetName(), lp.GetValue()))
			}
			switch {
			case m.GetCounter() != nil:
				fields = append(fields, zap.Float64("value", m.GetCounter().GetValue()))
			case m.GetGauge() != nil:
				fields = append(fields, zap.Float64("value", m.GetGauge().GetValue()))
			}
			a.log.Info("bridge metric", fields...)
		}
	}
}
