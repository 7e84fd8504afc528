package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli"
	"github.com/warpdl/pairwatch/internal/config"
	"github.com/warpdl/pairwatch/internal/daemon"
	"github.com/warpdl/pairwatch/internal/pidfile"
	"github.com/warpdl/pairwatch/internal/watchdog"
)

var guardianFlags = []cli.Flag{
	configFlag,
	cli.StringFlag{
		Name:   "metrics-addr",
		Usage:  "serve prometheus metrics on this address",
		EnvVar: "PAIRWATCH_METRICS_ADDR",
	},
	logJSONFlag,
}

// guardian runs the guardian side of the pair for the program named by the
// positional arguments, until the pair shuts down or a signal arrives.
func guardian(ctx *cli.Context) error {
	primary := []string(ctx.Args())
	if len(primary) == 0 {
		return fmt.Errorf("%w: no program to guard", watchdog.ErrInvalidArgv)
	}
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return err
	}
	if addr := ctx.String("metrics-addr"); addr != "" {
		cfg.MetricsAddr = addr
	}
	l, err := newGuardianLogger(ctx.Bool("log-json"), cfg.StateDir)
	if err != nil {
		return err
	}
	defer l.Close()

	reg := newRegistry()
	sup, err := newSupervisor(cfg.Watchdog, l, reg)
	if err != nil {
		return err
	}

	var metrics *metricsServer
	if cfg.MetricsAddr != "" {
		if metrics, err = serveMetrics(cfg.MetricsAddr, reg, l); err != nil {
			return err
		}
	}
	defer metrics.Close()

	runner := daemon.New(
		&daemon.Config{ShutdownTimeout: cfg.Watchdog.StopTimeout + shutdownMargin},
		&daemon.Dependencies{
			Supervisor:   sup,
			PidFile:      pidfile.New(appFs, cfg.StateDir),
			Logger:       l,
			ShutdownFunc: metrics.Close,
		},
	)

	sigCtx, cancel := setupShutdownHandler()
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-sigCtx.Done()
		if err := runner.Shutdown(); err != nil && !errors.Is(err, daemon.ErrNotRunning) {
			l.Warning("shutdown: %v", err)
		}
	}()

	argv := append([]string{cfg.Watchdog.GuardianPath}, primary...)
	err = runner.Start(sigCtx, argv)
	cancel()
	<-stopped
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
