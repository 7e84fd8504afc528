package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/urfave/cli"
	cmdcommon "github.com/warpdl/pairwatch/cmd/common"
	"github.com/warpdl/pairwatch/internal/config"
	"github.com/warpdl/pairwatch/internal/pidfile"
)

const stopPollInterval = 100 * time.Millisecond

// stopGuardian asks the running guardian to shut the pair down and waits
// for it to exit.
func stopGuardian(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "stop", "load_config", err)
		return nil
	}
	pid, err := pidfile.New(appFs, cfg.StateDir).Read()
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(stdout, "guardian: not running")
		return nil
	}
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "stop", "read_pid_file", err)
		return nil
	}
	alive, err := processAlive(context.Background(), pid)
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "stop", "process_alive", err)
		return nil
	}
	if !alive {
		fmt.Fprintf(stdout, "guardian: not running (stale pid %d)\n", pid)
		return nil
	}

	fmt.Fprintf(stdout, "stopping guardian (pid %d)...\n", pid)
	if err := terminate(pid); err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "stop", "terminate", err)
		return nil
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), cfg.Watchdog.StopTimeout+shutdownMargin)
	defer cancel()
	if err := waitExit(waitCtx, pid); err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "stop", "wait_exit", err)
		return nil
	}
	// The pid file is removed by the guardian itself.
	fmt.Fprintln(stdout, "guardian stopped")
	return nil
}

// waitExit polls until pid is gone or ctx is done.
func waitExit(ctx context.Context, pid int) error {
	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()
	for {
		alive, err := processAlive(ctx, pid)
		if err != nil && ctx.Err() == nil {
			return err
		}
		if err == nil && !alive {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("guardian %d still running: %w", pid, ctx.Err())
		case <-ticker.C:
		}
	}
}
