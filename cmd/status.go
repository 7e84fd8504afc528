package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/urfave/cli"
	cmdcommon "github.com/warpdl/pairwatch/cmd/common"
	"github.com/warpdl/pairwatch/internal/config"
	"github.com/warpdl/pairwatch/internal/pidfile"
)

func status(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "status", "load_config", err)
		return nil
	}
	pid, err := pidfile.New(appFs, cfg.StateDir).Read()
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(stdout, "guardian: not running")
		return nil
	}
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "status", "read_pid_file", err)
		return nil
	}
	alive, err := processAlive(context.Background(), pid)
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "status", "process_alive", err)
		return nil
	}
	if !alive {
		fmt.Fprintf(stdout, "guardian: not running (stale pid %d)\n", pid)
		return nil
	}
	fmt.Fprintf(stdout, "guardian: running (pid %d)\n", pid)
	return nil
}
