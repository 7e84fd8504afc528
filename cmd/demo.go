package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	cmdcommon "github.com/warpdl/pairwatch/cmd/common"
	"github.com/warpdl/pairwatch/internal/config"
)

const demoTick = 100 * time.Millisecond

var demoFlags = []cli.Flag{
	cli.DurationFlag{
		Name:  "duration, d",
		Usage: "how long the critical section runs",
		Value: DEF_DEMO_DURATION,
	},
	configFlag,
	logJSONFlag,
}

// demo returns the action of the demo command. argv is the full command
// line of this process; the guardian uses it to start a replacement.
func demo(argv []string) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		if ctx.Args().First() == "help" {
			return cli.ShowCommandHelp(ctx, ctx.Command.Name)
		}
		cfg, err := config.Load(ctx.String("config"))
		if err != nil {
			cmdcommon.PrintRuntimeErr(ctx, "demo", "load_config", err)
			return nil
		}
		l, err := newLogger(ctx.Bool("log-json"))
		if err != nil {
			cmdcommon.PrintRuntimeErr(ctx, "demo", "new_logger", err)
			return nil
		}
		defer l.Close()

		sup, err := newSupervisor(cfg.Watchdog, l, nil)
		if err != nil {
			cmdcommon.PrintRuntimeErr(ctx, "demo", "new_supervisor", err)
			return nil
		}
		sigCtx, cancel := setupShutdownHandler()
		defer cancel()

		if err := sup.Start(sigCtx, argv); err != nil {
			cmdcommon.PrintRuntimeErr(ctx, "demo", "start", err)
			return nil
		}
		completed := runSection(sigCtx, sup.Done(), ctx.Duration("duration"))
		if err := sup.Stop(context.Background()); err != nil {
			cmdcommon.PrintRuntimeErr(ctx, "demo", "stop", err)
		}
		if completed {
			fmt.Fprintln(stdout, "critical section complete")
		} else {
			fmt.Fprintln(stdout, "critical section interrupted")
		}
		return nil
	}
}

// runSection advances a progress bar once per tick until d has elapsed.
// It returns false if ctx is done or done is closed first.
func runSection(ctx context.Context, done <-chan struct{}, d time.Duration) bool {
	steps := int64(d / demoTick)
	if steps < 1 {
		steps = 1
	}
	p := mpb.New(mpb.WithOutput(stdout), mpb.WithWidth(64))
	bar := cmdcommon.InitSectionBar(p, "critical section", steps)

	ticker := time.NewTicker(demoTick)
	defer ticker.Stop()

	for i := int64(0); i < steps; i++ {
		select {
		case <-ctx.Done():
			bar.Abort(false)
			p.Wait()
			return false
		case <-done:
			bar.Abort(false)
			p.Wait()
			return false
		case <-ticker.C:
			bar.Increment()
		}
	}
	p.Wait()
	return true
}
