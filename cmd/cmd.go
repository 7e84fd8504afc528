package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
	cmdcommon "github.com/warpdl/pairwatch/cmd/common"
	"github.com/warpdl/pairwatch/common"
	"github.com/warpdl/pairwatch/internal/daemon"
	"github.com/warpdl/pairwatch/internal/watchdog"
	"github.com/warpdl/pairwatch/pkg/logger"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

// Seams replaced by tests.
var (
	newSupervisor = func(cfg watchdog.Config, l logger.Logger, reg prometheus.Registerer) (daemon.Supervisor, error) {
		return watchdog.New(&cfg, &watchdog.Dependencies{
			Logger:  l,
			Metrics: watchdog.NewMetrics(reg),
		})
	}
	newLogger = func(json bool) (logger.Logger, error) {
		return logger.NewConsoleLogger(json, os.Getenv(common.DebugEnv) != "")
	}
	appFs        afero.Fs  = afero.NewOsFs()
	processAlive           = watchdog.ProcessAlive
	stdout       io.Writer = os.Stdout
)

// guardianLogName is the guardian log file inside the state directory.
const guardianLogName = "pairwatchd.log"

// newGuardianLogger logs to the console and to the guardian log file. A
// spawned guardian has no terminal, so the file is where its logs end up.
func newGuardianLogger(json bool, stateDir string) (logger.Logger, error) {
	console, err := newLogger(json)
	if err != nil {
		return nil, err
	}
	if err := appFs.MkdirAll(stateDir, 0o755); err != nil {
		_ = console.Close()
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	f, err := appFs.OpenFile(
		filepath.Join(stateDir, guardianLogName),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0o644,
	)
	if err != nil {
		_ = console.Close()
		return nil, fmt.Errorf("open guardian log: %w", err)
	}
	return logger.NewMultiLogger(console, logger.NewFileLogger(f)), nil
}

var (
	configFlag = cli.StringFlag{
		Name:   "config, c",
		Usage:  "path to a config file (yaml, toml or json)",
		EnvVar: common.ConfigFileEnv,
	}
	logJSONFlag = cli.BoolFlag{
		Name:  "log-json",
		Usage: "write logs as JSON",
	}
)

// Execute runs the pairwatch command line with args.
func Execute(args []string, bArgs BuildArgs) error {
	app := cli.App{
		Name:                  "pairwatch",
		HelpName:              "pairwatch",
		Usage:                 "A process pair that keeps itself alive.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "pairwatch <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          cmdcommon.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:               "demo",
				Usage:              "run a protected critical section",
				Action:             demo(args),
				OnUsageError:       cmdcommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        DemoDescription,
				Flags:              demoFlags,
			},
			{
				Name:               "status",
				Aliases:            []string{"s"},
				Usage:              "show the guardian status",
				Action:             status,
				OnUsageError:       cmdcommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        StatusDescription,
				Flags:              []cli.Flag{configFlag},
			},
			{
				Name:               "stop",
				Usage:              "shut the pair down",
				Action:             stopGuardian,
				OnUsageError:       cmdcommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        StopDescription,
				Flags:              []cli.Flag{configFlag},
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  cmdcommon.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of pairwatch",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             cmdcommon.GetVersion,
			},
		},
		Action:      cmdcommon.Help,
		HideHelp:    true,
		HideVersion: true,
	}
	cmdcommon.VersionCmdStr = versionString(app.Name, bArgs)
	return app.Run(args)
}

// ExecuteGuardian runs the pairwatchd guardian with args.
func ExecuteGuardian(args []string, bArgs BuildArgs) error {
	app := cli.App{
		Name:         "pairwatchd",
		HelpName:     "pairwatchd",
		Usage:        "The guardian half of a pairwatch pair.",
		Version:      fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:    "pairwatchd [options] -- <program> [arguments...]",
		Description:  GuardianDescription,
		OnUsageError: cmdcommon.UsageErrorCallback,
		Flags:        guardianFlags,
		Action:       guardian,
		HideHelp:     true,
	}
	cmdcommon.VersionCmdStr = versionString(app.Name, bArgs)
	return app.Run(args)
}

func versionString(name string, bArgs BuildArgs) string {
	return fmt.Sprintf("%s %s-%s (%s_%s)\nBuild: %s=%s\n",
		name,
		bArgs.Version,
		bArgs.BuildType,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
}
