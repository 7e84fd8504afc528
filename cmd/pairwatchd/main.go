package main

import (
	"fmt"
	"os"

	"github.com/warpdl/pairwatch/cmd"
)

var (
	version   string
	commit    string
	date      string
	buildType string = "unclassified"
)

func main() {
	err := cmd.ExecuteGuardian(os.Args, cmd.BuildArgs{
		Version:   version,
		Commit:    commit,
		Date:      date,
		BuildType: buildType,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "pairwatchd: %s\n", err.Error())
		os.Exit(1)
	}
}
