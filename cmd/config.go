package cmd

import "time"

const DEF_DEMO_DURATION = time.Second * 10

// shutdownMargin is added to the watchdog stop timeout when the guardian
// runner bounds its own shutdown.
const shutdownMargin = time.Second * 5

const DESCRIPTION = `
Pairwatch keeps an application and its guardian alive as a pair.
Each side pings the other and respawns it when the pings stop,
and a clean shutdown on either side takes down both.
`

const GuardianDescription = `
Pairwatchd is the guardian half of a pairwatch pair. It is spawned
by the application it protects and respawns that application when
it stops answering. It is not normally started by hand.
`

const (
	DemoDescription = `The demo command runs a protected critical section
for the given duration while a guardian watches over
the process. Killing the process during the section
makes the guardian start it again.

Example:
        pairwatch demo --duration 30s

`
	StatusDescription = `The status command reads the guardian pid file and
reports whether that guardian process is alive.

Example:
        pairwatch status

`
	StopDescription = `The stop command sends the guardian a termination
request and waits for it to exit. The guardian stops
the protected application before it exits.

Example:
        pairwatch stop

`
)
