// Package daemonrun assembles and runs the daemon process: logging, the
// database, every service, and the signal-driven lifecycle. Both the hidden
// "dailybrief daemon" subcommand and cmd/dailybriefd call Run.
package daemonrun
