/*
Package log provides the process-wide structured logger for jcontainer.

It wraps zerolog with a small, opinionated surface: call Init once at
startup with the desired level and format, then use the package-level
helpers or a component-scoped child logger.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: false})
	logger := log.WithContainer(id)
	logger.Warn().Err(err).Msg("cgroup setup failed, continuing without limits")

Human-facing progress lines (e.g. "Container <id> started (PID <pid>)")
go to stderr directly via fmt.Fprintf and are not routed through this
package — it is reserved for diagnostics, warnings, and anything a
future -v/--json flag should be able to reformat.
*/
package log
