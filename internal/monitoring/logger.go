// Package monitoring carries the shared diagnostic logging hooks for the
// host-side packages. The simulator core keeps its own tiered loggers;
// everything above it logs through Logf so tests and embedders can
// redirect or mute output in one place.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf
// but may be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Prefixed returns a log function that routes through the current Logf
// with a fixed subsystem prefix, e.g. "[api] ".
func Prefixed(prefix string) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
