// Package safego launches fire-and-forget goroutines that survive panics.
package safego

import "log/slog"

// Go runs fn in its own goroutine, recovering and logging any panic instead of
// letting it take the process down. Use it for every background goroutine that
// nothing waits on (audit shipping, cache warmers), where an unrecovered panic
// would kill the worker silently.
func Go(fn func()) {
	Named("", fn)
}

// Named is Go with a task name carried into the panic log, so a recovered
// panic can be traced back to the worker that raised it.
func Named(task string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "task", task, "panic", r)
			}
		}()
		fn()
	}()
}
