// Package scheduler runs deferred, per-instrument cancellation checks.
//
// Each instrument has at most one armed timer. Re-arming replaces the
// previous timer and a superseded timer never runs its callback. Stop
// cancels everything outstanding and waits for callbacks already running.
package scheduler
