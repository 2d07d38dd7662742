// Package registry tracks instruments currently under a volatility
// interruption.
//
// The Registry is the single source of truth for tick subscriptions: an
// instrument has a record iff its last VI event was a trigger. Apply drives
// the per-instrument state machine and tells the caller which command, if
// any, the transition requires. WhenIdle is the serialization point used by
// deferred cancellations to re-check membership at fire time.
package registry
