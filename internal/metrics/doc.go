// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Stream connection state, reconnects and frame rates by category
//   - Commands sent by tr_cd / tr_type and send failures
//   - Active instruments and pending cancellations
//   - Tick forwarding and cancellation outcomes
//   - Journal rows written and flush failures
//
// All recording methods are safe to call on a nil *Metrics.
package metrics
