// Package dispatcher implements the Event Dispatcher component.
//
// The Dispatcher:
//   - Decodes each inbound frame into an envelope and routes it by tr_cd
//   - Drives the subscription registry from VI_ frames, subscribing on
//     trigger and arming a deferred unsubscribe on release
//   - Forwards S3_/K3_ ticks for active instruments to the sinks and drops
//     the rest
//   - Re-issues the root VI subscription and every active tick
//     subscription when a session starts
//
// OnConnected and OnFrame run on the connection loop goroutine. Deferred
// cancellations fire on timer goroutines and synchronize through the
// registry.
package dispatcher
