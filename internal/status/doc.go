// Package status serves the monitor's operational endpoints:
//
//	GET /health         connection state, active and pending counts, KRX session
//	GET /instruments    instruments currently under VI
//	GET /cancellations  armed deferred unsubscribes
//	GET /metrics        Prometheus exposition
//
// /health answers 503 while the stream is down so load balancers and
// supervisors can act on it.
package status
