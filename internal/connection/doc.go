// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns the single streaming WebSocket connection to the feed
//   - Drives an explicit state machine: disconnected, connecting,
//     connected, reconnecting
//   - Reconnects after a fixed delay with unbounded retries
//   - Tells the Handler when a session starts (and whether it is a
//     reconnect) before delivering that session's frames
//   - Delivers frames to the Handler sequentially, in arrival order
package connection
