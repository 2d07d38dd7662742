// Package protocol implements the JSON wire format of the real-time feed.
//
// Every message, inbound or outbound, is an Envelope of the shape
// {"header": {...}, "body": {...}}. This package provides:
//   - decoding of inbound frames into envelopes and typed VI / tick events
//   - the Command Encoder for subscribe and unsubscribe requests
//   - the domain enums shared by the rest of the module (Exchange, VIStatus)
//
// Nothing in this package holds connection or subscription state.
package protocol
