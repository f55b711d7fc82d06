// Package protocol owns the wallet bridge wire contract.
//
// Ownership boundary:
// - request/reply/notification envelopes
// - bridge method and event names
// - length-prefixed frame codec used by stream transports
// - the error taxonomy shared by every layer above the transport
package protocol
