// Package rpc owns request/reply correlation on top of a bridge transport.
//
// Ownership boundary:
// - correlation id allocation
// - the pending-request table and its deadlines
// - routing replies by id and dropping unknown or late replies
// - out-of-band notification observers
// - connect backoff shared with transports
//
// Nothing in this package retries a request.
package rpc
