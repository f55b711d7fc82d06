// Package bridge moves protocol envelopes between this process and the wallet.
//
// Ownership boundary:
// - the Transport contract consumed by rpc.Correlator
// - websocket transport to a companion wallet app
// - native-messaging transport over a length-prefixed byte stream
// - in-memory pipe used in-process and by tests
//
// Transports do not correlate, retry or interpret envelopes.
package bridge
