// Package walletsim is a stand-in Ribbit wallet. It answers every bridge
// method with a real ed25519 account, signs the transactions it is sent and
// keeps its own sequence counter, so the client can be exercised end to end
// without a browser extension.
package walletsim
