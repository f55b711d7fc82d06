// Package wallet tracks the session with the bridge peer and turns its
// replies into one result shape.
//
// Manager is the only writer of session state. Readers take snapshots and
// never block.
package wallet
