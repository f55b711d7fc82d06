// Package txn builds Supra entry-function transactions and hands them to the
// wallet for signing.
//
// Every value that reaches the wallet is BCS encoded; two builds of the same
// request produce identical bytes.
package txn
