// Package bcs implements the canonical binary encoding used for Move transactions.
//
// Every logical value has exactly one byte representation:
// - fixed-width integers are little-endian
// - sequence and string lengths are ULEB128 prefixed, minimal form only
// - fixed-size values (addresses) are written raw without a prefix
// - enum variants are a ULEB128 variant index followed by the variant body
package bcs
