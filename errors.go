// Package qapi is the façade over a Substrate-family node: a persistent
// transport, the chain's self-describing metadata, and convenience
// methods to follow new blocks and name their extrinsics. Connect once;
// everything else hangs off the returned *Qapi.
package qapi

import "errors"

// ErrBlockUnavailable is returned by Blocks.Get when neither the block nor
// even a degraded header could be fetched.
var ErrBlockUnavailable = errors.New("qapi: block unavailable")

// ErrUnsupportedBlockSelector is returned when Blocks.Get or a hash
// resolution helper is given a value that is neither a block number nor
// a hash string.
var ErrUnsupportedBlockSelector = errors.New("qapi: unsupported block selector")
