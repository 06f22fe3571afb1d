package qapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// BlockResult is always returned in this shape regardless of which of
// the node's several response shapes was on the wire.
type BlockResult struct {
	Header     json.RawMessage
	Extrinsics []string
}

// BlocksAPI groups block-fetch operations.
type BlocksAPI struct{ q *Qapi }

const (
	blockFetchAttempts = 5 // initial attempt + 4 retries
	blockRetryDelay    = 150 * time.Millisecond
)

type wireBlockEnvelope struct {
	Block *struct {
		Header     json.RawMessage `json:"header"`
		Extrinsics []string        `json:"extrinsics"`
	} `json:"block"`
	Header     json.RawMessage `json:"header"`
	Extrinsics []string        `json:"extrinsics"`
}

// Get resolves numberOrHash (an int/uint64 block number, or a 0x-prefixed
// hash string) to a hash, then fetches the block. Some nodes wrap the
// body under "block", some return it flat, and some briefly return null
// (bare, or as {"block": null}) during import -- Get retries up to 4 additional times, 150ms apart
// (~600ms ceiling), before falling back to a degraded
// {header, extrinsics: []} built from chain_getHeader.
func (b *BlocksAPI) Get(ctx context.Context, numberOrHash any) (BlockResult, error) {
	defer b.q.metrics.observeLatency("blocks.get", time.Now())

	hash, err := b.resolveHash(ctx, numberOrHash)
	if err != nil {
		return BlockResult{}, err
	}

	for attempt := 0; attempt < blockFetchAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(blockRetryDelay)
		}

		var raw json.RawMessage
		if err := b.q.transport.Send(ctx, "chain_getBlock", []any{hash}, &raw); err != nil {
			debugf("blocks.get: chain_getBlock(%s) attempt %d failed: %v", hash, attempt, err)
			continue
		}
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}

		var env wireBlockEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			debugf("blocks.get: malformed block envelope at %s: %v", hash, err)
			continue
		}
		if env.Block != nil {
			return BlockResult{Header: env.Block.Header, Extrinsics: nonNilStrings(env.Block.Extrinsics)}, nil
		}
		if len(env.Header) == 0 || string(env.Header) == "null" {
			continue // {"block": null}: not imported yet
		}
		return BlockResult{Header: env.Header, Extrinsics: nonNilStrings(env.Extrinsics)}, nil
	}

	var header json.RawMessage
	if err := b.q.transport.Send(ctx, "chain_getHeader", []any{hash}, &header); err != nil {
		return BlockResult{}, fmt.Errorf("%w: %s: %v", ErrBlockUnavailable, hash, err)
	}
	return BlockResult{Header: header, Extrinsics: []string{}}, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (b *BlocksAPI) resolveHash(ctx context.Context, numberOrHash any) (string, error) {
	switch v := numberOrHash.(type) {
	case string:
		return v, nil
	case int:
		return b.hashForNumber(ctx, v)
	case int64:
		return b.hashForNumber(ctx, int(v))
	case uint64:
		return b.hashForNumber(ctx, int(v))
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedBlockSelector, numberOrHash)
	}
}

func (b *BlocksAPI) hashForNumber(ctx context.Context, number int) (string, error) {
	var hash string
	if err := b.q.transport.Send(ctx, "chain_getBlockHash", []any{number}, &hash); err != nil {
		return "", fmt.Errorf("qapi: chain_getBlockHash(%d): %w", number, err)
	}
	return hash, nil
}
