package qapi

import (
	"context"
	"fmt"
	"time"

	"github.com/pierreaubert/qapi-go/extrinsic"
	"github.com/pierreaubert/qapi-go/wireutil"
)

// CodecAPI groups the extrinsic/event naming operations.
type CodecAPI struct{ q *Qapi }

// DecodeExtrinsicName resolves hex's pallet.method identity against the
// table for block at (empty for the latest table).
func (c *CodecAPI) DecodeExtrinsicName(ctx context.Context, hex string, at string) (extrinsic.Identity, error) {
	defer c.q.metrics.observeLatency("codec.decodeExtrinsicName", time.Now())

	raw, err := wireutil.DecodeHex(hex)
	if err != nil {
		return extrinsic.Identity{}, fmt.Errorf("qapi: decodeExtrinsicName: %w", err)
	}
	table := c.q.TablesForBlock(ctx, at)
	return extrinsic.IdentifyCall(raw, table), nil
}

// DecodeEventName is symmetric to DecodeExtrinsicName but resolves
// against the pallet's declared event names.
func (c *CodecAPI) DecodeEventName(ctx context.Context, palletIdx, eventIdx byte, at string) extrinsic.Identity {
	defer c.q.metrics.observeLatency("codec.decodeEventName", time.Now())

	table := c.q.TablesForBlock(ctx, at)
	return extrinsic.IdentifyEvent(palletIdx, eventIdx, table)
}
