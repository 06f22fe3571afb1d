package qapi

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Head is the façade's derived view of a chain_subscribeNewHeads
// notification.
type Head struct {
	Number uint64
	Hash   string
}

// ChainHeadAPI groups the new-heads subscription.
type ChainHeadAPI struct{ q *Qapi }

type rawHead struct {
	Number string `json:"number"`
	Hash   string `json:"hash"`
}

// Subscribe wraps transport.Subscribe on chain_subscribeNewHeads. For
// each raw head it derives {hash, number}: number from the hex-encoded
// header number, hash from the head's own hash field when present, else
// from a supplementary chain_getBlockHash(number) call. It returns the
// unsubscribe closure.
func (c *ChainHeadAPI) Subscribe(ctx context.Context, cb func(Head)) (func() error, error) {
	return c.q.transport.Subscribe(ctx, "chain_subscribeNewHeads", "chain_unsubscribeNewHeads", nil, func(result json.RawMessage) {
		defer c.q.metrics.observeLatency("chainHead.subscribe.notification", time.Now())

		var rh rawHead
		if err := json.Unmarshal(result, &rh); err != nil {
			debugf("chainHead: malformed head notification: %v", err)
			return
		}

		number, err := parseHexUint(rh.Number)
		if err != nil {
			debugf("chainHead: malformed header number %q: %v", rh.Number, err)
			return
		}

		hash := rh.Hash
		if hash == "" {
			var resolved string
			if err := c.q.transport.Send(ctx, "chain_getBlockHash", []any{number}, &resolved); err != nil {
				debugf("chainHead: chain_getBlockHash(%d) failed: %v", number, err)
				return
			}
			hash = resolved
		}

		cb(Head{Number: number, Hash: hash})
	})
}

func parseHexUint(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
}
