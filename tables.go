package qapi

import (
	"context"

	"github.com/pierreaubert/qapi-go/metadata"
	"github.com/pierreaubert/qapi-go/wireutil"
)

type runtimeVersionProbe struct {
	SpecVersion int `json:"specVersion"`
}

// TablesForBlock returns the pallet table to use when decoding a block.
// An empty blockHash returns the latest table. Otherwise it probes the
// spec version at that hash, returns a cached table keyed by spec
// version when available, and otherwise decodes fresh and caches the
// result. Any RPC or decode failure along the way degrades to the
// latest table rather than propagating an error -- identification must
// never hard-fail on a stale or unreachable block.
func (q *Qapi) TablesForBlock(ctx context.Context, blockHash string) *metadata.PalletTable {
	if blockHash == "" {
		return q.latest.Load()
	}

	var version runtimeVersionProbe
	if err := q.transport.Send(ctx, "state_getRuntimeVersion", []any{blockHash}, &version); err != nil {
		debugf("tablesForBlock: state_getRuntimeVersion at %s failed: %v", blockHash, err)
		return q.latest.Load()
	}

	if cached, ok := q.cache.Load(version.SpecVersion); ok {
		q.metrics.recordCacheHit()
		return cached.(*metadata.PalletTable)
	}
	q.metrics.recordCacheMiss()

	var metaHex string
	if err := q.transport.Send(ctx, "state_getMetadata", []any{blockHash}, &metaHex); err != nil {
		debugf("tablesForBlock: state_getMetadata at %s failed: %v", blockHash, err)
		return q.latest.Load()
	}

	raw, err := wireutil.DecodeHex(metaHex)
	if err != nil {
		debugf("tablesForBlock: decode metadata hex at %s failed: %v", blockHash, err)
		return q.latest.Load()
	}

	table, diag, err := q.decode(raw)
	for _, d := range diag {
		debugf("%s: %s (offset %d)", d.Stage, d.Detail, d.Offset)
	}
	if err != nil {
		q.metrics.recordDecodeFailure()
		debugf("tablesForBlock: decode metadata at %s failed: %v", blockHash, err)
		return q.latest.Load()
	}

	q.cache.Store(version.SpecVersion, table)
	return table
}
