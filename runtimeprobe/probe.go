// Package runtimeprobe fetches the three RPC calls needed to identify and
// decode a chain's runtime in one round trip: spec version, metadata, and
// (best effort) chain properties.
package runtimeprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/pierreaubert/qapi-go/wireutil"
)

// RuntimeInfo bundles the result of one probe against a block hash.
type RuntimeInfo struct {
	SpecName           string
	SpecVersion        int
	TransactionVersion int
	Metadata           []byte
	Properties         json.RawMessage
	SS58Prefix         *uint32
}

// sender is the subset of rpcws.Transport that runtimeprobe needs; kept
// as an interface so the probe can be tested against a fake without
// spinning up a real socket.
type sender interface {
	Send(ctx context.Context, method string, params []any, out any) error
}

type runtimeVersionResult struct {
	SpecName           string `json:"specName"`
	SpecVersion        int    `json:"specVersion"`
	TransactionVersion int    `json:"transactionVersion"`
}

// Options controls which of the probe's RPCs are issued.
type Options struct {
	// SkipMetadata omits state_getMetadata entirely -- set when a caller
	// is about to bypass decoding with an override table anyway, so the
	// probe never issues an RPC whose result would be thrown away.
	SkipMetadata bool
}

// Fetch runs state_getRuntimeVersion (required) and, unless
// opts.SkipMetadata is set, state_getMetadata (also required)
// concurrently, plus system_properties best effort -- its failure is
// logged and swallowed rather than propagated, since higher layers treat
// chain properties as optional.
func Fetch(ctx context.Context, t sender, blockHash string, opts Options) (RuntimeInfo, error) {
	var (
		version  runtimeVersionResult
		metaHex  string
		propsRaw json.RawMessage
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		params := paramsForHash(blockHash)
		if err := t.Send(gctx, "state_getRuntimeVersion", params, &version); err != nil {
			return fmt.Errorf("runtimeprobe: state_getRuntimeVersion: %w", err)
		}
		return nil
	})

	if !opts.SkipMetadata {
		g.Go(func() error {
			params := paramsForHash(blockHash)
			if err := t.Send(gctx, "state_getMetadata", params, &metaHex); err != nil {
				return fmt.Errorf("runtimeprobe: state_getMetadata: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := t.Send(gctx, "system_properties", nil, &propsRaw); err != nil {
			log.Printf("runtimeprobe: system_properties unavailable (non-fatal): %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return RuntimeInfo{}, err
	}

	var metadata []byte
	if !opts.SkipMetadata {
		decoded, err := wireutil.DecodeHex(metaHex)
		if err != nil {
			return RuntimeInfo{}, fmt.Errorf("runtimeprobe: decode metadata hex: %w", err)
		}
		metadata = decoded
	}

	return RuntimeInfo{
		SpecName:           version.SpecName,
		SpecVersion:        version.SpecVersion,
		TransactionVersion: version.TransactionVersion,
		Metadata:           metadata,
		Properties:         propsRaw,
		SS58Prefix:         ss58PrefixFrom(propsRaw),
	}, nil
}

// ss58PrefixFrom extracts properties.ss58Format when system_properties
// succeeded and declared it; any absence or shape mismatch just leaves the
// prefix unset, matching the non-fatal treatment of properties overall.
func ss58PrefixFrom(props json.RawMessage) *uint32 {
	if len(props) == 0 {
		return nil
	}
	var parsed struct {
		SS58Format *uint32 `json:"ss58Format"`
	}
	if err := json.Unmarshal(props, &parsed); err != nil {
		return nil
	}
	return parsed.SS58Format
}

func paramsForHash(blockHash string) []any {
	if blockHash == "" {
		return nil
	}
	return []any{blockHash}
}
