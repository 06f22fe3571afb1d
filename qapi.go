package qapi

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pierreaubert/qapi-go/metadata"
	"github.com/pierreaubert/qapi-go/recorder"
	"github.com/pierreaubert/qapi-go/rpcws"
	"github.com/pierreaubert/qapi-go/runtimeprobe"
)

// Config is accepted by Connect.
type Config struct {
	// Endpoint is the node's WebSocket URL, used to build a transport when
	// Transport is nil.
	Endpoint string
	// Transport lets a caller supply an already-constructed transport
	// (tests, or a custom dialer); when set, Endpoint is ignored.
	Transport *rpcws.Transport
	Overrides Overrides
	// Recorder, when non-nil, receives every decoded block the caller
	// chooses to pass to it. The façade never calls it on its own --
	// recording is an explicit per-block action, not an ambient one.
	Recorder recorder.Store
}

func debugEnabled() bool {
	return os.Getenv("QAPI_DEBUG") != ""
}

func debugf(format string, args ...any) {
	if debugEnabled() {
		log.Printf("[qapi debug] "+format, args...)
	}
}

// Qapi is the connected façade. Create one with Connect.
type Qapi struct {
	transport *rpcws.Transport
	runtime   runtimeprobe.RuntimeInfo
	latest    atomic.Pointer[metadata.PalletTable]
	cache     sync.Map // map[int]*metadata.PalletTable, keyed by specVersion
	metrics   *Metrics
	cfg       Config

	decode MetadataParser

	ChainHead *ChainHeadAPI
	Blocks    *BlocksAPI
	Codec     *CodecAPI
}

// Connect opens the transport, probes the runtime, and establishes a
// pallet table following the five-step algorithm: an override table
// wins outright; otherwise the metadata blob is decoded (with a custom
// parser if supplied) and installed as both the latest and the
// spec-version-keyed cache entry. A decode failure never aborts Connect:
// it is either swallowed (IgnoreParseErrors) or logged, and the façade
// is returned usable with extrinsic identification degrading to
// reason=no-metadata until a later TablesForBlock call succeeds.
func Connect(ctx context.Context, cfg Config) (*Qapi, error) {
	transport := cfg.Transport
	if transport == nil {
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("qapi: Config.Endpoint or Config.Transport is required")
		}
		transport = rpcws.New(cfg.Endpoint)
	}

	metrics := NewMetrics("qapi")
	transport.OnReconnect = metrics.recordReconnect

	if err := transport.Connect(ctx); err != nil {
		return nil, fmt.Errorf("qapi: connect: %w", err)
	}

	probeOpts := runtimeprobe.Options{SkipMetadata: cfg.Overrides.Metadata.Tables != nil}
	runtime, err := runtimeprobe.Fetch(ctx, transport, "", probeOpts)
	if err != nil {
		return nil, fmt.Errorf("qapi: runtime probe: %w", err)
	}

	decode := MetadataParser(metadata.Decode)
	if cfg.Overrides.Metadata.CustomParser != nil {
		decode = cfg.Overrides.Metadata.CustomParser
	}

	q := &Qapi{
		transport: transport,
		runtime:   runtime,
		cfg:       cfg,
		decode:    decode,
		metrics:   metrics,
	}
	q.ChainHead = &ChainHeadAPI{q: q}
	q.Blocks = &BlocksAPI{q: q}
	q.Codec = &CodecAPI{q: q}

	if cfg.Overrides.Metadata.Tables != nil {
		table := projectOverrideTable(cfg.Overrides.Metadata.Tables)
		q.latest.Store(table)
		q.cache.Store(runtime.SpecVersion, table)
		return q, nil
	}

	table, diag, decodeErr := decode(runtime.Metadata)
	for _, d := range diag {
		debugf("%s: %s (offset %d)", d.Stage, d.Detail, d.Offset)
	}
	if decodeErr == nil {
		q.latest.Store(table)
		q.cache.Store(runtime.SpecVersion, table)
		return q, nil
	}

	q.metrics.recordDecodeFailure()
	if cfg.Overrides.Metadata.IgnoreParseErrors {
		return q, nil
	}
	log.Printf("qapi: metadata decode failed, proceeding with no table: %v", decodeErr)
	return q, nil
}

// Metrics exposes the façade's Prometheus collectors. They live in a
// private registry (Metrics.Registry), never the default one, so a caller
// mounts that registry on their own /metrics endpoint.
func (q *Qapi) Metrics() *Metrics { return q.metrics }

// Disconnect closes the underlying transport.
func (q *Qapi) Disconnect() error { return q.transport.Disconnect() }

// RuntimeInfo returns the runtime probe result captured at Connect time.
func (q *Qapi) RuntimeInfo() runtimeprobe.RuntimeInfo { return q.runtime }

// Ping is the simplest possible health check: a round trip that proves
// the transport and the remote node are both alive.
func (q *Qapi) Ping(ctx context.Context) error {
	var health any
	return q.transport.Send(ctx, "system_health", nil, &health)
}
