// Command qapi-follow connects to a node, subscribes to new heads, and
// prints each block's extrinsic identities as they are decoded.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	qapi "github.com/pierreaubert/qapi-go"
	"github.com/pierreaubert/qapi-go/extrinsic"
	"github.com/pierreaubert/qapi-go/metadata"
	"github.com/pierreaubert/qapi-go/recorder"
	"github.com/pierreaubert/qapi-go/wireutil"
)

type config struct {
	endpoint         string
	relaychain       string
	chain            string
	metadataOverride string
	recordDSN        string
}

func parseFlags() config {
	return parseFlagSet(flag.CommandLine, os.Args[1:])
}

// parseFlagSet parses args against fs, so tests can exercise flag parsing
// against a fresh FlagSet instead of the package-global flag.CommandLine.
func parseFlagSet(fs *flag.FlagSet, args []string) config {
	endpoint := fs.String("endpoint", "ws://127.0.0.1:9944", "Node WebSocket endpoint")
	relaychain := fs.String("relaychain", "Polkadot", "Relaychain name")
	chain := fs.String("chain", "Polkadot", "Chain name")
	metadataOverride := fs.String("metadata-override", "", "Path to a hex-encoded metadata file to decode in place of the node's own metadata")
	recordDSN := fs.String("record-dsn", "", "Optional DSN (postgres:// or sqlite://) to persist decoded identities")

	fs.Parse(args)

	return config{
		endpoint:         *endpoint,
		relaychain:       *relaychain,
		chain:            *chain,
		metadataOverride: *metadataOverride,
		recordDSN:        *recordDSN,
	}
}

func setupSignalHandler(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		log.Println("received interrupt signal, shutting down...")
		cancel()
	}()
}

func main() {
	cfg := parseFlags()

	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime)

	var store recorder.Store
	if cfg.recordDSN != "" {
		s, err := recorder.Open(cfg.recordDSN)
		if err != nil {
			log.Fatalf("failed to open recorder: %v", err)
		}
		store = s
		defer store.Close()
	}

	var overrides qapi.Overrides
	if cfg.metadataOverride != "" {
		raw, err := os.ReadFile(cfg.metadataOverride)
		if err != nil {
			log.Fatalf("failed to read metadata override: %v", err)
		}
		decoded, err := wireutil.DecodeHex(string(raw))
		if err != nil {
			log.Fatalf("failed to decode metadata override: %v", err)
		}
		overrides.Metadata.CustomParser = func(_ []byte) (*metadata.PalletTable, []metadata.Diagnostic, error) {
			return metadata.Decode(decoded)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	connectCfg := qapi.Config{Endpoint: cfg.endpoint, Overrides: overrides}
	if err := run(ctx, cfg, connectCfg, store); err != nil {
		log.Fatalf("%v", err)
	}
}

// run connects, subscribes to new heads, and decodes/prints/records every
// extrinsic of every block until ctx is cancelled. It is the part of main
// that does not depend on flags or process signal wiring, so tests can
// drive it against a fake connectCfg.Transport.
func run(ctx context.Context, cfg config, connectCfg qapi.Config, store recorder.Store) error {
	q, err := qapi.Connect(ctx, connectCfg)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer q.Disconnect()

	log.Printf("connected to %s (%s/%s)", cfg.endpoint, cfg.relaychain, cfg.chain)

	unsubscribe, err := q.ChainHead.Subscribe(ctx, func(head qapi.Head) {
		fmt.Printf("#%d %s\n", head.Number, head.Hash)

		block, err := q.Blocks.Get(ctx, head.Hash)
		if err != nil {
			log.Printf("failed to fetch block %s: %v", head.Hash, err)
			return
		}

		for i, hex := range block.Extrinsics {
			identity, err := q.Codec.DecodeExtrinsicName(ctx, hex, head.Hash)
			if err != nil {
				log.Printf("failed to decode extrinsic #%d: %v", i, err)
				continue
			}
			printIdentity(i, identity)

			if store != nil {
				rec := recorderRecordFrom(head, i, identity)
				if err := store.RecordBlock(ctx, rec); err != nil {
					log.Printf("failed to record extrinsic #%d: %v", i, err)
				}
			}
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to new heads: %w", err)
	}
	defer unsubscribe()

	<-ctx.Done()
	log.Println("shutting down")
	return nil
}

func printIdentity(index int, identity extrinsic.Identity) {
	signedness := "unsigned"
	if identity.Signed {
		signedness = "signed"
	}
	if identity.Reason == extrinsic.ReasonUnset {
		fmt.Printf("#%d: %s %s.%s\n", index, signedness, identity.Pallet, identity.Method)
		return
	}
	fmt.Printf("#%d: %s %s.%s (%s)\n", index, signedness, identity.Pallet, identity.Method, identity.Reason)
}

func recorderRecordFrom(head qapi.Head, index int, identity extrinsic.Identity) recorder.BlockRecord {
	return recorder.BlockRecord{
		BlockNumber:    head.Number,
		BlockHash:      head.Hash,
		ExtrinsicIndex: index,
		Pallet:         identity.Pallet,
		Method:         identity.Method,
		Signed:         identity.Signed,
		Reason:         identity.Reason.String(),
	}
}
