// Package recorder is an optional sink that persists decoded extrinsic
// identities -- never raw block or metadata bytes, which stay out of
// scope for this library. A Store is constructed from a DSN whose scheme
// selects the driver, mirroring how the upstream indexer opens its
// connection pool but against a narrower schema.
package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// BlockRecord is one decoded extrinsic's identity, tagged with the block
// it came from.
type BlockRecord struct {
	BlockNumber    uint64
	BlockHash      string
	SpecVersion    int
	ExtrinsicIndex int
	Pallet         string
	Method         string
	Signed         bool
	Reason         string
}

// Store persists BlockRecords.
type Store interface {
	RecordBlock(ctx context.Context, rec BlockRecord) error
	Close() error
}

type driver int

const (
	driverPostgres driver = iota
	driverSQLite
)

type sqlStore struct {
	db     *sql.DB
	driver driver
}

const createTablePostgres = `
CREATE TABLE IF NOT EXISTS qapi_extrinsic_identities (
	block_number    BIGINT NOT NULL,
	block_hash      TEXT NOT NULL,
	spec_version    INTEGER NOT NULL,
	extrinsic_index INTEGER NOT NULL,
	pallet          TEXT NOT NULL,
	method          TEXT NOT NULL,
	signed          BOOLEAN NOT NULL,
	reason          TEXT NOT NULL,
	PRIMARY KEY (block_hash, extrinsic_index)
)`

const createTableSQLite = `
CREATE TABLE IF NOT EXISTS qapi_extrinsic_identities (
	block_number    INTEGER NOT NULL,
	block_hash      TEXT NOT NULL,
	spec_version    INTEGER NOT NULL,
	extrinsic_index INTEGER NOT NULL,
	pallet          TEXT NOT NULL,
	method          TEXT NOT NULL,
	signed          INTEGER NOT NULL,
	reason          TEXT NOT NULL,
	PRIMARY KEY (block_hash, extrinsic_index)
)`

const upsertPostgres = `
INSERT INTO qapi_extrinsic_identities
	(block_number, block_hash, spec_version, extrinsic_index, pallet, method, signed, reason)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (block_hash, extrinsic_index) DO UPDATE SET
	block_number = EXCLUDED.block_number,
	spec_version = EXCLUDED.spec_version,
	pallet = EXCLUDED.pallet,
	method = EXCLUDED.method,
	signed = EXCLUDED.signed,
	reason = EXCLUDED.reason`

const upsertSQLite = `
INSERT OR REPLACE INTO qapi_extrinsic_identities
	(block_number, block_hash, spec_version, extrinsic_index, pallet, method, signed, reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// Open selects a driver from dsn's scheme (postgres:// for lib/pq;
// sqlite:// or file: for mattn/go-sqlite3), opens the connection pool,
// and ensures the identities table exists.
func Open(dsn string) (Store, error) {
	var d driver
	var driverName, connDSN string

	switch {
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		d, driverName, connDSN = driverPostgres, "postgres", dsn
	case strings.HasPrefix(dsn, "sqlite://"):
		d, driverName, connDSN = driverSQLite, "sqlite3", strings.TrimPrefix(dsn, "sqlite://")
	case strings.HasPrefix(dsn, "file:"):
		d, driverName, connDSN = driverSQLite, "sqlite3", dsn
	default:
		return nil, fmt.Errorf("recorder: unrecognized DSN scheme in %q", dsn)
	}

	db, err := sql.Open(driverName, connDSN)
	if err != nil {
		return nil, fmt.Errorf("recorder: open %s: %w", driverName, err)
	}

	s := &sqlStore{db: db, driver: d}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// newWithDB builds a Store over an already-open *sql.DB, for tests that
// substitute a go-sqlmock connection.
func newWithDB(db *sql.DB, d driver) *sqlStore {
	return &sqlStore{db: db, driver: d}
}

func (s *sqlStore) ensureSchema() error {
	stmt := createTablePostgres
	if s.driver == driverSQLite {
		stmt = createTableSQLite
	}
	_, err := s.db.Exec(stmt)
	if err != nil {
		return fmt.Errorf("recorder: create table: %w", err)
	}
	return nil
}

func (s *sqlStore) RecordBlock(ctx context.Context, rec BlockRecord) error {
	stmt := upsertPostgres
	if s.driver == driverSQLite {
		stmt = upsertSQLite
	}
	_, err := s.db.ExecContext(ctx, stmt,
		rec.BlockNumber, rec.BlockHash, rec.SpecVersion, rec.ExtrinsicIndex,
		rec.Pallet, rec.Method, rec.Signed, rec.Reason,
	)
	if err != nil {
		return fmt.Errorf("recorder: record block %s#%d: %w", rec.BlockHash, rec.ExtrinsicIndex, err)
	}
	return nil
}

func (s *sqlStore) Close() error { return s.db.Close() }
