package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Pragmas applied to every connection of both pools.
const connPragmas = "_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)"

const (
	// Ledger transitions are single-row updates; one writer keeps concurrent
	// events from tripping over "database is locked".
	maxWriterConns = 1
	maxReaderConns = 4
)

// DB holds the ledger database: a single-connection writer pool for every
// state transition and a small reader pool for the API and dashboard.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
}

// NewDB opens the database file at dbPath in WAL mode, creating its parent
// directory when needed, and checks that both pools answer before returning.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	if dbPath == "" {
		return nil, errors.New("database path is empty")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	return openDSN(ctx, fileDSN(dbPath))
}

func fileDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&%s", path, connPragmas)
}

// memoryDSN names a shared in-memory database so the writer and reader pools
// see the same data. WAL does not apply to memory databases.
func memoryDSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", url.PathEscape(name), connPragmas)
}

func openDSN(ctx context.Context, dsn string) (*DB, error) {
	writer, err := openPool(ctx, dsn, maxWriterConns)
	if err != nil {
		return nil, fmt.Errorf("writer: %w", err)
	}
	reader, err := openPool(ctx, dsn, maxReaderConns)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("reader: %w", err)
	}
	return &DB{Writer: writer, Reader: reader}, nil
}

func openPool(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	pool.SetMaxOpenConns(maxConns)
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Close closes the reader pool, then the writer.
func (db *DB) Close() error {
	var errs []error
	if err := db.Reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close reader: %w", err))
	}
	if err := db.Writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close writer: %w", err))
	}
	return errors.Join(errs...)
}
