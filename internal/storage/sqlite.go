package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteTimeFormat has a fixed-width fraction so text order matches time order
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		network TEXT NOT NULL,
		chain_id TEXT,
		rpc_url TEXT,
		deployer TEXT,
		contract TEXT,
		contract_address TEXT,
		deploy_tx TEXT,
		invoke_tx TEXT,
		invoke_block INTEGER,
		identifier TEXT,
		identifier_source TEXT,
		status TEXT NOT NULL,
		error_kind TEXT,
		error TEXT,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_network ON runs(network);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// RecordRun inserts a finished run
func (s *SQLiteStore) RecordRun(ctx context.Context, r *Run) error {
	prepare(r)
	query := `
		INSERT INTO runs (id, network, chain_id, rpc_url, deployer, contract, contract_address, deploy_tx, invoke_tx,
			invoke_block, identifier, identifier_source, status, error_kind, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Network, r.ChainID, r.RPCURL, r.Deployer, r.Contract, r.ContractAddress, r.DeployTx, r.InvokeTx,
		r.InvokeBlock, r.Identifier, r.IdentifierSource, r.Status, r.ErrorKind, r.Error,
		r.StartedAt.Format(sqliteTimeFormat), r.Duration.Milliseconds(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicate, r.ID)
	}
	return err
}

const sqliteRunColumns = `id, network, chain_id, rpc_url, deployer, contract, contract_address, deploy_tx, invoke_tx,
	invoke_block, identifier, identifier_source, status, error_kind, error, started_at, duration_ms`

// GetRun retrieves a run by id
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sqliteRunColumns+" FROM runs WHERE id = ?", id)
	r, err := scanSQLiteRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// ListRuns lists runs, newest first
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	var conditions []string
	var args []any
	if filter.Network != "" {
		conditions = append(conditions, "network = ?")
		args = append(args, filter.Network)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	query := "SELECT " + sqliteRunColumns + " FROM runs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, clampLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(sc scanner) (*Run, error) {
	var (
		r          Run
		chainID    sql.NullString
		rpcURL     sql.NullString
		deployer   sql.NullString
		contract   sql.NullString
		address    sql.NullString
		deployTx   sql.NullString
		invokeTx   sql.NullString
		block      sql.NullInt64
		identifier sql.NullString
		source     sql.NullString
		errKind    sql.NullString
		errMsg     sql.NullString
		startedAt  string
		durationMS int64
	)
	err := sc.Scan(&r.ID, &r.Network, &chainID, &rpcURL, &deployer, &contract, &address, &deployTx, &invokeTx,
		&block, &identifier, &source, &r.Status, &errKind, &errMsg, &startedAt, &durationMS)
	if err != nil {
		return nil, err
	}

	r.ChainID = chainID.String
	r.RPCURL = rpcURL.String
	r.Deployer = deployer.String
	r.Contract = contract.String
	r.ContractAddress = address.String
	r.DeployTx = deployTx.String
	r.InvokeTx = invokeTx.String
	r.InvokeBlock = block.Int64
	r.Identifier = identifier.String
	r.IdentifierSource = source.String
	r.ErrorKind = errKind.String
	r.Error = errMsg.String
	r.Duration = time.Duration(durationMS) * time.Millisecond
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at %q: %w", startedAt, err)
	}
	return &r, nil
}
