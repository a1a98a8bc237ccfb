package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id UUID PRIMARY KEY,
		network TEXT NOT NULL,
		chain_id TEXT,
		rpc_url TEXT,
		deployer TEXT,
		contract TEXT,
		contract_address TEXT,
		deploy_tx TEXT,
		invoke_tx TEXT,
		invoke_block BIGINT,
		identifier TEXT,
		identifier_source TEXT,
		status TEXT NOT NULL,
		error_kind TEXT,
		error TEXT,
		started_at TIMESTAMPTZ NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0
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
func (s *PostgresStore) RecordRun(ctx context.Context, r *Run) error {
	prepare(r)
	query := `
		INSERT INTO runs (id, network, chain_id, rpc_url, deployer, contract, contract_address, deploy_tx, invoke_tx,
			invoke_block, identifier, identifier_source, status, error_kind, error, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Network, r.ChainID, r.RPCURL, r.Deployer, r.Contract, r.ContractAddress, r.DeployTx, r.InvokeTx,
		r.InvokeBlock, r.Identifier, r.IdentifierSource, r.Status, r.ErrorKind, r.Error,
		r.StartedAt, r.Duration.Milliseconds(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicate, r.ID)
	}
	return err
}

const postgresRunColumns = `id::text, network, chain_id, rpc_url, deployer, contract, contract_address, deploy_tx, invoke_tx,
	invoke_block, identifier, identifier_source, status, error_kind, error, started_at, duration_ms`

// GetRun retrieves a run by id
func (s *PostgresStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+postgresRunColumns+" FROM runs WHERE id::text = $1", id)
	r, err := scanPostgresRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// ListRuns lists runs, newest first
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	var conditions []string
	var args []any
	argNum := 1
	if filter.Network != "" {
		conditions = append(conditions, fmt.Sprintf("network = $%d", argNum))
		args = append(args, filter.Network)
		argNum++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, filter.Status)
		argNum++
	}

	query := "SELECT " + postgresRunColumns + " FROM runs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d", argNum)
	args = append(args, clampLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func scanPostgresRun(sc scanner) (*Run, error) {
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
		durationMS int64
	)
	err := sc.Scan(&r.ID, &r.Network, &chainID, &rpcURL, &deployer, &contract, &address, &deployTx, &invokeTx,
		&block, &identifier, &source, &r.Status, &errKind, &errMsg, &r.StartedAt, &durationMS)
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
	return &r, nil
}
