// Package storage is the optional run journal. Runs write one row when they
// finish; nothing in a run reads the journal back.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pendergraft/shipcheck/internal/config"
)

const (
	defaultListLimit = 20
	maxListLimit     = 1000
)

// Run statuses
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunStore records finished runs
type RunStore interface {
	RecordRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
}

// Store combines the run store with lifecycle methods
type Store interface {
	RunStore

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Run is one journal row
type Run struct {
	ID               string
	Network          string
	ChainID          string
	RPCURL           string
	Deployer         string
	Contract         string
	ContractAddress  string
	DeployTx         string
	InvokeTx         string
	InvokeBlock      int64
	Identifier       string // empty when not found
	IdentifierSource string
	Status           string
	ErrorKind        string
	Error            string
	StartedAt        time.Time
	Duration         time.Duration
}

// RunFilter contains filter options for listing runs
type RunFilter struct {
	Network string
	Status  string
	Limit   int
}

// New creates a new store based on configuration. A journal of type "none"
// returns (nil, nil).
func New(cfg config.JournalConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.URL, logger)
	default:
		return nil, fmt.Errorf("unknown journal type: %s", cfg.Type)
	}
}

// prepare fills defaults before insert
func prepare(r *Run) {
	if r.ID == "" {
		r.ID = generateID()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	r.StartedAt = r.StartedAt.UTC()
}
