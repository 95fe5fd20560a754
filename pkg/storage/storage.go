// Package storage persists raw transactions and their parsed views, keyed
// by ledgerIndex.txIndex. Writes are idempotent overwrites: re-processing a
// transaction after a failed cycle re-writes the same rows, which is what
// makes at-least-once redelivery safe.
package storage

import (
	"context"
	"fmt"

	"github.com/Qdigital/rippled-database-stargate/pkg/parser"
	"github.com/Qdigital/rippled-database-stargate/pkg/xrpl"
)

// Table names used in write error reporting.
const (
	TableTransactions = "transactions"
	TableParsedData   = "parsed_data"
)

// Store is the storage backend handle. Implementations must support
// concurrent outstanding writes; callers guarantee key uniqueness across
// in-flight records, so no write contention occurs.
type Store interface {
	SaveTransaction(ctx context.Context, tx *xrpl.Transaction) error
	SaveParsedData(ctx context.Context, parsed *parser.Parsed) error
	Close() error
}

// WriteError identifies which table write failed and for which record.
type WriteError struct {
	Table string
	Key   string
	Hash  string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("unable to save %s %s %s: %v", e.Table, e.Key, e.Hash, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
