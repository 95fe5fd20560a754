package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/Qdigital/rippled-database-stargate/pkg/parser"
	"github.com/Qdigital/rippled-database-stargate/pkg/xrpl"
)

// DuckDB is the column-oriented storage backend. Rows are keyed by
// (ledger_index, tx_index); INSERT OR REPLACE gives the overwrite semantics
// the redelivery contract relies on.
type DuckDB struct {
	db  *sql.DB
	log *zap.Logger
}

// NewDuckDB opens (or creates) the database at path and ensures the
// transactions and parsed_data tables exist.
func NewDuckDB(path string, log *zap.Logger) (*DuckDB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB at %s: %w", path, err)
	}

	d := &DuckDB{db: db, log: log}
	if err := d.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return d, nil
}

func (d *DuckDB) initialize() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			ledger_index UINTEGER NOT NULL,
			tx_index     UINTEGER NOT NULL,
			hash         VARCHAR,
			tx_type      VARCHAR,
			tx_result    VARCHAR,
			executed     BIGINT,
			client       VARCHAR,
			raw          JSON,
			PRIMARY KEY (ledger_index, tx_index)
		)`,
		`CREATE TABLE IF NOT EXISTS parsed_data (
			ledger_index     UINTEGER NOT NULL,
			tx_index         UINTEGER NOT NULL,
			exchanges        JSON,
			payments         JSON,
			balance_changes  JSON,
			accounts_created JSON,
			PRIMARY KEY (ledger_index, tx_index)
		)`,
	}

	for _, ddl := range tables {
		if _, err := d.db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	d.log.Info("DuckDB storage initialized")
	return nil
}

// SaveTransaction writes the raw transaction row.
func (d *DuckDB) SaveTransaction(ctx context.Context, tx *xrpl.Transaction) error {
	raw, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO transactions
			(ledger_index, tx_index, hash, tx_type, tx_result, executed, client, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.LedgerIndex, tx.TxIndex, tx.Hash, tx.TransactionType,
		tx.ResultCode(), tx.ExecutedTime, tx.Client, string(raw))
	if err != nil {
		return fmt.Errorf("failed to write transaction row: %w", err)
	}
	return nil
}

// SaveParsedData writes the derived-data row.
func (d *DuckDB) SaveParsedData(ctx context.Context, parsed *parser.Parsed) error {
	exchanges, err := json.Marshal(parsed.Data.Exchanges)
	if err != nil {
		return fmt.Errorf("failed to marshal exchanges: %w", err)
	}
	payments, err := json.Marshal(parsed.Data.Payments)
	if err != nil {
		return fmt.Errorf("failed to marshal payments: %w", err)
	}
	balanceChanges, err := json.Marshal(parsed.Data.BalanceChanges)
	if err != nil {
		return fmt.Errorf("failed to marshal balance changes: %w", err)
	}
	accountsCreated, err := json.Marshal(parsed.Data.AccountsCreated)
	if err != nil {
		return fmt.Errorf("failed to marshal accounts created: %w", err)
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO parsed_data
			(ledger_index, tx_index, exchanges, payments, balance_changes, accounts_created)
		VALUES (?, ?, ?, ?, ?, ?)`,
		parsed.LedgerIndex, parsed.TxIndex, string(exchanges), string(payments),
		string(balanceChanges), string(accountsCreated))
	if err != nil {
		return fmt.Errorf("failed to write parsed_data row: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (d *DuckDB) Close() error {
	return d.db.Close()
}
