package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Qdigital/rippled-database-stargate/pkg/parser"
	"github.com/Qdigital/rippled-database-stargate/pkg/xrpl"
)

// Memory is an in-memory Store with the same keyed-overwrite semantics as
// the DuckDB backend. Used by tests and by worker dry runs.
type Memory struct {
	mu           sync.Mutex
	transactions map[string][]byte
	parsed       map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[string][]byte),
		parsed:       make(map[string][]byte),
	}
}

// SaveTransaction stores the raw transaction row, overwriting any previous
// row at the same key.
func (m *Memory) SaveTransaction(ctx context.Context, tx *xrpl.Transaction) error {
	raw, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.Key()] = raw
	return nil
}

// SaveParsedData stores the derived-data row, overwriting any previous row
// at the same key.
func (m *Memory) SaveParsedData(ctx context.Context, parsed *parser.Parsed) error {
	raw, err := json.Marshal(parsed)
	if err != nil {
		return fmt.Errorf("failed to marshal parsed data: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.parsed[parsed.Key()] = raw
	return nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}

// Transaction returns the stored raw row for a key, or nil.
func (m *Memory) Transaction(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transactions[key]
}

// ParsedData returns the stored derived row for a key, or nil.
func (m *Memory) ParsedData(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.parsed[key]
}

// Len returns the row counts of both tables.
func (m *Memory) Len() (transactions, parsed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions), len(m.parsed)
}
