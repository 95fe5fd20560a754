package storage

import (
	"context"
	"fmt"

	"github.com/Qdigital/rippled-database-stargate/pkg/parser"
	"github.com/Qdigital/rippled-database-stargate/pkg/xrpl"
)

// Coordinator joins the raw and parsed writes of one record into a single
// outcome: success only if both succeed, first error wins on failure.
type Coordinator struct {
	store Store
}

// NewCoordinator wraps a storage backend handle.
func NewCoordinator(store Store) *Coordinator {
	return &Coordinator{store: store}
}

// Persist issues both writes concurrently and waits for the slower one.
// A returned error is always a *WriteError naming the failing table and
// the record's composite key. A panic in a backend write is contained to
// this record and surfaces as its write error.
func (c *Coordinator) Persist(ctx context.Context, tx *xrpl.Transaction, parsed *parser.Parsed) error {
	errs := make(chan error, 2)

	write := func(table string, save func() error) {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
			if err != nil {
				errs <- &WriteError{Table: table, Key: tx.Key(), Hash: tx.Hash, Err: err}
				return
			}
			errs <- nil
		}()
		err = save()
	}

	go write(TableTransactions, func() error { return c.store.SaveTransaction(ctx, tx) })
	go write(TableParsedData, func() error { return c.store.SaveParsedData(ctx, parsed) })

	var first error
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil && first == nil {
			first = err
		}
	}
	return first
}
