// Package processor implements the per-record processing unit: enrich,
// parse, persist and route one transaction, then report its outcome to the
// delivering runtime through its lineage anchor.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Qdigital/rippled-database-stargate/pkg/parser"
	"github.com/Qdigital/rippled-database-stargate/pkg/router"
	"github.com/Qdigital/rippled-database-stargate/pkg/storage"
	"github.com/Qdigital/rippled-database-stargate/pkg/xrpl"
)

// ErrBadTransaction marks a parse fault: the record is structurally invalid
// and redelivering it would fail identically, so it is discarded rather
// than retried.
var ErrBadTransaction = errors.New("structurally invalid transaction")

// Anchor is the lineage token of one delivered record. Exactly one of Ack,
// Fail or Discard is called per processing attempt: Ack on success, Fail to
// request redelivery after a recoverable fault, Discard for records that
// can never succeed.
type Anchor interface {
	ID() string
	Ack() error
	Fail() error
	Discard() error
}

// Archiver is the optional raw-transaction archival channel.
type Archiver interface {
	Archive(ctx context.Context, tx *xrpl.Transaction) error
}

// Processor runs the per-record state machine:
// received → enriched → parsed → {persisting ∥ routing} → completed|failed.
type Processor struct {
	persist *storage.Coordinator
	router  *router.Router
	archive Archiver // nil when the archival channel is disabled
	log     *zap.Logger
}

// New creates a Processor. archive may be nil.
func New(persist *storage.Coordinator, r *router.Router, archive Archiver, log *zap.Logger) *Processor {
	return &Processor{persist: persist, router: r, archive: archive, log: log}
}

// Process handles one delivered transaction and reports its outcome on the
// anchor. The returned error mirrors what was reported: nil after Ack,
// ErrBadTransaction (wrapped) after Discard, the persistence error after
// Fail. A panic anywhere in the cycle is contained to this record and
// reported as its failure.
func (p *Processor) Process(ctx context.Context, tx *xrpl.Transaction, anchor Anchor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing transaction %s: %v", tx.Key(), r)
			p.log.Error("processing panic",
				zap.String("key", tx.Key()),
				zap.String("hash", tx.Hash),
				zap.Any("panic", r))
			p.fail(anchor)
		}
	}()

	tx.Client = parser.FromClient(tx)

	if p.archive != nil {
		if aerr := p.archive.Archive(ctx, tx); aerr != nil {
			// Archival is best effort; the record's outcome is decided by
			// persistence alone.
			p.log.Warn("raw transaction archival failed",
				zap.String("key", tx.Key()),
				zap.Error(aerr))
		}
	}

	parsed, perr := parser.Parse(tx)
	if perr != nil {
		p.log.Error("unparseable transaction discarded",
			zap.String("key", tx.Key()),
			zap.String("hash", tx.Hash),
			zap.Error(perr))
		if derr := anchor.Discard(); derr != nil {
			p.log.Warn("failed to discard record", zap.String("key", tx.Key()), zap.Error(derr))
		}
		return fmt.Errorf("%w: %v", ErrBadTransaction, perr)
	}

	// Routing and persistence are independent; routing cannot fail the
	// record, so the outcome is the persistence outcome. The fan-out is
	// issued concurrently with the writes and only the writes are joined.
	var routed sync.WaitGroup
	routed.Add(1)
	go func() {
		defer routed.Done()
		p.router.Route(ctx, parsed, anchor.ID())
	}()

	werr := p.persist.Persist(ctx, tx, parsed)
	routed.Wait()

	if werr != nil {
		p.log.Error("persistence failed",
			zap.String("key", tx.Key()),
			zap.String("hash", tx.Hash),
			zap.Error(werr))
		p.fail(anchor)
		return werr
	}

	if aerr := anchor.Ack(); aerr != nil {
		p.log.Warn("failed to ack record", zap.String("key", tx.Key()), zap.Error(aerr))
	}
	return nil
}

func (p *Processor) fail(anchor Anchor) {
	if ferr := anchor.Fail(); ferr != nil {
		p.log.Warn("failed to report record failure", zap.Error(ferr))
	}
}
