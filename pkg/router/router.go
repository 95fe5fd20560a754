// Package router fans a parsed transaction out to the named aggregation
// streams: exchanges by currency pair, payments by currency and by account,
// and per-transaction stats by metric label.
package router

import (
	"context"

	"go.uber.org/zap"

	"github.com/Qdigital/rippled-database-stargate/pkg/parser"
)

// Aggregation stream names. Consumers subscribe per stream and partition by
// the record key.
const (
	StreamExchanges       = "exchangeAggregation"
	StreamStats           = "statsAggregation"
	StreamPayments        = "paymentsAggregation"
	StreamAccountPayments = "accountPaymentsAggregation"
)

// Stat label keys on the stats stream.
const (
	StatTransactionCount  = "transaction_count"
	StatTransactionType   = "transaction_type"
	StatTransactionResult = "transaction_result"
	StatAccountsCreated   = "accounts_created"
	StatPaymentsCount     = "payments_count"
	StatExchangesCount    = "exchanges_count"
)

// Stat is the minimal payload of one stats-stream record.
type Stat struct {
	Count  int    `json:"count,omitempty"`
	Type   string `json:"type,omitempty"`
	Result string `json:"result,omitempty"`
	Time   int64  `json:"time"`
}

// Emitter delivers one keyed record to a named aggregation stream. The
// anchor is the lineage id of the source transaction; every record derived
// from one transaction carries the same anchor.
//
// Delivery is at-least-once: emissions from a processing cycle that is
// later reported failed are not reverted, so a redelivered transaction
// emits its full record set again under the same anchor. Consumers must
// tolerate duplicates (and may deduplicate by anchor, stream and key).
type Emitter interface {
	Emit(ctx context.Context, stream, key string, payload any, anchor string) error
}

// Router derives aggregation keys from a parsed view and emits one record
// per (stream, key) pair.
type Router struct {
	emitter Emitter
	log     *zap.Logger
}

// New creates a Router on top of the given emitter.
func New(emitter Emitter, log *zap.Logger) *Router {
	return &Router{emitter: emitter, log: log}
}

// Route emits the full derived record set for one parsed transaction. It
// never fails the transaction: emitter errors are logged and skipped, since
// the aggregation streams are a separate reliability domain from storage
// persistence.
func (r *Router) Route(ctx context.Context, parsed *parser.Parsed, anchor string) {
	tx := parsed.Tx
	data := parsed.Data

	for _, exchange := range data.Exchanges {
		r.emit(ctx, StreamExchanges, exchange.Pair(), exchange, anchor)
	}

	r.emit(ctx, StreamStats, StatTransactionCount,
		Stat{Count: 1, Time: tx.ExecutedTime}, anchor)
	r.emit(ctx, StreamStats, StatTransactionType,
		Stat{Type: tx.TransactionType, Time: tx.ExecutedTime}, anchor)
	r.emit(ctx, StreamStats, StatTransactionResult,
		Stat{Result: tx.ResultCode(), Time: tx.ExecutedTime}, anchor)

	if n := len(data.AccountsCreated); n > 0 {
		r.emit(ctx, StreamStats, StatAccountsCreated,
			Stat{Count: n, Time: tx.ExecutedTime}, anchor)
	}
	if n := len(data.Payments); n > 0 {
		r.emit(ctx, StreamStats, StatPaymentsCount,
			Stat{Count: n, Time: tx.ExecutedTime}, anchor)
	}
	if n := len(data.Exchanges); n > 0 {
		r.emit(ctx, StreamStats, StatExchangesCount,
			Stat{Count: n, Time: tx.ExecutedTime}, anchor)
	}

	for _, payment := range data.Payments {
		r.emit(ctx, StreamPayments, payment.Key(), payment, anchor)

		// One record per touched account, so per-account rollups see both
		// sides of the transfer. A self-payment still emits twice.
		r.emit(ctx, StreamAccountPayments, payment.Source, payment, anchor)
		r.emit(ctx, StreamAccountPayments, payment.Destination, payment, anchor)
	}
}

func (r *Router) emit(ctx context.Context, stream, key string, payload any, anchor string) {
	if err := r.emitter.Emit(ctx, stream, key, payload, anchor); err != nil {
		r.log.Error("aggregation emit failed",
			zap.String("stream", stream),
			zap.String("key", key),
			zap.String("anchor", anchor),
			zap.Error(err))
	}
}
