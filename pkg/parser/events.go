package parser

import (
	"github.com/Qdigital/rippled-database-stargate/pkg/xrpl"
)

// Issue identifies one leg of a currency pair. Issuer is empty for the
// native asset.
type Issue struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
}

func (i Issue) key() string {
	if i.Issuer == "" {
		return i.Currency
	}
	return i.Currency + "." + i.Issuer
}

// Exchange is a currency conversion event extracted from a consumed offer.
// An auto-bridged payment routes through the native asset and produces one
// exchange per leg.
type Exchange struct {
	Base          Issue  `json:"base"`
	Counter       Issue  `json:"counter"`
	BaseAmount    string `json:"base_amount"`
	CounterAmount string `json:"counter_amount"`
	Buyer         string `json:"buyer"`
	Seller        string `json:"seller"`
	Time          int64  `json:"time"`
	TxHash        string `json:"tx_hash"`
	LedgerIndex   uint32 `json:"ledger_index"`
	TxIndex       uint32 `json:"tx_index"`
}

// Pair returns the canonical pair key,
// base.currency[.base.issuer]/counter.currency[.counter.issuer].
func (e Exchange) Pair() string {
	return e.Base.key() + "/" + e.Counter.key()
}

// Payment is a value transfer between two accounts.
type Payment struct {
	Currency       string `json:"currency"`
	Issuer         string `json:"issuer,omitempty"`
	Amount         string `json:"amount"`
	Source         string `json:"source"`
	Destination    string `json:"destination"`
	SourceTag      uint32 `json:"source_tag,omitempty"`
	DestinationTag uint32 `json:"destination_tag,omitempty"`
	Fee            string `json:"fee,omitempty"`
	Time           int64  `json:"time"`
	TxHash         string `json:"tx_hash"`
	LedgerIndex    uint32 `json:"ledger_index"`
	TxIndex        uint32 `json:"tx_index"`
}

// Key returns the currency-level aggregation key, currency[|issuer].
func (p Payment) Key() string {
	if p.Issuer == "" {
		return p.Currency
	}
	return p.Currency + "|" + p.Issuer
}

// BalanceChange is a per-account, per-currency balance delta.
type BalanceChange struct {
	Account  string `json:"account"`
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
	Change   string `json:"change"`
	Time     int64  `json:"time"`
	TxHash   string `json:"tx_hash"`
}

// AccountCreated records a newly funded account.
type AccountCreated struct {
	Account string `json:"account"`
	Parent  string `json:"parent"`
	Balance string `json:"balance"`
	Time    int64  `json:"time"`
	TxHash  string `json:"tx_hash"`
}

// ParsedData holds every event extracted from one transaction. Collections
// are always non-nil so downstream count checks are well defined.
type ParsedData struct {
	Exchanges       []Exchange       `json:"exchanges"`
	Payments        []Payment        `json:"payments"`
	BalanceChanges  []BalanceChange  `json:"balanceChanges"`
	AccountsCreated []AccountCreated `json:"accountsCreated"`
}

// Parsed is the per-transaction derived view persisted alongside the raw
// transaction and fanned out to the aggregation streams.
type Parsed struct {
	Data        *ParsedData       `json:"data"`
	LedgerIndex uint32            `json:"ledgerIndex"`
	TxIndex     uint32            `json:"txIndex"`
	Tx          *xrpl.Transaction `json:"tx"`
}

// Key returns the composite storage key, ledgerIndex.txIndex.
func (p *Parsed) Key() string {
	return p.Tx.Key()
}
