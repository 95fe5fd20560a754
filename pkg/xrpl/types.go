package xrpl

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NativeCurrency is the ledger's native asset. Native amounts carry no issuer.
const NativeCurrency = "XRP"

// RippleEpochOffset converts ripple epoch seconds (since 2000-01-01) to unix.
const RippleEpochOffset = 946684800

// Amount is an XRPL currency amount. On the wire a native amount is a bare
// string of drops; an issued amount is an object with currency, issuer and
// value. Both decode into the same struct, with native amounts normalized
// to XRP units and an empty issuer.
type Amount struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
	Value    string `json:"value"`
}

// IsNative reports whether the amount is denominated in the native asset.
func (a Amount) IsNative() bool {
	return a.Currency == NativeCurrency && a.Issuer == ""
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var drops string
		if err := json.Unmarshal(data, &drops); err != nil {
			return err
		}
		xrp, err := DropsToXRP(drops)
		if err != nil {
			return err
		}
		a.Currency = NativeCurrency
		a.Issuer = ""
		a.Value = xrp
		return nil
	}

	type wireAmount Amount
	var w wireAmount
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*a = Amount(w)
	return nil
}

// DropsToXRP converts a drops string (integer, 1 XRP = 1,000,000 drops)
// to a decimal XRP string with trailing zeros trimmed.
func DropsToXRP(drops string) (string, error) {
	neg := strings.HasPrefix(drops, "-")
	v, err := strconv.ParseInt(strings.TrimPrefix(drops, "-"), 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid drops amount %q: %w", drops, err)
	}

	whole := v / 1000000
	frac := v % 1000000
	s := strconv.FormatInt(whole, 10)
	if frac != 0 {
		s += strings.TrimRight(fmt.Sprintf(".%06d", frac), "0")
	}
	if neg && v != 0 {
		s = "-" + s
	}
	return s, nil
}

// Memo is one entry of a transaction's Memos array, hex fields decoded
// lazily via DecodeHex.
type Memo struct {
	MemoType   string `json:"MemoType,omitempty"`
	MemoData   string `json:"MemoData,omitempty"`
	MemoFormat string `json:"MemoFormat,omitempty"`
}

// MemoWrapper mirrors the wire nesting {"Memo": {...}}.
type MemoWrapper struct {
	Memo Memo `json:"Memo"`
}

// DecodeHex decodes an XRPL hex-encoded memo field. Returns the empty
// string for fields that are not valid hex.
func DecodeHex(s string) string {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ""
	}
	return string(b)
}

// AffectedNode is one ledger entry touched by a transaction. The wire shape
// wraps the body under a single key naming the node type
// ("CreatedNode", "ModifiedNode" or "DeletedNode"); decoding flattens it.
type AffectedNode struct {
	NodeType        string
	LedgerEntryType string
	LedgerIndex     string
	FinalFields     map[string]any
	PreviousFields  map[string]any
	NewFields       map[string]any
}

type affectedNodeBody struct {
	LedgerEntryType string         `json:"LedgerEntryType"`
	LedgerIndex     string         `json:"LedgerIndex"`
	FinalFields     map[string]any `json:"FinalFields"`
	PreviousFields  map[string]any `json:"PreviousFields"`
	NewFields       map[string]any `json:"NewFields"`
}

func (n *AffectedNode) UnmarshalJSON(data []byte) error {
	var wrapper map[string]affectedNodeBody
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	for nodeType, body := range wrapper {
		n.NodeType = nodeType
		n.LedgerEntryType = body.LedgerEntryType
		n.LedgerIndex = body.LedgerIndex
		n.FinalFields = body.FinalFields
		n.PreviousFields = body.PreviousFields
		n.NewFields = body.NewFields
		return nil
	}
	return fmt.Errorf("affected node has no node type key")
}

func (n AffectedNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]affectedNodeBody{
		n.NodeType: {
			LedgerEntryType: n.LedgerEntryType,
			LedgerIndex:     n.LedgerIndex,
			FinalFields:     n.FinalFields,
			PreviousFields:  n.PreviousFields,
			NewFields:       n.NewFields,
		},
	})
}

// TxMeta is the execution metadata attached to a validated transaction.
type TxMeta struct {
	TransactionIndex  uint32         `json:"TransactionIndex"`
	TransactionResult string         `json:"TransactionResult"`
	DeliveredAmount   *Amount        `json:"delivered_amount,omitempty"`
	AffectedNodes     []AffectedNode `json:"AffectedNodes"`
}

// Transaction is one executed ledger transaction: the declared fields plus
// its execution metadata and the enrichment attributes attached during
// ingestion. Identified by (LedgerIndex, TxIndex). Immutable once handed to
// the processing path, except for the Client attribute which is derived
// once before any downstream use.
type Transaction struct {
	Account         string        `json:"Account"`
	Destination     string        `json:"Destination,omitempty"`
	TransactionType string        `json:"TransactionType"`
	Amount          *Amount       `json:"Amount,omitempty"`
	Fee             string        `json:"Fee,omitempty"`
	Sequence        uint32        `json:"Sequence,omitempty"`
	SourceTag       uint32        `json:"SourceTag,omitempty"`
	DestinationTag  uint32        `json:"DestinationTag,omitempty"`
	Memos           []MemoWrapper `json:"Memos,omitempty"`

	Hash         string `json:"hash"`
	LedgerIndex  uint32 `json:"ledger_index"`
	TxIndex      uint32 `json:"tx_index"`
	Result       string `json:"tx_result,omitempty"`
	ExecutedTime int64  `json:"executed_time"`
	Client       string `json:"client,omitempty"`

	Meta *TxMeta `json:"metaData,omitempty"`
}

// Key returns the composite storage key, ledgerIndex.txIndex.
func (tx *Transaction) Key() string {
	return fmt.Sprintf("%d.%d", tx.LedgerIndex, tx.TxIndex)
}

// ResultCode returns the transaction's engine result, preferring the
// metadata result over the enrichment field.
func (tx *Transaction) ResultCode() string {
	if tx.Meta != nil && tx.Meta.TransactionResult != "" {
		return tx.Meta.TransactionResult
	}
	return tx.Result
}

// Ledger is a validated ledger with its transactions expanded.
type Ledger struct {
	Index        uint32
	Hash         string
	CloseTime    int64 // unix seconds
	Transactions []*Transaction
}
