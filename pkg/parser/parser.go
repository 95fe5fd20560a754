// Package parser turns raw ledger transactions into the structured view the
// aggregation and persistence stages consume. Parsing is a pure
// transformation: it walks the transaction's execution metadata and never
// performs I/O.
package parser

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/Qdigital/rippled-database-stargate/pkg/xrpl"
)

const resultSuccess = "tesSUCCESS"

// Parse builds the derived view for one transaction. It is total for any
// transaction carrying execution metadata; a transaction without metadata is
// structurally invalid and rejected. Event collections are extracted only
// for successfully applied transactions, but the view itself (and therefore
// type/result classification) is produced for every result code.
func Parse(tx *xrpl.Transaction) (*Parsed, error) {
	if tx.Meta == nil {
		return nil, fmt.Errorf("transaction %s has no execution metadata", tx.Key())
	}

	data := &ParsedData{
		Exchanges:       []Exchange{},
		Payments:        []Payment{},
		BalanceChanges:  []BalanceChange{},
		AccountsCreated: []AccountCreated{},
	}

	if tx.ResultCode() == resultSuccess {
		data.Payments = parsePayments(tx)
		data.Exchanges = parseExchanges(tx)
		data.BalanceChanges = parseBalanceChanges(tx)
		data.AccountsCreated = parseAccountsCreated(tx)
	}

	return &Parsed{
		Data:        data,
		LedgerIndex: tx.LedgerIndex,
		TxIndex:     tx.TxIndex,
		Tx:          tx,
	}, nil
}

// FromClient derives the originating application from the transaction's
// memos: the data of the first memo typed "client". Empty when the
// transaction carries no client hint.
func FromClient(tx *xrpl.Transaction) string {
	for _, m := range tx.Memos {
		if strings.EqualFold(xrpl.DecodeHex(m.Memo.MemoType), "client") {
			return xrpl.DecodeHex(m.Memo.MemoData)
		}
	}
	return ""
}

// parsePayments extracts the value transfer from a Payment transaction.
// A payment back to the sending account is a currency conversion, not a
// transfer, and yields no payment event.
func parsePayments(tx *xrpl.Transaction) []Payment {
	if tx.TransactionType != "Payment" || tx.Account == tx.Destination {
		return []Payment{}
	}

	amount := tx.Amount
	if tx.Meta.DeliveredAmount != nil {
		amount = tx.Meta.DeliveredAmount
	}
	if amount == nil {
		return []Payment{}
	}

	return []Payment{{
		Currency:       amount.Currency,
		Issuer:         amount.Issuer,
		Amount:         amount.Value,
		Source:         tx.Account,
		Destination:    tx.Destination,
		SourceTag:      tx.SourceTag,
		DestinationTag: tx.DestinationTag,
		Fee:            feeXRP(tx),
		Time:           tx.ExecutedTime,
		TxHash:         tx.Hash,
		LedgerIndex:    tx.LedgerIndex,
		TxIndex:        tx.TxIndex,
	}}
}

// parseExchanges extracts one exchange per offer the transaction consumed,
// from the TakerPays/TakerGets deltas of modified and deleted offer nodes.
func parseExchanges(tx *xrpl.Transaction) []Exchange {
	exchanges := []Exchange{}

	for _, node := range tx.Meta.AffectedNodes {
		if node.LedgerEntryType != "Offer" {
			continue
		}
		if node.NodeType != "ModifiedNode" && node.NodeType != "DeletedNode" {
			continue
		}

		prevPays, okPays := amountField(node.PreviousFields, "TakerPays")
		prevGets, okGets := amountField(node.PreviousFields, "TakerGets")
		if !okPays || !okGets {
			// Offer touched without a crossing, e.g. an OfferCancel.
			continue
		}

		finalPays, ok := amountField(node.FinalFields, "TakerPays")
		if !ok {
			finalPays = zeroOf(prevPays)
		}
		finalGets, ok := amountField(node.FinalFields, "TakerGets")
		if !ok {
			finalGets = zeroOf(prevGets)
		}

		paid, err := decimalSub(prevPays.Value, finalPays.Value)
		if err != nil {
			continue
		}
		got, err := decimalSub(prevGets.Value, finalGets.Value)
		if err != nil {
			continue
		}

		exchanges = append(exchanges, Exchange{
			Base:          Issue{Currency: prevGets.Currency, Issuer: prevGets.Issuer},
			Counter:       Issue{Currency: prevPays.Currency, Issuer: prevPays.Issuer},
			BaseAmount:    got,
			CounterAmount: paid,
			Buyer:         tx.Account,
			Seller:        stringField(node.FinalFields, "Account"),
			Time:          tx.ExecutedTime,
			TxHash:        tx.Hash,
			LedgerIndex:   tx.LedgerIndex,
			TxIndex:       tx.TxIndex,
		})
	}

	return exchanges
}

// parseBalanceChanges extracts native deltas from AccountRoot nodes and
// issued-currency deltas from RippleState (trust line) nodes.
func parseBalanceChanges(tx *xrpl.Transaction) []BalanceChange {
	changes := []BalanceChange{}

	for _, node := range tx.Meta.AffectedNodes {
		switch node.LedgerEntryType {
		case "AccountRoot":
			account := stringField(node.FinalFields, "Account")
			if account == "" {
				account = stringField(node.NewFields, "Account")
			}

			var change string
			switch node.NodeType {
			case "ModifiedNode":
				prev, okPrev := amountField(node.PreviousFields, "Balance")
				final, okFinal := amountField(node.FinalFields, "Balance")
				if !okPrev || !okFinal {
					continue
				}
				delta, err := decimalSub(final.Value, prev.Value)
				if err != nil || delta == "0" {
					continue
				}
				change = delta
			case "CreatedNode":
				balance, ok := amountField(node.NewFields, "Balance")
				if !ok {
					continue
				}
				change = balance.Value
			default:
				continue
			}

			changes = append(changes, BalanceChange{
				Account:  account,
				Currency: xrpl.NativeCurrency,
				Change:   change,
				Time:     tx.ExecutedTime,
				TxHash:   tx.Hash,
			})

		case "RippleState":
			fields := node.FinalFields
			if node.NodeType == "CreatedNode" {
				fields = node.NewFields
			}

			final, okFinal := amountField(fields, "Balance")
			if !okFinal {
				continue
			}
			prev := zeroOf(final)
			if node.NodeType == "ModifiedNode" {
				if p, ok := amountField(node.PreviousFields, "Balance"); ok {
					prev = p
				} else {
					continue
				}
			}

			delta, err := decimalSub(final.Value, prev.Value)
			if err != nil || delta == "0" {
				continue
			}

			// A trust line balance is stated from the low account's
			// perspective; the high account sees the negated delta.
			low := limitIssuer(fields, "LowLimit")
			high := limitIssuer(fields, "HighLimit")
			negated, err := decimalNeg(delta)
			if err != nil {
				continue
			}

			changes = append(changes,
				BalanceChange{
					Account:  low,
					Currency: final.Currency,
					Issuer:   high,
					Change:   delta,
					Time:     tx.ExecutedTime,
					TxHash:   tx.Hash,
				},
				BalanceChange{
					Account:  high,
					Currency: final.Currency,
					Issuer:   low,
					Change:   negated,
					Time:     tx.ExecutedTime,
					TxHash:   tx.Hash,
				})
		}
	}

	return changes
}

// parseAccountsCreated extracts newly funded accounts from created
// AccountRoot nodes.
func parseAccountsCreated(tx *xrpl.Transaction) []AccountCreated {
	created := []AccountCreated{}

	for _, node := range tx.Meta.AffectedNodes {
		if node.NodeType != "CreatedNode" || node.LedgerEntryType != "AccountRoot" {
			continue
		}

		balance := ""
		if amount, ok := amountField(node.NewFields, "Balance"); ok {
			balance = amount.Value
		}

		created = append(created, AccountCreated{
			Account: stringField(node.NewFields, "Account"),
			Parent:  tx.Account,
			Balance: balance,
			Time:    tx.ExecutedTime,
			TxHash:  tx.Hash,
		})
	}

	return created
}

func feeXRP(tx *xrpl.Transaction) string {
	if tx.Fee == "" {
		return ""
	}
	fee, err := xrpl.DropsToXRP(tx.Fee)
	if err != nil {
		return ""
	}
	return fee
}

// amountField reads an amount-valued metadata field, which is either a
// drops string (native) or a currency/issuer/value object (issued).
func amountField(fields map[string]any, key string) (xrpl.Amount, bool) {
	v, ok := fields[key]
	if !ok {
		return xrpl.Amount{}, false
	}

	switch val := v.(type) {
	case string:
		xrp, err := xrpl.DropsToXRP(val)
		if err != nil {
			return xrpl.Amount{}, false
		}
		return xrpl.Amount{Currency: xrpl.NativeCurrency, Value: xrp}, true
	case map[string]any:
		currency, _ := val["currency"].(string)
		issuer, _ := val["issuer"].(string)
		value, _ := val["value"].(string)
		if currency == "" || value == "" {
			return xrpl.Amount{}, false
		}
		return xrpl.Amount{Currency: currency, Issuer: issuer, Value: value}, true
	}
	return xrpl.Amount{}, false
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

// limitIssuer reads the account side of a trust line limit field.
func limitIssuer(fields map[string]any, key string) string {
	limit, ok := fields[key].(map[string]any)
	if !ok {
		return ""
	}
	issuer, _ := limit["issuer"].(string)
	return issuer
}

func zeroOf(a xrpl.Amount) xrpl.Amount {
	return xrpl.Amount{Currency: a.Currency, Issuer: a.Issuer, Value: "0"}
}

// decimalSub computes a-b over decimal strings without loss of precision.
func decimalSub(a, b string) (string, error) {
	ra, ok := new(big.Rat).SetString(a)
	if !ok {
		return "", fmt.Errorf("invalid decimal %q", a)
	}
	rb, ok := new(big.Rat).SetString(b)
	if !ok {
		return "", fmt.Errorf("invalid decimal %q", b)
	}
	return ratString(new(big.Rat).Sub(ra, rb)), nil
}

func decimalNeg(a string) (string, error) {
	ra, ok := new(big.Rat).SetString(a)
	if !ok {
		return "", fmt.Errorf("invalid decimal %q", a)
	}
	return ratString(ra.Neg(ra)), nil
}

func ratString(r *big.Rat) string {
	if r.IsInt() {
		return r.RatString()
	}
	s := strings.TrimRight(r.FloatString(15), "0")
	return strings.TrimSuffix(s, ".")
}
