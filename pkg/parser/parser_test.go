package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qdigital/rippled-database-stargate/pkg/xrpl"
)

func successMeta(nodes ...xrpl.AffectedNode) *xrpl.TxMeta {
	return &xrpl.TxMeta{TransactionResult: "tesSUCCESS", AffectedNodes: nodes}
}

func paymentTx() *xrpl.Transaction {
	return &xrpl.Transaction{
		Account:         "rAlice",
		Destination:     "rBob",
		TransactionType: "Payment",
		Amount:          &xrpl.Amount{Currency: "USD", Issuer: "rIssuer", Value: "10"},
		Fee:             "12",
		Hash:            "F00D",
		LedgerIndex:     5000,
		TxIndex:         2,
		ExecutedTime:    1400000000,
		Meta:            successMeta(),
	}
}

func TestParseRejectsMissingMetadata(t *testing.T) {
	tx := paymentTx()
	tx.Meta = nil

	_, err := Parse(tx)
	assert.Error(t, err)
}

func TestParsePayment(t *testing.T) {
	parsed, err := Parse(paymentTx())
	require.NoError(t, err)

	assert.Equal(t, uint32(5000), parsed.LedgerIndex)
	assert.Equal(t, uint32(2), parsed.TxIndex)
	assert.Equal(t, "5000.2", parsed.Key())
	assert.Empty(t, parsed.Data.Exchanges)
	assert.Empty(t, parsed.Data.AccountsCreated)

	require.Len(t, parsed.Data.Payments, 1)
	p := parsed.Data.Payments[0]
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, "rIssuer", p.Issuer)
	assert.Equal(t, "10", p.Amount)
	assert.Equal(t, "rAlice", p.Source)
	assert.Equal(t, "rBob", p.Destination)
	assert.Equal(t, "USD|rIssuer", p.Key())
	assert.Equal(t, "0.000012", p.Fee)
	assert.Equal(t, int64(1400000000), p.Time)
}

func TestParsePaymentPrefersDeliveredAmount(t *testing.T) {
	tx := paymentTx()
	tx.Meta.DeliveredAmount = &xrpl.Amount{Currency: "USD", Issuer: "rIssuer", Value: "9.5"}

	parsed, err := Parse(tx)
	require.NoError(t, err)
	require.Len(t, parsed.Data.Payments, 1)
	assert.Equal(t, "9.5", parsed.Data.Payments[0].Amount)
}

func TestParseSelfPaymentIsNotAPayment(t *testing.T) {
	tx := paymentTx()
	tx.Destination = tx.Account

	parsed, err := Parse(tx)
	require.NoError(t, err)
	assert.Empty(t, parsed.Data.Payments)
}

func TestParseFailedTransactionHasEmptyCollections(t *testing.T) {
	tx := paymentTx()
	tx.Meta.TransactionResult = "tecUNFUNDED_PAYMENT"

	parsed, err := Parse(tx)
	require.NoError(t, err)

	// Collections are empty, never nil, so count checks stay well defined.
	assert.NotNil(t, parsed.Data.Payments)
	assert.NotNil(t, parsed.Data.Exchanges)
	assert.NotNil(t, parsed.Data.BalanceChanges)
	assert.NotNil(t, parsed.Data.AccountsCreated)
	assert.Empty(t, parsed.Data.Payments)
	assert.Empty(t, parsed.Data.Exchanges)
}

func offerNode(nodeType, owner string, prevPays, prevGets, finalPays, finalGets any) xrpl.AffectedNode {
	node := xrpl.AffectedNode{
		NodeType:        nodeType,
		LedgerEntryType: "Offer",
		PreviousFields:  map[string]any{},
		FinalFields:     map[string]any{"Account": owner},
	}
	if prevPays != nil {
		node.PreviousFields["TakerPays"] = prevPays
	}
	if prevGets != nil {
		node.PreviousFields["TakerGets"] = prevGets
	}
	if finalPays != nil {
		node.FinalFields["TakerPays"] = finalPays
	}
	if finalGets != nil {
		node.FinalFields["TakerGets"] = finalGets
	}
	return node
}

func issued(currency, issuer, value string) map[string]any {
	return map[string]any{"currency": currency, "issuer": issuer, "value": value}
}

func TestParseAutoBridgedExchanges(t *testing.T) {
	// Two legs through the native asset: USD -> XRP and XRP -> EUR.
	tx := &xrpl.Transaction{
		Account:         "rTaker",
		TransactionType: "OfferCreate",
		Hash:            "CAFE",
		LedgerIndex:     9000,
		TxIndex:         4,
		ExecutedTime:    1400000100,
		Meta: successMeta(
			offerNode("ModifiedNode", "rMakerOne",
				issued("USD", "rIssuer", "100"), "50000000",
				issued("USD", "rIssuer", "40"), "20000000"),
			offerNode("DeletedNode", "rMakerTwo",
				"30000000", issued("EUR", "rGateway", "25"),
				"0", issued("EUR", "rGateway", "0")),
		),
	}

	parsed, err := Parse(tx)
	require.NoError(t, err)
	require.Len(t, parsed.Data.Exchanges, 2)

	first := parsed.Data.Exchanges[0]
	assert.Equal(t, "XRP/USD.rIssuer", first.Pair())
	assert.Equal(t, "30", first.BaseAmount)
	assert.Equal(t, "60", first.CounterAmount)
	assert.Equal(t, "rTaker", first.Buyer)
	assert.Equal(t, "rMakerOne", first.Seller)

	second := parsed.Data.Exchanges[1]
	assert.Equal(t, "EUR.rGateway/XRP", second.Pair())
	assert.Equal(t, "25", second.BaseAmount)
	assert.Equal(t, "30", second.CounterAmount)
	assert.Equal(t, "rMakerTwo", second.Seller)
}

func TestParseOfferCancelYieldsNoExchange(t *testing.T) {
	node := xrpl.AffectedNode{
		NodeType:        "DeletedNode",
		LedgerEntryType: "Offer",
		PreviousFields:  map[string]any{},
		FinalFields: map[string]any{
			"Account":   "rMaker",
			"TakerPays": issued("USD", "rIssuer", "100"),
			"TakerGets": "50000000",
		},
	}
	tx := &xrpl.Transaction{
		Account:         "rMaker",
		TransactionType: "OfferCancel",
		LedgerIndex:     9001,
		TxIndex:         0,
		Meta:            successMeta(node),
	}

	parsed, err := Parse(tx)
	require.NoError(t, err)
	assert.Empty(t, parsed.Data.Exchanges)
}

func TestParseAccountsCreated(t *testing.T) {
	node := xrpl.AffectedNode{
		NodeType:        "CreatedNode",
		LedgerEntryType: "AccountRoot",
		NewFields: map[string]any{
			"Account": "rNewborn",
			"Balance": "20000000",
		},
	}
	tx := paymentTx()
	tx.Meta.AffectedNodes = []xrpl.AffectedNode{node}

	parsed, err := Parse(tx)
	require.NoError(t, err)

	require.Len(t, parsed.Data.AccountsCreated, 1)
	created := parsed.Data.AccountsCreated[0]
	assert.Equal(t, "rNewborn", created.Account)
	assert.Equal(t, "rAlice", created.Parent)
	assert.Equal(t, "20", created.Balance)

	// A funded account also shows up as a balance change.
	require.Len(t, parsed.Data.BalanceChanges, 1)
	assert.Equal(t, "rNewborn", parsed.Data.BalanceChanges[0].Account)
	assert.Equal(t, "20", parsed.Data.BalanceChanges[0].Change)
}

func TestParseBalanceChanges(t *testing.T) {
	accountNode := xrpl.AffectedNode{
		NodeType:        "ModifiedNode",
		LedgerEntryType: "AccountRoot",
		PreviousFields:  map[string]any{"Balance": "100000000"},
		FinalFields:     map[string]any{"Account": "rAlice", "Balance": "90000000"},
	}
	trustNode := xrpl.AffectedNode{
		NodeType:        "ModifiedNode",
		LedgerEntryType: "RippleState",
		PreviousFields:  map[string]any{"Balance": issued("USD", "", "100")},
		FinalFields: map[string]any{
			"Balance":   issued("USD", "", "110"),
			"LowLimit":  issued("USD", "rLow", "0"),
			"HighLimit": issued("USD", "rHigh", "0"),
		},
	}
	tx := paymentTx()
	tx.Meta.AffectedNodes = []xrpl.AffectedNode{accountNode, trustNode}

	parsed, err := Parse(tx)
	require.NoError(t, err)
	require.Len(t, parsed.Data.BalanceChanges, 3)

	native := parsed.Data.BalanceChanges[0]
	assert.Equal(t, "rAlice", native.Account)
	assert.Equal(t, xrpl.NativeCurrency, native.Currency)
	assert.Equal(t, "-10", native.Change)

	low := parsed.Data.BalanceChanges[1]
	assert.Equal(t, "rLow", low.Account)
	assert.Equal(t, "USD", low.Currency)
	assert.Equal(t, "10", low.Change)

	high := parsed.Data.BalanceChanges[2]
	assert.Equal(t, "rHigh", high.Account)
	assert.Equal(t, "-10", high.Change)
}

func TestFromClient(t *testing.T) {
	tx := paymentTx()
	assert.Empty(t, FromClient(tx))

	tx.Memos = []xrpl.MemoWrapper{
		{Memo: xrpl.Memo{MemoType: "74657874", MemoData: "68656C6C6F"}},          // text: hello
		{Memo: xrpl.Memo{MemoType: "636C69656E74", MemoData: "726D2D312E322E33"}}, // client: rm-1.2.3
	}
	assert.Equal(t, "rm-1.2.3", FromClient(tx))
}

func TestPairKeyDistinguishesLegOrder(t *testing.T) {
	forward := Exchange{
		Base:    Issue{Currency: "USD", Issuer: "bob"},
		Counter: Issue{Currency: "XRP"},
	}
	reverse := Exchange{
		Base:    Issue{Currency: "XRP"},
		Counter: Issue{Currency: "USD", Issuer: "bob"},
	}

	assert.Equal(t, "USD.bob/XRP", forward.Pair())
	assert.Equal(t, "XRP/USD.bob", reverse.Pair())
	assert.NotEqual(t, forward.Pair(), reverse.Pair())
}
