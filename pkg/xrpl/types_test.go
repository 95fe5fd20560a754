package xrpl

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountUnmarshalNative(t *testing.T) {
	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`"1500000"`), &a))

	assert.Equal(t, NativeCurrency, a.Currency)
	assert.Empty(t, a.Issuer)
	assert.Equal(t, "1.5", a.Value)
	assert.True(t, a.IsNative())
}

func TestAmountUnmarshalIssued(t *testing.T) {
	var a Amount
	raw := `{"currency":"USD","issuer":"rIssuer","value":"10"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &a))

	assert.Equal(t, Amount{Currency: "USD", Issuer: "rIssuer", Value: "10"}, a)
	assert.False(t, a.IsNative())
}

func TestDropsToXRP(t *testing.T) {
	tests := []struct {
		drops string
		want  string
	}{
		{"0", "0"},
		{"1", "0.000001"},
		{"1000000", "1"},
		{"20000000", "20"},
		{"1500000", "1.5"},
		{"-2500000", "-2.5"},
		{"-500", "-0.0005"},
	}

	for _, tt := range tests {
		got, err := DropsToXRP(tt.drops)
		require.NoError(t, err, tt.drops)
		assert.Equal(t, tt.want, got, tt.drops)
	}

	_, err := DropsToXRP("not-a-number")
	assert.Error(t, err)
}

func TestAffectedNodeUnmarshalFlattensNodeType(t *testing.T) {
	raw := `{"ModifiedNode":{
		"LedgerEntryType":"Offer",
		"LedgerIndex":"DEADBEEF",
		"FinalFields":{"Account":"rMaker"},
		"PreviousFields":{"TakerGets":"1000000"}}}`

	var node AffectedNode
	require.NoError(t, json.Unmarshal([]byte(raw), &node))

	assert.Equal(t, "ModifiedNode", node.NodeType)
	assert.Equal(t, "Offer", node.LedgerEntryType)
	assert.Equal(t, "DEADBEEF", node.LedgerIndex)
	assert.Equal(t, "rMaker", node.FinalFields["Account"])
	assert.Equal(t, "1000000", node.PreviousFields["TakerGets"])

	// Round trip restores the wrapped wire shape.
	out, err := json.Marshal(node)
	require.NoError(t, err)
	var again AffectedNode
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, node.NodeType, again.NodeType)
	assert.Equal(t, node.LedgerEntryType, again.LedgerEntryType)
}

func TestTransactionKey(t *testing.T) {
	tx := &Transaction{LedgerIndex: 5000, TxIndex: 2}
	assert.Equal(t, "5000.2", tx.Key())
}

func TestResultCodePrefersMetadata(t *testing.T) {
	tx := &Transaction{
		Result: "tecPATH_DRY",
		Meta:   &TxMeta{TransactionResult: "tesSUCCESS"},
	}
	assert.Equal(t, "tesSUCCESS", tx.ResultCode())

	tx.Meta = nil
	assert.Equal(t, "tecPATH_DRY", tx.ResultCode())
}

func TestDecodeHex(t *testing.T) {
	assert.Equal(t, "client", DecodeHex("636C69656E74"))
	assert.Empty(t, DecodeHex("zz"))
}
