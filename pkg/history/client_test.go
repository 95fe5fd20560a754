package history

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRippled answers ledger commands with canned responses.
func fakeRippled(t *testing.T, handle func(req map[string]any) map[string]any) string {
	t.Helper()
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var req map[string]any
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := handle(req)
			resp["id"] = req["id"]
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func ledgerResponse(index string, closeTime int64, txs ...map[string]any) map[string]any {
	return map[string]any{
		"status": "success",
		"result": map[string]any{
			"validated": true,
			"ledger": map[string]any{
				"ledger_index": index,
				"ledger_hash":  "LEDGERHASH",
				"close_time":   closeTime,
				"transactions": txs,
			},
		},
	}
}

func TestClientFetchesAndNormalizesLedger(t *testing.T) {
	url := fakeRippled(t, func(req map[string]any) map[string]any {
		require.Equal(t, "ledger", req["command"])
		assert.Equal(t, true, req["transactions"])
		assert.Equal(t, true, req["expand"])

		return ledgerResponse("5000", 470000000, map[string]any{
			"Account":         "rAlice",
			"Destination":     "rBob",
			"TransactionType": "Payment",
			"Amount":          map[string]any{"currency": "USD", "issuer": "rIssuer", "value": "10"},
			"hash":            "F00D",
			"metaData": map[string]any{
				"TransactionIndex":  2,
				"TransactionResult": "tesSUCCESS",
				"AffectedNodes":     []any{},
			},
		})
	})

	client, err := Dial(context.Background(), url)
	require.NoError(t, err)
	defer client.Close()

	ledger, err := client.Ledger(context.Background(), 5000)
	require.NoError(t, err)

	assert.Equal(t, uint32(5000), ledger.Index)
	assert.Equal(t, int64(470000000+946684800), ledger.CloseTime)
	require.Len(t, ledger.Transactions, 1)

	tx := ledger.Transactions[0]
	assert.Equal(t, uint32(5000), tx.LedgerIndex)
	assert.Equal(t, uint32(2), tx.TxIndex)
	assert.Equal(t, "5000.2", tx.Key())
	assert.Equal(t, "tesSUCCESS", tx.Result)
	assert.Equal(t, ledger.CloseTime, tx.ExecutedTime)
	assert.Equal(t, "10", tx.Amount.Value)
}

func TestClientValidatedIndex(t *testing.T) {
	url := fakeRippled(t, func(req map[string]any) map[string]any {
		require.Equal(t, "ledger", req["command"])
		assert.Equal(t, "validated", req["ledger_index"])
		return ledgerResponse("93000000", 470000500)
	})

	client, err := Dial(context.Background(), url)
	require.NoError(t, err)
	defer client.Close()

	index, err := client.ValidatedIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(93000000), index)
}

func TestClientSurfacesRippledErrors(t *testing.T) {
	url := fakeRippled(t, func(req map[string]any) map[string]any {
		return map[string]any{"status": "error", "error": "lgrNotFound"}
	})

	client, err := Dial(context.Background(), url)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Ledger(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lgrNotFound")
}
