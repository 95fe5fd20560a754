// Package history fetches validated ledgers from a rippled websocket
// endpoint for backfill replay.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Qdigital/rippled-database-stargate/pkg/xrpl"
)

const defaultCallTimeout = 30 * time.Second

// Client is a rippled websocket client. Calls are serialized over one
// connection; the backfill driver is sequential, so one in-flight request
// at a time is all it needs.
type Client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	nextID int64
}

// Dial connects to a rippled websocket endpoint, e.g. wss://s2.ripple.com:443.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rippled at %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

// Close shuts the connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

type rippledResponse struct {
	ID     int64           `json:"id"`
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Result json.RawMessage `json:"result"`
}

// call performs one request/response exchange.
func (c *Client) call(ctx context.Context, req map[string]any, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	req["id"] = id

	deadline := time.Now().Add(defaultCallTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("failed to send %v command: %w", req["command"], err)
	}

	for {
		var resp rippledResponse
		if err := c.conn.ReadJSON(&resp); err != nil {
			return fmt.Errorf("failed to read %v response: %w", req["command"], err)
		}
		if resp.ID != id {
			// Stale response from an abandoned call.
			continue
		}
		if resp.Status != "success" {
			return fmt.Errorf("rippled %v request failed: %s", req["command"], resp.Error)
		}
		return json.Unmarshal(resp.Result, result)
	}
}

type ledgerResult struct {
	Ledger struct {
		LedgerIndex  string            `json:"ledger_index"`
		LedgerHash   string            `json:"ledger_hash"`
		CloseTime    int64             `json:"close_time"`
		Transactions []json.RawMessage `json:"transactions"`
	} `json:"ledger"`
	Validated bool `json:"validated"`
}

// Ledger fetches one validated ledger with its transactions expanded, and
// normalizes each transaction: metadata result, composite index and
// executed time attached the way the live feed delivers them.
func (c *Client) Ledger(ctx context.Context, index uint32) (*xrpl.Ledger, error) {
	var result ledgerResult
	err := c.call(ctx, map[string]any{
		"command":      "ledger",
		"ledger_index": index,
		"transactions": true,
		"expand":       true,
	}, &result)
	if err != nil {
		return nil, err
	}

	closeTime := result.Ledger.CloseTime + xrpl.RippleEpochOffset
	ledger := &xrpl.Ledger{
		Index:     index,
		Hash:      result.Ledger.LedgerHash,
		CloseTime: closeTime,
	}

	for _, raw := range result.Ledger.Transactions {
		var tx xrpl.Transaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, fmt.Errorf("failed to decode transaction in ledger %d: %w", index, err)
		}
		tx.LedgerIndex = index
		if tx.Meta != nil {
			tx.TxIndex = tx.Meta.TransactionIndex
			tx.Result = tx.Meta.TransactionResult
		}
		tx.ExecutedTime = closeTime
		ledger.Transactions = append(ledger.Transactions, &tx)
	}
	return ledger, nil
}

// ValidatedIndex returns the index of the most recently validated ledger.
func (c *Client) ValidatedIndex(ctx context.Context) (uint32, error) {
	var result ledgerResult
	err := c.call(ctx, map[string]any{
		"command":      "ledger",
		"ledger_index": "validated",
	}, &result)
	if err != nil {
		return 0, err
	}

	index, err := strconv.ParseUint(result.Ledger.LedgerIndex, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("unexpected validated ledger index %q: %w", result.Ledger.LedgerIndex, err)
	}
	return uint32(index), nil
}
