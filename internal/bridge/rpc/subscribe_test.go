package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bridgeindexer/internal/logger"
)

type jsonrpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode is a minimal JSON-RPC-over-HTTP test double for the handful
// of methods PollLogs/Dial exercise, run purely on loopback — no real
// node or outbound network call is ever made.
type fakeNode struct {
	blockNumber atomic.Uint64
	logsByCall  [][]map[string]any
	callCount   atomic.Int32
}

func (f *fakeNode) handler(w http.ResponseWriter, r *http.Request) {
	var req jsonrpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var result any
	switch req.Method {
	case "eth_chainId":
		result = "0x1"
	case "eth_blockNumber":
		result = fmt.Sprintf("0x%x", f.blockNumber.Load())
	case "eth_getLogs":
		idx := int(f.callCount.Add(1)) - 1
		if idx < len(f.logsByCall) {
			result = f.logsByCall[idx]
		} else {
			result = []map[string]any{}
		}
	default:
		result = nil
	}

	resp := map[string]any{
		"jsonrpc": "2.0",
		"id":      req.ID,
		"result":  result,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func testRPCLogger(t *testing.T) logger.Logger {
	log, err := logger.NewLogger()
	require.NoError(t, err)
	return log
}

const fakeTxHash = "0xdead000000000000000000000000000000000000000000000000000000000000"

func TestPollLogs_DeliversLogsFromNewBlockRange(t *testing.T) {
	node := &fakeNode{
		logsByCall: [][]map[string]any{
			{
				{
					"address":          "0x1111111111111111111111111111111111111111",
					"topics":           []string{"0xaa00000000000000000000000000000000000000000000000000000000000000"},
					"data":             "0x",
					"blockNumber":      "0x65",
					"transactionHash":  fakeTxHash,
					"transactionIndex": "0x0",
					"blockHash":        "0xbeef000000000000000000000000000000000000000000000000000000000000",
					"logIndex":         "0x0",
				},
			},
		},
	}
	node.blockNumber.Store(100)

	server := httptest.NewServer(http.HandlerFunc(node.handler))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
	defer cancel()

	client, err := Dial(ctx, "ethereum", server.URL, false, testRPCLogger(t))
	require.NoError(t, err)
	defer client.Close()

	logs, errs := client.PollLogs(ctx, "0x1111111111111111111111111111111111111111", nil)

	node.blockNumber.Store(101)

	select {
	case l := <-logs:
		require.Equal(t, fakeTxHash, l.TxHash)
	case err := <-errs:
		t.Fatalf("unexpected poll error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for polled log")
	}
}
