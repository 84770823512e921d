package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brojonat/chaintrail/service/ledger"
	"github.com/brojonat/chaintrail/service/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	txA = strings.Repeat("a", 64)
	txB = strings.Repeat("b", 64)
)

const esploraTxJSON = `{
  "txid": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
  "version": 1,
  "locktime": 0,
  "vin": [
    {
      "txid": "0000000000000000000000000000000000000000000000000000000000000000",
      "vout": 4294967295,
      "prevout": null,
      "scriptsig": "04ffff001d0104",
      "scriptsig_asm": "OP_PUSHBYTES_4 ffff001d OP_PUSHBYTES_1 04",
      "is_coinbase": true,
      "sequence": 4294967295
    }
  ],
  "vout": [
    {"scriptpubkey": "0014aa", "scriptpubkey_type": "v0_p2wpkh", "scriptpubkey_address": "bc1qx", "value": 500000},
    {"scriptpubkey": "0014bb", "scriptpubkey_type": "v0_p2wpkh", "scriptpubkey_address": "bc1qy", "value": 499000}
  ],
  "size": 204,
  "weight": 816,
  "fee": 1000,
  "status": {"confirmed": true, "block_height": 100, "block_hash": "00ab", "block_time": 1231006505}
}`

func newTestClient(serverURL string) *Client {
	return NewClient(serverURL, nil, nil, nil, nil)
}

func TestGetTransaction_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/tx/"+txA, r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(esploraTxJSON))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	tx, err := client.GetTransaction(context.Background(), txA)
	require.NoError(t, err)
	require.NotNil(t, tx)

	assert.Equal(t, txA, tx.TxID)
	assert.True(t, tx.Status.Confirmed)
	assert.Equal(t, int64(1231006505), tx.Status.BlockTime)
	require.Len(t, tx.Inputs, 1)
	assert.True(t, tx.Inputs[0].IsCoinbase())
	require.Len(t, tx.Outputs, 2)
	assert.Equal(t, int64(500000), tx.Outputs[0].Value)
	assert.Equal(t, "bc1qx", tx.Outputs[0].Address)
	assert.Equal(t, int64(499000), tx.Outputs[1].Value)
	assert.JSONEq(t, esploraTxJSON, string(tx.Raw), "the full record is kept")
}

func TestGetTransaction_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Transaction not found"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	tx, err := client.GetTransaction(context.Background(), txA)
	require.Error(t, err)
	assert.Nil(t, tx)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.Contains(t, err.Error(), "Transaction not found")

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, CodeTxStatus, fetchErr.Code)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
}

func TestGetTransaction_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetTransaction(context.Background(), txA)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ledger.ErrNotFound)
	assert.Contains(t, err.Error(), "rate limited")

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, CodeTxStatus, fetchErr.Code)
	assert.Equal(t, http.StatusTooManyRequests, fetchErr.StatusCode)
}

func TestGetTransaction_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(url)
	_, err := client.GetTransaction(context.Background(), txA)
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, CodeTxTransport, fetchErr.Code)
	assert.Zero(t, fetchErr.StatusCode)
}

func TestGetTransaction_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetTransaction(context.Background(), txA)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, CodeTxTransport, fetchErr.Code)
}

func TestGetOutspends(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tx/"+txA+"/outspends", r.URL.Path)
		w.Write([]byte(`[
			{"spent": true, "txid": "` + txB + `", "vin": 3, "status": {"confirmed": true, "block_height": 120}},
			{"spent": false},
			null
		]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	outspends, err := client.GetOutspends(context.Background(), txA)
	require.NoError(t, err)
	require.Len(t, outspends, 3)

	assert.True(t, outspends[0].Spent)
	assert.Equal(t, txB, outspends[0].TxID)
	assert.Equal(t, uint32(3), outspends[0].Vin)
	assert.False(t, outspends[1].Spent)
	assert.Nil(t, outspends[2])
}

func TestGetAddressSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/address/bc1qtest", r.URL.Path)
		w.Write([]byte(`{
			"address": "bc1qtest",
			"chain_stats": {"funded_txo_count": 2, "funded_txo_sum": 1500, "spent_txo_count": 1, "spent_txo_sum": 400, "tx_count": 3},
			"mempool_stats": {"funded_txo_count": 0, "funded_txo_sum": 0, "spent_txo_count": 0, "spent_txo_sum": 0, "tx_count": 0}
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	summary, err := client.GetAddressSummary(context.Background(), "bc1qtest")
	require.NoError(t, err)
	assert.Equal(t, "bc1qtest", summary.Address)
	assert.Equal(t, int64(1100), summary.Balance())
	assert.Equal(t, int64(3), summary.ChainStats.TxCount)
}

func TestGetAddressSummary_InvalidAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Invalid Bitcoin address"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetAddressSummary(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, CodeAddressStatus, fetchErr.Code)
}

func TestGetAddressTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/address/bc1qtest/txs", r.URL.Path)
		w.Write([]byte("[" + esploraTxJSON + "]"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	txs, err := client.GetAddressTransactions(context.Background(), "bc1qtest")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, txA, txs[0].TxID)
}

func TestClientRecordsMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(esploraTxJSON))
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	client := NewClient(server.URL+"/", nil, NewPacer(0, nil), metrics.NewMetrics(reg), nil)

	_, err := client.GetTransaction(context.Background(), txA)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "ledger_calls_total")
	assert.Contains(t, names, "ledger_pacing_wait_seconds")
}

func TestGetTipHeight(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/blocks/tip/height", r.URL.Path)
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("867530"))
	}))
	defer server.Close()

	height, err := newTestClient(server.URL).GetTipHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(867530), height)
}

func TestGetTipHeight_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetTipHeight(context.Background())
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, CodeTipStatus, fe.Code)
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	assert.Contains(t, err.Error(), "upstream unavailable")
}
