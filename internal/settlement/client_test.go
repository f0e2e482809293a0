package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const contract = "0x1122334455667788990011223344556677889900"

func rpcServer(t *testing.T, result string, rpcErr string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "eth_call", req.Method)
		require.Len(t, req.Params, 2)

		call, ok := req.Params[0].(map[string]any)
		require.True(t, ok)
		require.Equal(t, contract, call["to"])
		data, _ := call["data"].(string)
		// 4-byte selector + 32-byte uint256 argument
		require.Len(t, strings.TrimPrefix(data, "0x"), 2*(4+32))

		w.Header().Set("Content-Type", "application/json")
		if rpcErr != "" {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"` + rpcErr + `"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"` + result + `"}`))
	}))
}

func TestClaimed_False(t *testing.T) {
	srv := rpcServer(t, "0x"+strings.Repeat("0", 64), "")
	defer srv.Close()

	c := New(srv.URL, contract, time.Second)
	claimed, err := c.Claimed(context.Background(), 7)
	require.NoError(t, err)
	require.False(t, claimed)
}

func TestClaimed_True(t *testing.T) {
	srv := rpcServer(t, "0x"+strings.Repeat("0", 63)+"1", "")
	defer srv.Close()

	c := New(srv.URL, contract, time.Second)
	claimed, err := c.Claimed(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestClaimed_RPCError(t *testing.T) {
	srv := rpcServer(t, "", "execution reverted")
	defer srv.Close()

	c := New(srv.URL, contract, time.Second)
	_, err := c.Claimed(context.Background(), 7)
	require.Error(t, err)
	require.Contains(t, err.Error(), "execution reverted")
}

func TestClaimed_Unreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", contract, 200*time.Millisecond)
	_, err := c.Claimed(context.Background(), 7)
	require.Error(t, err)
}

func TestClaimed_EncodesRoundID(t *testing.T) {
	var gotData string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		call := req.Params[0].(map[string]any)
		gotData, _ = call["data"].(string)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x00"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, contract, time.Second)
	_, err := c.Claimed(context.Background(), 0x1234)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(gotData, "1234"), "round id must be big-endian in the last word: %s", gotData)
}
