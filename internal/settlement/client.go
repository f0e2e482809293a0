// Package settlement is a read-only view of the external settlement
// contract. The only question this service ever asks it is "has this
// round's attestation already been consumed" — a defensive pre-check, not
// an authority on game outcomes.
package settlement

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// Client speaks minimal JSON-RPC (eth_call) to the settlement layer.
type Client struct {
	url      string
	contract string
	hc       *http.Client

	selector [4]byte // claimed(uint256)
}

func New(url, contract string, timeout time.Duration) *Client {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("claimed(uint256)"))
	var sel [4]byte
	copy(sel[:], h.Sum(nil)[:4])

	return &Client{
		url:      url,
		contract: strings.ToLower(contract),
		hc:       &http.Client{Timeout: timeout},
		selector: sel,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Claimed reports whether the contract already marked roundID's attestation
// as consumed. A transport or RPC failure is returned as an error; the
// caller decides whether that is advisory or fatal.
func (c *Client) Claimed(ctx context.Context, roundID uint64) (bool, error) {
	data := make([]byte, 4+32)
	copy(data, c.selector[:])
	binary.BigEndian.PutUint64(data[4+24:], roundID)

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_call",
		Params: []any{
			map[string]string{
				"to":   c.contract,
				"data": "0x" + hex.EncodeToString(data),
			},
			"latest",
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return false, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("settlement rpc: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("settlement rpc: status %d", resp.StatusCode)
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("settlement rpc: decode: %w", err)
	}
	if out.Error != nil {
		return false, fmt.Errorf("settlement rpc: %d %s", out.Error.Code, out.Error.Message)
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(out.Result, "0x"))
	if err != nil {
		return false, fmt.Errorf("settlement rpc: bad result %q", out.Result)
	}
	for _, b := range raw {
		if b != 0 {
			return true, nil
		}
	}
	return false, nil
}
