// Package aptos is the REST client for the remote ledger fullnode. It covers
// the narrow contract the settlement pipeline depends on: account sequence
// state, canonical submission encoding, signed submission, and confirmation
// lookup by hash.
package aptos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

// maxErrorBodyLen bounds how much of an error response body is captured for
// diagnostics.
const maxErrorBodyLen = 2048

// Client talks to a fullnode REST endpoint, e.g.
// "https://fullnode.testnet.aptoslabs.com/v1".
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a fullnode client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// AccountSequence fetches the payer's current sequence counter. The fullnode
// returns it as a decimal string.
func (c *Client) AccountSequence(ctx context.Context, address string) (uint64, error) {
	body, err := c.get(ctx, "/accounts/"+address)
	if err != nil {
		return 0, fmt.Errorf("aptos: account sequence for %s: %w", address, err)
	}

	var acct accountResponse
	if err := json.Unmarshal(body, &acct); err != nil {
		return 0, fmt.Errorf("aptos: decode account response: %w", err)
	}

	seq, err := strconv.ParseUint(acct.SequenceNumber, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("aptos: invalid sequence number %q: %w", acct.SequenceNumber, err)
	}
	return seq, nil
}

// EncodeSubmission asks the fullnode for the canonical signable encoding of
// the payload. The response is a JSON hex string; it is treated as opaque
// bytes after decoding.
func (c *Client) EncodeSubmission(ctx context.Context, sub Submission) ([]byte, error) {
	respBody, err := c.post(ctx, "/transactions/encode_submission", sub)
	if err != nil {
		return nil, fmt.Errorf("aptos: encode submission: %w", err)
	}

	var encoded string
	if err := json.Unmarshal(respBody, &encoded); err != nil {
		return nil, fmt.Errorf("aptos: decode encode_submission response: %w", err)
	}

	signingBytes, err := hexutil.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("aptos: signable bytes are not valid hex: %w", err)
	}
	return signingBytes, nil
}

// Submit posts a signed submission. A 200/202 yields the remote reference
// hash; any other status is a domain.SubmissionError carrying the response
// body.
func (c *Client) Submit(ctx context.Context, sub Submission) (string, error) {
	data, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("aptos: marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("aptos: build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("aptos: submit transaction: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", &domain.SubmissionError{
			Status: resp.StatusCode,
			Body:   string(respBody),
		}
	}

	var result submitResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("aptos: decode submit response: %w", err)
	}
	if result.Hash == "" {
		return "", fmt.Errorf("aptos: submit response missing hash")
	}
	return result.Hash, nil
}

// TransactionByHash looks up the terminal state of a submitted transaction.
// A non-200 response means the fullnode has not committed it yet.
func (c *Client) TransactionByHash(ctx context.Context, hash string) (TxState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transactions/by_hash/"+hash, nil)
	if err != nil {
		return TxPending, fmt.Errorf("aptos: build status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TxPending, fmt.Errorf("aptos: transaction by hash: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return TxPending, nil
	}

	var tx txByHashResponse
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return TxPending, fmt.Errorf("aptos: decode transaction response: %w", err)
	}

	if tx.Success {
		return TxSuccess, nil
	}
	return TxFailed, nil
}

// AccountBalance reads the coin store balance for an address in base units.
func (c *Client) AccountBalance(ctx context.Context, address, coinType string) (uint64, error) {
	path := fmt.Sprintf("/accounts/%s/resource/0x1::coin::CoinStore<%s>", address, coinType)
	body, err := c.get(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("aptos: account balance for %s: %w", address, err)
	}

	var store coinStoreResponse
	if err := json.Unmarshal(body, &store); err != nil {
		return 0, fmt.Errorf("aptos: decode coin store response: %w", err)
	}

	value, err := strconv.ParseUint(store.Data.Coin.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("aptos: invalid coin value %q: %w", store.Data.Coin.Value, err)
	}
	return value, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, maxErrorBodyLen))
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, maxErrorBodyLen))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
