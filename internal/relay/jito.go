// Package relay submits transaction bundles to a Jito block engine over JSON-RPC.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"

	"github.com/kirarisk/JupLimits/internal/metrics"
)

var (
	// Error covers transport and protocol failures talking to the block engine.
	Error = errs.Class("relay")
	// RejectedErr marks a bundle the block engine declined; the cause is an *RPCError.
	RejectedErr = errs.Class("bundle rejected")
)

const bundlesPath = "/api/v1/bundles"

// RPCError is the block engine's JSON-RPC error object. Message is shown to callers verbatim.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// InflightStatus is the block engine's view of a recently submitted bundle.
type InflightStatus struct {
	BundleID   string `json:"bundle_id"`
	Status     string `json:"status"` // Invalid|Pending|Failed|Landed
	LandedSlot uint64 `json:"landed_slot"`
}

// BundleStatus is the on-chain record of a landed bundle.
type BundleStatus struct {
	BundleID           string          `json:"bundle_id"`
	Transactions       []string        `json:"transactions"`
	Slot               uint64          `json:"slot"`
	ConfirmationStatus string          `json:"confirmation_status"`
	Err                json.RawMessage `json:"err"`
}

type Client struct {
	URL      string
	AuthUUID string
	Http     *http.Client
}

func NewClient(blockEngineURL, authUUID string) *Client {
	return &Client{
		URL:      strings.TrimSuffix(blockEngineURL, "/") + bundlesPath,
		AuthUUID: authUUID,
		Http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// TipAccounts lists the accounts the block engine accepts tips on.
func (c *Client) TipAccounts(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.call(ctx, "getTipAccounts", []any{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendBundle submits base64 wire transactions as one bundle and returns the block engine's bundle id.
func (c *Client) SendBundle(ctx context.Context, txs []string) (string, error) {
	var id string
	err := c.call(ctx, "sendBundle", []any{txs, map[string]string{"encoding": "base64"}}, &id)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", Error.New("sendBundle returned an empty bundle id")
	}
	return id, nil
}

// InflightStatuses reports bundles submitted in roughly the last five minutes.
func (c *Client) InflightStatuses(ctx context.Context, ids []string) ([]InflightStatus, error) {
	var out struct {
		Value []*InflightStatus `json:"value"`
	}
	if err := c.call(ctx, "getInflightBundleStatuses", []any{ids}, &out); err != nil {
		return nil, err
	}
	return compact(out.Value), nil
}

// BundleStatuses reports landed bundles; unknown ids are omitted.
func (c *Client) BundleStatuses(ctx context.Context, ids []string) ([]BundleStatus, error) {
	var out struct {
		Value []*BundleStatus `json:"value"`
	}
	if err := c.call(ctx, "getBundleStatuses", []any{ids}, &out); err != nil {
		return nil, err
	}
	return compact(out.Value), nil
}

func compact[T any](in []*T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, into any) error {
	defer metrics.ObserveRelay(method, time.Now())

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: uuid.NewString(), Method: method, Params: params})
	if err != nil {
		return Error.Wrap(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return Error.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.AuthUUID != "" {
		req.Header.Set("x-jito-auth", c.AuthUUID)
	}

	resp, err := c.Http.Do(req)
	if err != nil {
		return Error.Wrap(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Error.Wrap(err)
	}
	var out rpcResponse
	if err := json.Unmarshal(data, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return Error.New("%s: status %d", method, resp.StatusCode)
		}
		return Error.New("%s: decode response: %v", method, err)
	}
	if out.Error != nil {
		if method == "sendBundle" {
			return RejectedErr.Wrap(out.Error)
		}
		return Error.Wrap(out.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return Error.New("%s: status %d", method, resp.StatusCode)
	}
	if err := json.Unmarshal(out.Result, into); err != nil {
		return Error.New("%s: decode result: %v", method, err)
	}
	return nil
}

// Message extracts the relay's own wording from err when it carries one.
func Message(err error) string {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Message
	}
	return fmt.Sprint(err)
}
