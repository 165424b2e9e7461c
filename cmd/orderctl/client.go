package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	solana "github.com/gagliardetto/solana-go"

	"github.com/kirarisk/JupLimits/internal/dex/jupiter"
	dexsol "github.com/kirarisk/JupLimits/internal/dex/solana"
	"github.com/kirarisk/JupLimits/internal/orders"
)

// relaydClient calls the relayd HTTP API.
type relaydClient struct {
	base string
	http *http.Client
}

func newRelaydClient(base string) *relaydClient {
	return &relaydClient{base: strings.TrimSuffix(base, "/"), http: &http.Client{Timeout: 90 * time.Second}}
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type bundleReply struct {
	envelope
	BundleID         string   `json:"bundleId"`
	Signature        string   `json:"signature"`
	Signatures       []string `json:"signatures"`
	RemovalConfirmed *bool    `json:"removalConfirmed"`
}

type balanceReply struct {
	envelope
	Lamports uint64               `json:"lamports"`
	Token    *dexsol.TokenBalance `json:"token"`
}

func (c *relaydClient) createOrder(ctx context.Context, req jupiter.CreateOrderRequest) (*jupiter.CreateOrderResponse, error) {
	var out struct {
		envelope
		jupiter.CreateOrderResponse
	}
	if err := c.do(ctx, http.MethodPost, "/api/orders/create", req, &out, &out.envelope); err != nil {
		return nil, err
	}
	return &out.CreateOrderResponse, nil
}

func (c *relaydClient) cancelOrders(ctx context.Context, req jupiter.CancelOrdersRequest) ([]string, error) {
	var out struct {
		envelope
		Transactions []string `json:"transactions"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/orders/cancel", req, &out, &out.envelope); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

// OpenOrders makes the client an orders.Lister so cancellations can be watched from here.
func (c *relaydClient) OpenOrders(ctx context.Context, wallet string) ([]orders.Order, error) {
	var out struct {
		envelope
		Orders []orders.Order `json:"orders"`
	}
	path := "/api/orders?" + url.Values{"wallet": {wallet}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &out, &out.envelope); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (c *relaydClient) submitOrder(ctx context.Context, signedTx, orderID, makingAmount, inputMint string) (*bundleReply, error) {
	payload := map[string]any{
		"signedTransaction": signedTx,
		"orderId":           orderID,
		"makingAmount":      makingAmount,
		"inputMint":         inputMint,
	}
	var out bundleReply
	if err := c.do(ctx, http.MethodPost, "/api/bundles/order", payload, &out, &out.envelope); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *relaydClient) submitCancel(ctx context.Context, signedTxs, orderIDs []string, wallet string) (*bundleReply, error) {
	payload := map[string]any{
		"signedTransactions": signedTxs,
		"orderIds":           orderIDs,
		"wallet":             wallet,
	}
	var out bundleReply
	if err := c.do(ctx, http.MethodPost, "/api/bundles/cancel", payload, &out, &out.envelope); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *relaydClient) balance(ctx context.Context, wallet, mint string) (*balanceReply, error) {
	q := url.Values{"wallet": {wallet}}
	if mint != "" {
		q.Set("mint", mint)
	}
	var out balanceReply
	if err := c.do(ctx, http.MethodGet, "/api/wallet/balance?"+q.Encode(), nil, &out, &out.envelope); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *relaydClient) do(ctx context.Context, method, path string, payload, into any, env *envelope) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("%s %s: status %d: decode: %w", method, path, resp.StatusCode, err)
	}
	if !env.Success {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, env.Error)
	}
	return nil
}

// signBase64 adds the wallet's signature to an order-API transaction, keeping any other signatures.
func signBase64(encoded string, key solana.PrivateKey) (string, error) {
	tx, err := dexsol.DecodeUnsignedBase64(encoded)
	if err != nil {
		return "", err
	}
	pub := key.PublicKey()
	if _, err := tx.PartialSign(func(k solana.PublicKey) *solana.PrivateKey {
		if k.Equals(pub) {
			return &key
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("marshal tx: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
