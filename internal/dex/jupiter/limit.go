// Package jupiter talks to Jupiter's limit-order API, which builds unsigned create/cancel transactions.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/errs"
	"golang.org/x/time/rate"

	"github.com/kirarisk/JupLimits/internal/orders"
)

// Error is the upstream-API error class; the message carries Jupiter's own text.
var Error = errs.Class("order api")

type Client struct {
	Base    string
	APIKey  string
	Http    *http.Client
	limiter *rate.Limiter
}

// CreateOrderRequest asks Jupiter for a transaction opening a limit order. Amounts are base-unit strings.
type CreateOrderRequest struct {
	Maker        string `json:"maker"`
	Payer        string `json:"payer,omitempty"`
	InputMint    string `json:"inputMint"`
	OutputMint   string `json:"outputMint"`
	MakingAmount string `json:"makingAmount"`
	TakingAmount string `json:"takingAmount"`
	ExpiredAt    int64  `json:"expiredAt,omitempty"`
}

// CreateOrderResponse holds the order account and its unsigned transaction.
type CreateOrderResponse struct {
	Order       string `json:"order"`
	Transaction string `json:"transaction"`
}

// CancelOrdersRequest asks for transactions closing the listed orders (all of maker's when empty).
type CancelOrdersRequest struct {
	Maker  string   `json:"maker"`
	Orders []string `json:"orders"`
}

// CancelOrdersResponse holds one unsigned transaction per batch of cancelled orders.
type CancelOrdersResponse struct {
	Transactions []string `json:"transactions"`
}

// NewClient builds a client; rps <= 0 disables pacing.
func NewClient(base, apiKey string, rps float64) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		Base:    strings.TrimSuffix(base, "/"),
		APIKey:  apiKey,
		Http:    &http.Client{Timeout: 8 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// CreateOrder returns the order id and the maker-unsigned transaction opening it.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	payer := req.Payer
	if payer == "" {
		payer = req.Maker
	}
	payload := map[string]any{
		"maker":      req.Maker,
		"payer":      payer,
		"inputMint":  req.InputMint,
		"outputMint": req.OutputMint,
		"params": map[string]any{
			"makingAmount": req.MakingAmount,
			"takingAmount": req.TakingAmount,
		},
		"computeUnitPrice": "auto",
	}
	if req.ExpiredAt > 0 {
		payload["params"].(map[string]any)["expiredAt"] = strconv.FormatInt(req.ExpiredAt, 10)
	}
	var out struct {
		Order string `json:"order"`
		Tx    string `json:"tx"`
	}
	if err := c.do(ctx, http.MethodPost, "/limit/v2/createOrder", payload, &out); err != nil {
		return nil, err
	}
	if out.Tx == "" {
		return nil, Error.New("createOrder returned no transaction")
	}
	return &CreateOrderResponse{Order: out.Order, Transaction: out.Tx}, nil
}

// CancelOrders returns the unsigned cancellation transactions for maker's orders.
func (c *Client) CancelOrders(ctx context.Context, req CancelOrdersRequest) (*CancelOrdersResponse, error) {
	payload := map[string]any{
		"maker":            req.Maker,
		"computeUnitPrice": "auto",
	}
	if len(req.Orders) > 0 {
		payload["orders"] = req.Orders
	}
	var out struct {
		Txs []string `json:"txs"`
	}
	if err := c.do(ctx, http.MethodPost, "/limit/v2/cancelOrders", payload, &out); err != nil {
		return nil, err
	}
	if len(out.Txs) == 0 {
		return nil, Error.New("cancelOrders returned no transactions")
	}
	return &CancelOrdersResponse{Transactions: out.Txs}, nil
}

// OpenOrders lists wallet's open orders.
func (c *Client) OpenOrders(ctx context.Context, wallet string) ([]orders.Order, error) {
	var out []openOrder
	path := "/limit/v2/openOrders?" + url.Values{"wallet": {wallet}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	list := make([]orders.Order, 0, len(out))
	for _, o := range out {
		list = append(list, o.toOrder())
	}
	return list, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, into any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return Error.Wrap(err)
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Error.Wrap(err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return Error.Wrap(err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	resp, err := c.Http.Do(req)
	if err != nil {
		return Error.Wrap(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Error.Wrap(err)
	}
	if resp.StatusCode != http.StatusOK {
		return Error.New("%s", upstreamMessage(resp.StatusCode, data))
	}
	if err := json.Unmarshal(data, into); err != nil {
		return Error.New("decode %s: %v", path, err)
	}
	return nil
}

func upstreamMessage(status int, body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		return fmt.Sprintf("status %d", status)
	}
	return fmt.Sprintf("status %d: %s", status, text)
}
