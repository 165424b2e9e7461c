package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirarisk/JupLimits/internal/bundle"
	"github.com/kirarisk/JupLimits/internal/config"
	"github.com/kirarisk/JupLimits/internal/dex/jupiter"
	dexsol "github.com/kirarisk/JupLimits/internal/dex/solana"
	"github.com/kirarisk/JupLimits/internal/notify"
	"github.com/kirarisk/JupLimits/internal/orders"
	"github.com/kirarisk/JupLimits/internal/relay"
)

type fakeBundler struct {
	order   bundle.OrderRequest
	cancel  bundle.CancelRequest
	receipt *bundle.Receipt
	err     error
}

func (f *fakeBundler) SubmitOrder(ctx context.Context, req bundle.OrderRequest) (*bundle.Receipt, error) {
	f.order = req
	return f.receipt, f.err
}

func (f *fakeBundler) SubmitCancellation(ctx context.Context, req bundle.CancelRequest) (*bundle.Receipt, error) {
	f.cancel = req
	return f.receipt, f.err
}

type fakeBook struct {
	created jupiter.CreateOrderRequest
	list    []orders.Order
	err     error
}

func (f *fakeBook) CreateOrder(ctx context.Context, req jupiter.CreateOrderRequest) (*jupiter.CreateOrderResponse, error) {
	f.created = req
	if f.err != nil {
		return nil, f.err
	}
	return &jupiter.CreateOrderResponse{Order: "order-1", Transaction: "dHg="}, nil
}

func (f *fakeBook) CancelOrders(ctx context.Context, req jupiter.CancelOrdersRequest) (*jupiter.CancelOrdersResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &jupiter.CancelOrdersResponse{Transactions: []string{"c1", "c2"}}, nil
}

func (f *fakeBook) OpenOrders(ctx context.Context, wallet string) ([]orders.Order, error) {
	return f.list, f.err
}

type fakeChain struct {
	lamports uint64
	sent     *dexsol.SignedTx
}

func (f *fakeChain) Balance(ctx context.Context, wallet solana.PublicKey) (uint64, error) {
	return f.lamports, nil
}

func (f *fakeChain) TokenBalance(ctx context.Context, wallet, mint solana.PublicKey) (*dexsol.TokenBalance, error) {
	return &dexsol.TokenBalance{Account: "ata", Amount: "42", Decimals: 6, UIAmount: "0.000042"}, nil
}

func (f *fakeChain) Send(ctx context.Context, tx *dexsol.SignedTx) (solana.Signature, error) {
	f.sent = tx
	return tx.Signature(), nil
}

type fakeWatcher struct{ outcome orders.Outcome }

func (f fakeWatcher) AwaitCancellation(ctx context.Context, wallet string, ids []string) (orders.Outcome, error) {
	return f.outcome, nil
}

type harness struct {
	url     string
	bundles *fakeBundler
	book    *fakeBook
	chain   *fakeChain
	board   *notify.Ledger
	hub     *Hub
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		bundles: &fakeBundler{receipt: &bundle.Receipt{BundleID: "abc123def456", Signature: "sig-1", Signatures: []string{"sig-1"}}},
		book:    &fakeBook{},
		chain:   &fakeChain{lamports: 7},
		board:   notify.NewLedger(8),
		hub:     NewHub(zerolog.Nop()),
	}
	srv := New(":0", Deps{
		Bundles:  h.bundles,
		Orders:   h.book,
		Chain:    h.chain,
		Watcher:  fakeWatcher{outcome: orders.Outcome{Confirmed: true, Attempts: 2}},
		Statuses: h.board,
		Hub:      h.hub,
	}, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		h.hub.Close()
		ts.Close()
	})
	h.url = ts.URL
	return h
}

func call(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func signedTx(t *testing.T) *dexsol.SignedTx {
	t.Helper()
	key := solana.NewWallet().PrivateKey
	ix, err := dexsol.NativeTransfer(key.PublicKey(), solana.NewWallet().PublicKey(), 5)
	require.NoError(t, err)
	tx, err := dexsol.BuildSigned(key, solana.Hash{1}, ix)
	require.NoError(t, err)
	return tx
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	status, body := call(t, http.MethodGet, h.url+"/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/api/bundles/order", "/api/bundles/cancel", "/api/orders/create"} {
		status, body := call(t, http.MethodGet, h.url+path, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, status, path)
		assert.Equal(t, map[string]any{"success": false, "error": "method not allowed"}, body, path)
	}
}

func TestOrderBundle(t *testing.T) {
	h := newHarness(t)
	status, body := call(t, http.MethodPost, h.url+"/api/bundles/order", map[string]any{
		"signedTransaction": "dHg=",
		"orderId":           "ord-1",
		"makingAmount":      "123456789",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "abc123def456", body["bundleId"])
	assert.Equal(t, "sig-1", body["signature"])
	assert.Equal(t, "ord-1", h.bundles.order.OrderID)
	require.True(t, h.bundles.order.MakingAmount.Valid)
	assert.Equal(t, "123456789", h.bundles.order.MakingAmount.Decimal.String())
}

func TestOrderBundleRequiresTransaction(t *testing.T) {
	h := newHarness(t)
	status, body := call(t, http.MethodPost, h.url+"/api/bundles/order", map[string]any{"orderId": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{config.MissingErr.New("fee.collector"), http.StatusInternalServerError, ""},
		{dexsol.CredentialErr.New("bad key"), http.StatusInternalServerError, ""},
		{dexsol.DecodeErr.New("base64"), http.StatusBadRequest, ""},
		{bundle.ValidationErr.New("too big"), http.StatusBadRequest, ""},
		{jupiter.Error.New("down"), http.StatusBadGateway, ""},
		{relay.RejectedErr.Wrap(&relay.RPCError{Code: -32602, Message: "bundle contains an already processed transaction"}),
			http.StatusBadGateway, "bundle contains an already processed transaction"},
	}
	for _, c := range cases {
		h := newHarness(t)
		h.bundles.err = c.err
		status, body := call(t, http.MethodPost, h.url+"/api/bundles/order", map[string]any{"signedTransaction": "dHg="})
		assert.Equal(t, c.status, status, c.err.Error())
		assert.Equal(t, false, body["success"])
		if c.message != "" {
			assert.Equal(t, c.message, body["error"])
		}
	}
}

func TestCancelBundleAwaitsRemoval(t *testing.T) {
	h := newHarness(t)
	status, body := call(t, http.MethodPost, h.url+"/api/bundles/cancel", map[string]any{
		"signedTransactions": []string{"a", "b"},
		"orderIds":           []string{"o1"},
		"wallet":             "W",
		"awaitRemoval":       true,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["removalConfirmed"])
	assert.Equal(t, []string{"a", "b"}, h.bundles.cancel.SignedTransactions)

	status, _ = call(t, http.MethodPost, h.url+"/api/bundles/cancel", map[string]any{
		"signedTransactions": []string{"a"},
		"awaitRemoval":       true,
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCreateOrderValidatesAndProxies(t *testing.T) {
	h := newHarness(t)
	status, body := call(t, http.MethodPost, h.url+"/api/orders/create", map[string]any{"maker": "M"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "inputMint")

	status, body = call(t, http.MethodPost, h.url+"/api/orders/create", map[string]any{
		"maker": "M", "inputMint": "I", "outputMint": "O", "makingAmount": "10", "takingAmount": "20",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "order-1", body["order"])
	assert.Equal(t, "dHg=", body["transaction"])
	assert.Equal(t, "10", h.book.created.MakingAmount)
}

func TestCancelOrdersProxy(t *testing.T) {
	h := newHarness(t)
	status, body := call(t, http.MethodPost, h.url+"/api/orders/cancel", map[string]any{"maker": "M", "orders": []string{"o1"}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"c1", "c2"}, body["transactions"])

	h.book.err = jupiter.Error.New("order not found")
	status, _ = call(t, http.MethodPost, h.url+"/api/orders/cancel", map[string]any{"maker": "M"})
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestListOrders(t *testing.T) {
	h := newHarness(t)
	wallet := solana.NewWallet().PublicKey().String()
	h.book.list = []orders.Order{{ID: "o1", Maker: wallet, MakingAmount: 5}}

	status, body := call(t, http.MethodGet, h.url+"/api/orders?wallet="+wallet, nil)
	require.Equal(t, http.StatusOK, status)
	list := body["orders"].([]any)
	require.Len(t, list, 1)

	status, _ = call(t, http.MethodGet, h.url+"/api/orders?wallet=not-a-key", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWalletBalance(t *testing.T) {
	h := newHarness(t)
	wallet := solana.NewWallet().PublicKey().String()
	mint := solana.NewWallet().PublicKey().String()

	status, body := call(t, http.MethodGet, h.url+"/api/wallet/balance?wallet="+wallet+"&mint="+mint, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(7), body["lamports"])
	token := body["token"].(map[string]any)
	assert.Equal(t, "42", token["amount"])
}

func TestSendTransaction(t *testing.T) {
	h := newHarness(t)
	tx := signedTx(t)
	status, body := call(t, http.MethodPost, h.url+"/api/transactions/send", map[string]any{"signedTransaction": tx.Base64()})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, tx.Signature().String(), body["signature"])

	status, _ = call(t, http.MethodPost, h.url+"/api/transactions/send", map[string]any{"signedTransaction": "###"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestBundleStatus(t *testing.T) {
	h := newHarness(t)
	h.board.Notify(notify.Event{BundleID: "abc123def456", Status: notify.Landed, Slot: 9})

	status, body := call(t, http.MethodGet, h.url+"/api/bundles/abc123def456", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "landed", body["bundle"].(map[string]any)["status"])

	status, _ = call(t, http.MethodGet, h.url+"/api/bundles/ffffffffffff", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = call(t, http.MethodGet, h.url+"/api/bundles", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["bundles"], 1)
}

func TestRequestIDHeader(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.url + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestHubStreamsEvents(t *testing.T) {
	h := newHarness(t)
	wsURL := "ws" + strings.TrimPrefix(h.url, "http") + "/ws/bundles?bundle=abc123def456"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	h.hub.Notify(notify.Event{BundleID: "other", Status: notify.Pending})
	h.hub.Notify(notify.Event{BundleID: "abc123def456", Status: notify.Landed})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got notify.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "abc123def456", got.BundleID)
	assert.Equal(t, notify.Landed, got.Status)
}

func TestHubChecksOrigin(t *testing.T) {
	hub := NewHub(zerolog.Nop(), "https://app.example.org")
	ts := httptest.NewServer(hub)
	defer func() {
		hub.Close()
		ts.Close()
	}()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	for _, origin := range []string{"https://app.example.org", ts.URL} {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {origin}})
		require.NoError(t, err, origin)
		conn.Close()
	}
}
