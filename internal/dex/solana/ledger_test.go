package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type rpcReply struct {
	result any
	code   int
	msg    string
}

func fakeNode(t *testing.T, replies map[string]rpcReply) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}
		reply, ok := replies[req.Method]
		if !ok {
			t.Errorf("unexpected rpc method %s", req.Method)
			return
		}
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if reply.code != 0 {
			resp["error"] = map[string]any{"code": reply.code, "message": reply.msg}
		} else {
			resp["result"] = reply.result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestParseCommitment(t *testing.T) {
	cases := map[string]rpc.CommitmentType{
		"processed": rpc.CommitmentProcessed,
		"finalized": rpc.CommitmentFinalized,
		"confirmed": rpc.CommitmentConfirmed,
		"":          rpc.CommitmentConfirmed,
	}
	for in, want := range cases {
		if got := ParseCommitment(in); got != want {
			t.Fatalf("%q: expected %s, got %s", in, want, got)
		}
	}
}

func TestLatestBlockhash(t *testing.T) {
	hash := solana.HashFromBytes(make([]byte, 32))
	hash[0] = 7
	server := fakeNode(t, map[string]rpcReply{
		"getLatestBlockhash": {result: map[string]any{
			"context": map[string]any{"slot": 10},
			"value":   map[string]any{"blockhash": hash.String(), "lastValidBlockHeight": 200},
		}},
	})
	defer server.Close()

	ledger := NewLedger(server.URL, "finalized")
	got, err := ledger.LatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("LatestBlockhash returned error: %v", err)
	}
	if got != hash {
		t.Fatalf("expected %s, got %s", hash, got)
	}
}

func TestAccountExists(t *testing.T) {
	server := fakeNode(t, map[string]rpcReply{
		"getAccountInfo": {result: map[string]any{
			"context": map[string]any{"slot": 10},
			"value":   nil,
		}},
	})
	defer server.Close()

	ledger := NewLedger(server.URL, "confirmed")
	exists, err := ledger.AccountExists(context.Background(), solana.NewWallet().PublicKey())
	if err != nil {
		t.Fatalf("AccountExists returned error: %v", err)
	}
	if exists {
		t.Fatalf("expected missing account")
	}
}

func TestBalanceAndMissingTokenAccount(t *testing.T) {
	server := fakeNode(t, map[string]rpcReply{
		"getBalance":             {result: map[string]any{"context": map[string]any{"slot": 1}, "value": 1_500_000_000}},
		"getTokenAccountBalance": {code: -32602, msg: "Invalid param: could not find account"},
	})
	defer server.Close()

	ledger := NewLedger(server.URL, "confirmed")
	wallet := solana.NewWallet().PublicKey()
	lamports, err := ledger.Balance(context.Background(), wallet)
	if err != nil {
		t.Fatalf("Balance returned error: %v", err)
	}
	if lamports != 1_500_000_000 {
		t.Fatalf("expected 1.5 SOL in lamports, got %d", lamports)
	}

	tb, err := ledger.TokenBalance(context.Background(), wallet, NativeMint)
	if err != nil {
		t.Fatalf("TokenBalance returned error: %v", err)
	}
	if tb.Amount != "0" {
		t.Fatalf("expected zero balance for missing account, got %s", tb.Amount)
	}
}

func TestDecodeSignedBase64(t *testing.T) {
	payer := solana.NewWallet().PrivateKey
	ix, err := NativeTransfer(payer.PublicKey(), solana.NewWallet().PublicKey(), 42)
	if err != nil {
		t.Fatalf("NativeTransfer returned error: %v", err)
	}
	signed, err := BuildSigned(payer, solana.Hash{1}, ix)
	if err != nil {
		t.Fatalf("BuildSigned returned error: %v", err)
	}

	decoded, err := DecodeSignedBase64(signed.Base64())
	if err != nil {
		t.Fatalf("DecodeSignedBase64 returned error: %v", err)
	}
	if decoded.Signature() != signed.Signature() {
		t.Fatalf("signature mismatch")
	}

	for name, blob := range map[string]string{
		"empty":   "",
		"base64":  "%%%",
		"garbage": base64.StdEncoding.EncodeToString([]byte{1, 2, 3}),
	} {
		if _, err := DecodeSignedBase64(blob); err == nil || !DecodeErr.Has(err) {
			t.Fatalf("%s: expected decode error, got %v", name, err)
		}
	}
}

func TestDecodeSignedBase64RejectsUnsigned(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	ix, err := NativeTransfer(payer, solana.NewWallet().PublicKey(), 1)
	if err != nil {
		t.Fatalf("NativeTransfer returned error: %v", err)
	}
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{2}, solana.TransactionPayer(payer))
	if err != nil {
		t.Fatalf("NewTransaction returned error: %v", err)
	}
	tx.Signatures = []solana.Signature{{}}
	encoded, err := EncodeBase64(tx)
	if err != nil {
		t.Fatalf("EncodeBase64 returned error: %v", err)
	}
	if _, err := DecodeSignedBase64(encoded); err == nil || !DecodeErr.Has(err) {
		t.Fatalf("expected unsigned transaction to be rejected, got %v", err)
	}
	if _, err := DecodeUnsignedBase64(encoded); err != nil {
		t.Fatalf("DecodeUnsignedBase64 returned error: %v", err)
	}
}

func TestAssociatedAccountIsDeterministic(t *testing.T) {
	wallet := solana.NewWallet().PublicKey()
	a, err := AssociatedAccount(wallet, NativeMint)
	if err != nil {
		t.Fatalf("AssociatedAccount returned error: %v", err)
	}
	b, _ := AssociatedAccount(wallet, NativeMint)
	if !a.Equals(b) {
		t.Fatalf("expected deterministic derivation")
	}
}

func TestMemoMakesTransfersDistinct(t *testing.T) {
	signer := solana.NewWallet().PrivateKey
	to := solana.NewWallet().PublicKey()
	build := func(text string) *SignedTx {
		ix, err := NativeTransfer(signer.PublicKey(), to, 1000)
		if err != nil {
			t.Fatalf("transfer: %v", err)
		}
		memo, err := Memo(signer.PublicKey(), text)
		if err != nil {
			t.Fatalf("memo: %v", err)
		}
		tx, err := BuildSigned(signer, solana.Hash{7}, ix, memo)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		return tx
	}
	a, b := build("ref-a"), build("ref-b")
	if a.Signature() == b.Signature() {
		t.Fatalf("expected distinct signatures for distinct memos")
	}
	if build("ref-a").Signature() != a.Signature() {
		t.Fatalf("expected identical memos to sign identically")
	}
	if _, err := Memo(signer.PublicKey(), ""); err == nil {
		t.Fatalf("expected error for empty memo")
	}
}
