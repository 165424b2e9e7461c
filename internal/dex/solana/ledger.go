package solana

import (
	"context"
	"errors"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/zeebo/errs"
)

// LedgerErr wraps failures talking to the Solana RPC node.
var LedgerErr = errs.Class("ledger rpc")

// RPC nodes answer getTokenAccountBalance for an unopened account with invalid params.
const invalidParamsCode = -32602

// Ledger is the slice of Solana RPC the backend needs.
type Ledger struct {
	RPC    *rpc.Client
	Commit rpc.CommitmentType
}

// TokenBalance is an SPL balance in base units plus the mint's decimals.
type TokenBalance struct {
	Account  string `json:"account"`
	Amount   string `json:"amount"`
	Decimals uint8  `json:"decimals"`
	UIAmount string `json:"uiAmount"`
}

// ParseCommitment maps config strings onto RPC commitments, defaulting to confirmed.
func ParseCommitment(commit string) rpc.CommitmentType {
	c := rpc.CommitmentConfirmed
	switch commit {
	case "processed":
		c = rpc.CommitmentProcessed
	case "finalized":
		c = rpc.CommitmentFinalized
	}
	return c
}

func NewLedger(rpcURL, commit string) *Ledger {
	return &Ledger{
		RPC:    rpc.New(rpcURL),
		Commit: ParseCommitment(commit),
	}
}

// LatestBlockhash fetches the blockhash every auxiliary transaction of one bundle is built against.
func (l *Ledger) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := l.RPC.GetLatestBlockhash(ctx, l.Commit)
	if err != nil {
		return solana.Hash{}, LedgerErr.Wrap(err)
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, LedgerErr.New("empty blockhash response")
	}
	return out.Value.Blockhash, nil
}

// AccountExists reports whether the account has been created on chain.
func (l *Ledger) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	_, err := l.RPC.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{Commitment: l.Commit})
	if errors.Is(err, rpc.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, LedgerErr.Wrap(err)
	}
	return true, nil
}

// Balance returns the wallet's lamports.
func (l *Ledger) Balance(ctx context.Context, wallet solana.PublicKey) (uint64, error) {
	out, err := l.RPC.GetBalance(ctx, wallet, l.Commit)
	if err != nil {
		return 0, LedgerErr.Wrap(err)
	}
	return out.Value, nil
}

// TokenBalance reads the wallet's associated account for mint. A missing account is a zero balance.
func (l *Ledger) TokenBalance(ctx context.Context, wallet, mint solana.PublicKey) (*TokenBalance, error) {
	ata, err := AssociatedAccount(wallet, mint)
	if err != nil {
		return nil, LedgerErr.Wrap(err)
	}
	balance := &TokenBalance{Account: ata.String(), Amount: "0", UIAmount: "0"}
	out, err := l.RPC.GetTokenAccountBalance(ctx, ata, l.Commit)
	if err != nil {
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == invalidParamsCode {
			return balance, nil
		}
		return nil, LedgerErr.Wrap(err)
	}
	if out != nil && out.Value != nil {
		balance.Amount = out.Value.Amount
		balance.Decimals = out.Value.Decimals
		balance.UIAmount = out.Value.UiAmountString
	}
	return balance, nil
}

// Send submits one signed transaction straight to the RPC node, outside any bundle.
func (l *Ledger) Send(ctx context.Context, tx *SignedTx) (solana.Signature, error) {
	sig, err := l.RPC.SendTransactionWithOpts(ctx, tx.Tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: l.Commit,
	})
	if err != nil {
		return sig, LedgerErr.Wrap(err)
	}
	return sig, nil
}
