package solana

import (
	"encoding/base64"
	"strings"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/zeebo/errs"
)

// DecodeErr marks transaction blobs that are not valid base64 wire transactions.
var DecodeErr = errs.Class("transaction decode")

// SignedTx keeps the caller's wire bytes next to the decoded form so they can be forwarded untouched.
type SignedTx struct {
	Raw []byte
	Tx  *solana.Transaction
}

// DecodeSignedBase64 decodes a base64 wire transaction and requires its fee-payer signature to be present.
func DecodeSignedBase64(encoded string) (*SignedTx, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, DecodeErr.New("empty transaction")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, DecodeErr.New("base64: %v", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, DecodeErr.New("unmarshal tx: %v", err)
	}
	if len(tx.Signatures) == 0 || tx.Signatures[0].IsZero() {
		return nil, DecodeErr.New("transaction is not signed")
	}
	return &SignedTx{Raw: raw, Tx: tx}, nil
}

// DecodeUnsignedBase64 decodes an order-API transaction that still waits for the wallet signature.
func DecodeUnsignedBase64(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, DecodeErr.New("base64: %v", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, DecodeErr.New("unmarshal tx: %v", err)
	}
	return tx, nil
}

// Signature is the fee payer's signature, which is also the transaction id.
func (s *SignedTx) Signature() solana.Signature {
	return s.Tx.Signatures[0]
}

// Base64 re-encodes the original wire bytes.
func (s *SignedTx) Base64() string {
	return base64.StdEncoding.EncodeToString(s.Raw)
}

// EncodeBase64 serializes a transaction for JSON transport.
func EncodeBase64(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", DecodeErr.New("marshal tx: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
