package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"os"
	"strings"

	solana "github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/zeebo/errs"
)

// CredentialErr marks signing key material that cannot be turned into a keypair.
var CredentialErr = errs.Class("malformed credential")

// LoadPrivateKeyFromEnv reads a base58 wallet key, the format Phantom and solana-keygen export.
func LoadPrivateKeyFromEnv() (solana.PrivateKey, error) {
	_ = godotenv.Load() // best-effort
	b58 := os.Getenv("SOLANA_PRIVATE_KEY_BASE58")
	if b58 == "" {
		return nil, errors.New("SOLANA_PRIVATE_KEY_BASE58 not set")
	}
	key, err := solana.PrivateKeyFromBase58(b58)
	if err != nil {
		return nil, CredentialErr.Wrap(err)
	}
	return key, nil
}

// ParsePrivateKeyJSON decodes a keypair stored as a JSON array of 64 bytes (solana-keygen's id.json layout).
func ParsePrivateKeyJSON(raw string) (solana.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, CredentialErr.New("empty key")
	}
	var ints []int
	if err := json.Unmarshal([]byte(raw), &ints); err != nil {
		return nil, CredentialErr.New("expected a JSON byte array: %v", err)
	}
	if len(ints) != ed25519.PrivateKeySize {
		return nil, CredentialErr.New("expected %d bytes, got %d", ed25519.PrivateKeySize, len(ints))
	}
	key := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, CredentialErr.New("byte %d out of range: %d", i, v)
		}
		key[i] = byte(v)
	}
	derived := ed25519.PrivateKey(key).Public().(ed25519.PublicKey)
	if !bytes.Equal(derived, key[32:]) {
		return nil, CredentialErr.New("public half does not match secret half")
	}
	return solana.PrivateKey(key), nil
}
