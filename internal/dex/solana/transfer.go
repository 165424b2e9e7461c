package solana

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// NativeMint is wrapped SOL; orders quoting it move lamports rather than SPL tokens.
var NativeMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

// NativeTransfer moves lamports between two system accounts.
func NativeTransfer(from, to solana.PublicKey, lamports uint64) (solana.Instruction, error) {
	ix, err := system.NewTransferInstruction(lamports, from, to).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("system transfer: %w", err)
	}
	return ix, nil
}

// TokenTransfer moves amount base units from one associated account to another, both owned by their wallets.
func TokenTransfer(source, destination, owner solana.PublicKey, amount uint64) (solana.Instruction, error) {
	ix, err := token.NewTransferInstruction(amount, source, destination, owner, nil).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("token transfer: %w", err)
	}
	return ix, nil
}

// CreateAssociatedAccount opens wallet's associated account for mint, paid by payer.
func CreateAssociatedAccount(payer, wallet, mint solana.PublicKey) (solana.Instruction, error) {
	ix, err := associatedtokenaccount.NewCreateInstruction(payer, wallet, mint).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("create associated account: %w", err)
	}
	return ix, nil
}

// Memo tags a transaction with text signed by signer. Identical transfers built against one
// blockhash stay distinct when their memos differ.
func Memo(signer solana.PublicKey, text string) (solana.Instruction, error) {
	if text == "" {
		return nil, fmt.Errorf("memo: empty text")
	}
	return solana.NewInstruction(solana.MemoProgramID, solana.AccountMetaSlice{solana.Meta(signer).SIGNER()}, []byte(text)), nil
}

// AssociatedAccount derives the token account holding mint for wallet.
func AssociatedAccount(wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive associated account: %w", err)
	}
	return addr, nil
}

// BuildSigned wraps instructions in a transaction paid and signed by signer.
func BuildSigned(signer solana.PrivateKey, blockhash solana.Hash, instructions ...solana.Instruction) (*SignedTx, error) {
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(signer.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("new transaction: %w", err)
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer.PublicKey()) {
			return &signer
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal tx: %w", err)
	}
	return &SignedTx{Raw: raw, Tx: tx}, nil
}
