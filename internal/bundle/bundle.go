// Package bundle assembles caller-signed order transactions with the service's fee and tip legs
// and submits them to the relay as one atomic bundle.
package bundle

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/zeebo/errs"

	"github.com/kirarisk/JupLimits/internal/config"
	dexsol "github.com/kirarisk/JupLimits/internal/dex/solana"
	"github.com/kirarisk/JupLimits/internal/metrics"
	"github.com/kirarisk/JupLimits/internal/notify"
	"github.com/kirarisk/JupLimits/internal/risk"
)

var (
	// ValidationErr marks requests that are malformed or exceed limits.
	ValidationErr = errs.Class("invalid request")
	// TipErr marks failures to choose a tip destination.
	TipErr = errs.Class("tip account")
	// FeeErr marks failures to build the service fee transfer.
	FeeErr = errs.Class("fee transfer")
)

// Kinds reported to notifiers and metrics.
const (
	KindOrder  = "order"
	KindCancel = "cancel"
)

// Relay is the part of the block engine client the assembler needs.
type Relay interface {
	TipAccounts(ctx context.Context) ([]string, error)
	SendBundle(ctx context.Context, txs []string) (string, error)
}

// Ledger is the part of the chain client the assembler needs.
type Ledger interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
}

// Tracker follows accepted bundles after the response has been sent.
type Tracker interface {
	Track(ctx context.Context, bundleID, kind string)
}

// Settings is the immutable assembler configuration.
type Settings struct {
	Signer              solana.PrivateKey
	FeeCollector        solana.PublicKey
	FeeBps              int64
	TipLamports         uint64
	DefaultInputMint    solana.PublicKey
	DefaultMakingAmount uint64
	LegacyFeeFallback   bool
	Limits              risk.Limits
}

// SettingsFromConfig validates cfg for submission and resolves its keys.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	if err := cfg.CheckSubmission(); err != nil {
		return Settings{}, err
	}
	signer, err := dexsol.ParsePrivateKeyJSON(cfg.Wallet.PrivateKey)
	if err != nil {
		return Settings{}, err
	}
	collector, err := solana.PublicKeyFromBase58(strings.TrimSpace(cfg.Fee.Collector))
	if err != nil {
		return Settings{}, config.InvalidErr.New("fee.collector: %v", err)
	}
	mint := dexsol.NativeMint
	if m := strings.TrimSpace(cfg.Fee.DefaultInputMint); m != "" {
		if mint, err = solana.PublicKeyFromBase58(m); err != nil {
			return Settings{}, config.InvalidErr.New("fee.default_input_mint: %v", err)
		}
	}
	if cfg.Fee.Bps < 0 || cfg.Fee.Bps > 10_000 {
		return Settings{}, config.InvalidErr.New("fee.bps must be between 0 and 10000")
	}
	if cfg.Relay.TipLamports == 0 {
		return Settings{}, config.InvalidErr.New("relay.tip_lamports must be positive")
	}
	return Settings{
		Signer:              signer,
		FeeCollector:        collector,
		FeeBps:              cfg.Fee.Bps,
		TipLamports:         cfg.Relay.TipLamports,
		DefaultInputMint:    mint,
		DefaultMakingAmount: cfg.Fee.DefaultMakingAmount,
		LegacyFeeFallback:   cfg.Fee.LegacyFallback,
		Limits: risk.Limits{
			MaxBundleSize:   cfg.Relay.MaxBundleSize,
			MaxMakingAmount: cfg.Fee.MaxMakingAmount,
		},
	}, nil
}

// OrderRequest carries a caller-signed order-creation transaction.
type OrderRequest struct {
	SignedTransaction string
	OrderID           string
	// MakingAmount and InputMint fall back to the configured defaults when absent.
	MakingAmount decimal.NullDecimal
	InputMint    string
}

// CancelRequest carries one or more caller-signed cancellation transactions.
type CancelRequest struct {
	SignedTransactions []string
	OrderIDs           []string
}

// Role names the purpose of a bundle entry.
type Role string

const (
	RoleUser   Role = "user"
	RoleFee    Role = "fee"
	RoleTip    Role = "tip"
	RoleCancel Role = "cancel"
)

// Entry is one transaction of a submitted bundle.
type Entry struct {
	Role      Role   `json:"role"`
	Signature string `json:"signature"`
	Recipient string `json:"recipient,omitempty"`
	Amount    uint64 `json:"amount,omitempty"`
	Mint      string `json:"mint,omitempty"`

	tx *dexsol.SignedTx
}

// Receipt describes an accepted bundle.
type Receipt struct {
	BundleID string `json:"bundleId"`
	// Reference is the memo carried by the service's fee and tip transactions.
	Reference string `json:"reference"`
	// Signature is the first caller transaction; Signatures lists every caller transaction.
	Signature  string   `json:"signature"`
	Signatures []string `json:"signatures"`
	TipAccount string   `json:"tipAccount"`
	Entries    []Entry  `json:"entries"`
}

// Service builds and submits bundles. It is safe for concurrent use.
type Service struct {
	settings Settings
	relay    Relay
	ledger   Ledger
	log      zerolog.Logger
	notifier notify.Notifier
	tracker  Tracker

	mu   sync.Mutex
	rand *rand.Rand
}

// Option customizes a Service.
type Option func(*Service)

// WithNotifier reports every accepted bundle.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithTracker hands accepted bundles to a background status tracker.
func WithTracker(t Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

// WithRand fixes the tip account selection source.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rand = r }
}

func NewService(settings Settings, relay Relay, ledger Ledger, log zerolog.Logger, opts ...Option) (*Service, error) {
	if len(settings.Signer) != 64 {
		return nil, config.InvalidErr.New("service signer must be a 64-byte key")
	}
	if settings.FeeCollector.IsZero() {
		return nil, config.MissingErr.New("fee.collector")
	}
	if settings.Limits.MaxBundleSize <= 0 {
		return nil, config.MissingErr.New("relay.max_bundle_size")
	}
	if settings.TipLamports == 0 {
		return nil, config.InvalidErr.New("relay.tip_lamports must be positive")
	}
	if settings.DefaultInputMint.IsZero() {
		settings.DefaultInputMint = dexsol.NativeMint
	}
	s := &Service{
		settings: settings,
		relay:    relay,
		ledger:   ledger,
		log:      log,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Payer is the service wallet that pays fees and tips.
func (s *Service) Payer() solana.PublicKey { return s.settings.Signer.PublicKey() }

// SubmitOrder relays [user, fee, tip] as one bundle.
func (s *Service) SubmitOrder(ctx context.Context, req OrderRequest) (*Receipt, error) {
	user, err := dexsol.DecodeSignedBase64(req.SignedTransaction)
	if err != nil {
		return nil, err
	}
	mint, amount, err := s.orderTerms(req)
	if err != nil {
		return nil, err
	}
	if !s.settings.Limits.AllowBundle(3) {
		return nil, ValidationErr.New("bundle of 3 transactions exceeds the limit of %d", s.settings.Limits.MaxBundleSize)
	}

	tipAccount, err := s.pickTipAccount(ctx)
	if err != nil {
		return nil, s.fail(KindOrder, err)
	}
	blockhash, err := s.ledger.LatestBlockhash(ctx)
	if err != nil {
		return nil, s.fail(KindOrder, err)
	}

	ref := reference(KindOrder, req.OrderID)
	fee, err := s.feeEntry(ctx, blockhash, mint, Fee(amount, s.settings.FeeBps), ref)
	if err != nil {
		return nil, s.fail(KindOrder, err)
	}
	tip, err := s.tipEntry(blockhash, tipAccount, ref)
	if err != nil {
		return nil, s.fail(KindOrder, err)
	}

	entries := []Entry{userEntry(RoleUser, user), fee, tip}
	receipt, err := s.submit(ctx, KindOrder, entries, tipAccount, ref)
	if err != nil {
		return nil, err
	}
	metrics.FeeBaseUnitsTotal.WithLabelValues(fee.Mint).Add(float64(fee.Amount))
	s.log.Info().
		Str("bundle_id", receipt.BundleID).
		Str("order_id", req.OrderID).
		Str("signature", receipt.Signature).
		Str("fee_mint", fee.Mint).
		Uint64("fee", fee.Amount).
		Msg("order bundle accepted")
	return receipt, nil
}

// SubmitCancellation relays [cancel..., tip] as one bundle.
func (s *Service) SubmitCancellation(ctx context.Context, req CancelRequest) (*Receipt, error) {
	if len(req.SignedTransactions) == 0 {
		return nil, ValidationErr.New("at least one signed cancellation transaction is required")
	}
	size := len(req.SignedTransactions) + 1
	if !s.settings.Limits.AllowBundle(size) {
		return nil, ValidationErr.New("bundle of %d transactions exceeds the limit of %d", size, s.settings.Limits.MaxBundleSize)
	}
	entries := make([]Entry, 0, size)
	for i, encoded := range req.SignedTransactions {
		tx, err := dexsol.DecodeSignedBase64(encoded)
		if err != nil {
			s.log.Debug().Err(err).Int("index", i).Msg("cancellation transaction rejected")
			return nil, err
		}
		entries = append(entries, userEntry(RoleCancel, tx))
	}

	tipAccount, err := s.pickTipAccount(ctx)
	if err != nil {
		return nil, s.fail(KindCancel, err)
	}
	blockhash, err := s.ledger.LatestBlockhash(ctx)
	if err != nil {
		return nil, s.fail(KindCancel, err)
	}
	ref := reference(KindCancel, req.OrderIDs...)
	tip, err := s.tipEntry(blockhash, tipAccount, ref)
	if err != nil {
		return nil, s.fail(KindCancel, err)
	}

	receipt, err := s.submit(ctx, KindCancel, append(entries, tip), tipAccount, ref)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("bundle_id", receipt.BundleID).
		Strs("order_ids", req.OrderIDs).
		Int("cancellations", len(req.SignedTransactions)).
		Msg("cancel bundle accepted")
	return receipt, nil
}

func (s *Service) orderTerms(req OrderRequest) (solana.PublicKey, uint64, error) {
	mint := s.settings.DefaultInputMint
	if m := strings.TrimSpace(req.InputMint); m != "" {
		parsed, err := solana.PublicKeyFromBase58(m)
		if err != nil {
			return solana.PublicKey{}, 0, ValidationErr.New("inputMint: %v", err)
		}
		mint = parsed
	}
	amount := s.settings.DefaultMakingAmount
	if req.MakingAmount.Valid {
		parsed, err := parseAmount(req.MakingAmount.Decimal)
		if err != nil {
			return solana.PublicKey{}, 0, err
		}
		amount = parsed
	}
	if !s.settings.Limits.AllowAmount(amount) {
		return solana.PublicKey{}, 0, ValidationErr.New("makingAmount %d exceeds the limit of %d", amount, s.settings.Limits.MaxMakingAmount)
	}
	return mint, amount, nil
}

func (s *Service) pickTipAccount(ctx context.Context) (solana.PublicKey, error) {
	accounts, err := s.relay.TipAccounts(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if len(accounts) == 0 {
		return solana.PublicKey{}, TipErr.New("relay reported no tip accounts")
	}
	s.mu.Lock()
	choice := accounts[s.rand.Intn(len(accounts))]
	s.mu.Unlock()
	account, err := solana.PublicKeyFromBase58(choice)
	if err != nil {
		return solana.PublicKey{}, TipErr.New("%q: %v", choice, err)
	}
	return account, nil
}

func (s *Service) tipEntry(blockhash solana.Hash, account solana.PublicKey, ref string) (Entry, error) {
	ix, err := dexsol.NativeTransfer(s.Payer(), account, s.settings.TipLamports)
	if err != nil {
		return Entry{}, TipErr.Wrap(err)
	}
	memo, err := dexsol.Memo(s.Payer(), ref)
	if err != nil {
		return Entry{}, TipErr.Wrap(err)
	}
	tx, err := dexsol.BuildSigned(s.settings.Signer, blockhash, ix, memo)
	if err != nil {
		return Entry{}, TipErr.Wrap(err)
	}
	return Entry{
		Role:      RoleTip,
		Signature: tx.Signature().String(),
		Recipient: account.String(),
		Amount:    s.settings.TipLamports,
		Mint:      dexsol.NativeMint.String(),
		tx:        tx,
	}, nil
}

func (s *Service) feeEntry(ctx context.Context, blockhash solana.Hash, mint solana.PublicKey, fee uint64, ref string) (Entry, error) {
	if mint.Equals(dexsol.NativeMint) {
		return s.nativeFee(blockhash, fee, ref)
	}
	entry, err := s.tokenFee(ctx, blockhash, mint, fee, ref)
	if err == nil {
		return entry, nil
	}
	if !s.settings.LegacyFeeFallback {
		return Entry{}, FeeErr.Wrap(err)
	}
	lamports := LegacyLamportFallback(fee)
	s.log.Warn().Err(err).Str("mint", mint.String()).Uint64("fee", fee).Uint64("lamports", lamports).Msg("token fee unavailable, charging legacy lamport fallback")
	return s.nativeFee(blockhash, lamports, ref)
}

func (s *Service) nativeFee(blockhash solana.Hash, lamports uint64, ref string) (Entry, error) {
	ix, err := dexsol.NativeTransfer(s.Payer(), s.settings.FeeCollector, lamports)
	if err != nil {
		return Entry{}, FeeErr.Wrap(err)
	}
	memo, err := dexsol.Memo(s.Payer(), ref)
	if err != nil {
		return Entry{}, FeeErr.Wrap(err)
	}
	tx, err := dexsol.BuildSigned(s.settings.Signer, blockhash, ix, memo)
	if err != nil {
		return Entry{}, FeeErr.Wrap(err)
	}
	return Entry{
		Role:      RoleFee,
		Signature: tx.Signature().String(),
		Recipient: s.settings.FeeCollector.String(),
		Amount:    lamports,
		Mint:      dexsol.NativeMint.String(),
		tx:        tx,
	}, nil
}

func (s *Service) tokenFee(ctx context.Context, blockhash solana.Hash, mint solana.PublicKey, amount uint64, ref string) (Entry, error) {
	payer := s.Payer()
	source, err := dexsol.AssociatedAccount(payer, mint)
	if err != nil {
		return Entry{}, err
	}
	ok, err := s.ledger.AccountExists(ctx, source)
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return Entry{}, errs.New("service wallet holds no account for mint %s", mint)
	}
	destination, err := dexsol.AssociatedAccount(s.settings.FeeCollector, mint)
	if err != nil {
		return Entry{}, err
	}
	ok, err = s.ledger.AccountExists(ctx, destination)
	if err != nil {
		return Entry{}, err
	}

	var ixs []solana.Instruction
	if !ok {
		create, err := dexsol.CreateAssociatedAccount(payer, s.settings.FeeCollector, mint)
		if err != nil {
			return Entry{}, err
		}
		ixs = append(ixs, create)
	}
	transfer, err := dexsol.TokenTransfer(source, destination, payer, amount)
	if err != nil {
		return Entry{}, err
	}
	memo, err := dexsol.Memo(payer, ref)
	if err != nil {
		return Entry{}, err
	}
	tx, err := dexsol.BuildSigned(s.settings.Signer, blockhash, append(ixs, transfer, memo)...)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Role:      RoleFee,
		Signature: tx.Signature().String(),
		Recipient: destination.String(),
		Amount:    amount,
		Mint:      mint.String(),
		tx:        tx,
	}, nil
}

func (s *Service) submit(ctx context.Context, kind string, entries []Entry, tipAccount solana.PublicKey, ref string) (*Receipt, error) {
	encoded := make([]string, len(entries))
	for i, e := range entries {
		encoded[i] = e.tx.Base64()
	}
	bundleID, err := s.relay.SendBundle(ctx, encoded)
	if err != nil {
		metrics.BundlesTotal.WithLabelValues(kind, "rejected").Inc()
		s.log.Warn().Err(err).Str("kind", kind).Str("reference", ref).Int("entries", len(entries)).Msg("relay rejected bundle")
		return nil, err
	}
	metrics.BundlesTotal.WithLabelValues(kind, "accepted").Inc()
	metrics.TipLamportsTotal.Add(float64(s.settings.TipLamports))

	receipt := &Receipt{BundleID: bundleID, Reference: ref, TipAccount: tipAccount.String(), Entries: entries}
	for _, e := range entries {
		if e.Role == RoleUser || e.Role == RoleCancel {
			receipt.Signatures = append(receipt.Signatures, e.Signature)
		}
	}
	if len(receipt.Signatures) > 0 {
		receipt.Signature = receipt.Signatures[0]
	}

	if s.notifier != nil {
		s.notifier.Notify(notify.Event{
			BundleID:   bundleID,
			Kind:       kind,
			Status:     notify.Submitted,
			Signatures: receipt.Signatures,
			At:         time.Now().UTC(),
		})
	}
	if s.tracker != nil {
		s.tracker.Track(ctx, bundleID, kind)
	}
	return receipt, nil
}

func (s *Service) fail(kind string, err error) error {
	metrics.BundlesTotal.WithLabelValues(kind, "failed").Inc()
	return err
}

// reference is unique per request so concurrent bundles never share a service-signed
// transaction. The service signs deterministically against a shared blockhash.
func reference(kind string, orderIDs ...string) string {
	ref := "juplimits:" + kind + ":" + uuid.NewString()
	if len(orderIDs) > 0 && orderIDs[0] != "" {
		ref += ":" + orderIDs[0]
	}
	return ref
}

func userEntry(role Role, tx *dexsol.SignedTx) Entry {
	return Entry{Role: role, Signature: tx.Signature().String(), tx: tx}
}

// Disabled stands in for a Service when configuration is incomplete; every submission fails with Err
// before any network call.
type Disabled struct{ Err error }

func (d Disabled) SubmitOrder(context.Context, OrderRequest) (*Receipt, error) { return nil, d.Err }

func (d Disabled) SubmitCancellation(context.Context, CancelRequest) (*Receipt, error) {
	return nil, d.Err
}
