package server

import (
	"net/http"
	"sort"
	"strings"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kirarisk/JupLimits/internal/bundle"
	"github.com/kirarisk/JupLimits/internal/dex/jupiter"
	dexsol "github.com/kirarisk/JupLimits/internal/dex/solana"
)

type orderBundlePayload struct {
	SignedTransaction string              `json:"signedTransaction"`
	OrderID           string              `json:"orderId"`
	MakingAmount      decimal.NullDecimal `json:"makingAmount"`
	InputMint         string              `json:"inputMint"`
}

type cancelBundlePayload struct {
	SignedTransactions []string `json:"signedTransactions"`
	OrderIDs           []string `json:"orderIds"`
	Wallet             string   `json:"wallet"`
	AwaitRemoval       bool     `json:"awaitRemoval"`
}

type sendPayload struct {
	SignedTransaction string `json:"signedTransaction"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, map[string]any{"status": "ok"})
}

func (s *Server) submitOrderBundle(w http.ResponseWriter, r *http.Request) {
	var payload orderBundlePayload
	if err := decodeBody(w, r, &payload); err != nil {
		respondFailure(w, r, err)
		return
	}
	if strings.TrimSpace(payload.SignedTransaction) == "" {
		respondFailure(w, r, BadRequestErr.New("signedTransaction is required"))
		return
	}
	receipt, err := s.deps.Bundles.SubmitOrder(r.Context(), bundle.OrderRequest{
		SignedTransaction: payload.SignedTransaction,
		OrderID:           payload.OrderID,
		MakingAmount:      payload.MakingAmount,
		InputMint:         payload.InputMint,
	})
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondOK(w, r, map[string]any{
		"bundleId":  receipt.BundleID,
		"reference": receipt.Reference,
		"signature": receipt.Signature,
		"entries":   receipt.Entries,
	})
}

func (s *Server) submitCancelBundle(w http.ResponseWriter, r *http.Request) {
	var payload cancelBundlePayload
	if err := decodeBody(w, r, &payload); err != nil {
		respondFailure(w, r, err)
		return
	}
	if payload.AwaitRemoval {
		if strings.TrimSpace(payload.Wallet) == "" {
			respondFailure(w, r, BadRequestErr.New("wallet is required to await removal"))
			return
		}
		if len(payload.OrderIDs) == 0 {
			respondFailure(w, r, BadRequestErr.New("orderIds are required to await removal"))
			return
		}
	}
	receipt, err := s.deps.Bundles.SubmitCancellation(r.Context(), bundle.CancelRequest{
		SignedTransactions: payload.SignedTransactions,
		OrderIDs:           payload.OrderIDs,
	})
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	out := map[string]any{
		"bundleId":   receipt.BundleID,
		"reference":  receipt.Reference,
		"signatures": receipt.Signatures,
	}
	if payload.AwaitRemoval && s.deps.Watcher != nil {
		outcome, err := s.deps.Watcher.AwaitCancellation(r.Context(), payload.Wallet, payload.OrderIDs)
		if err != nil {
			// The bundle is already accepted; report it and leave removal unconfirmed.
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("bundle_id", receipt.BundleID).Msg("awaiting removal interrupted")
		}
		out["removalConfirmed"] = outcome.Confirmed
		out["pollAttempts"] = outcome.Attempts
		if len(outcome.Remaining) > 0 {
			out["remaining"] = outcome.Remaining
		}
	}
	respondOK(w, r, out)
}

func (s *Server) bundleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if s.deps.Statuses == nil {
		respondError(w, r, http.StatusNotFound, "bundle status tracking is disabled")
		return
	}
	event, ok := s.deps.Statuses.Latest(id)
	if !ok {
		respondError(w, r, http.StatusNotFound, "unknown bundle")
		return
	}
	respondOK(w, r, map[string]any{"bundle": event})
}

func (s *Server) recentBundles(w http.ResponseWriter, r *http.Request) {
	if s.deps.Statuses == nil {
		respondOK(w, r, map[string]any{"bundles": []any{}})
		return
	}
	respondOK(w, r, map[string]any{"bundles": s.deps.Statuses.Snapshot()})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req jupiter.CreateOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondFailure(w, r, err)
		return
	}
	var missing []string
	for name, value := range map[string]string{
		"maker":        req.Maker,
		"inputMint":    req.InputMint,
		"outputMint":   req.OutputMint,
		"makingAmount": req.MakingAmount,
		"takingAmount": req.TakingAmount,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		respondFailure(w, r, BadRequestErr.New("missing fields: %s", strings.Join(missing, ", ")))
		return
	}
	resp, err := s.deps.Orders.CreateOrder(r.Context(), req)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondOK(w, r, map[string]any{"order": resp.Order, "transaction": resp.Transaction})
}

func (s *Server) cancelOrders(w http.ResponseWriter, r *http.Request) {
	var req jupiter.CancelOrdersRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondFailure(w, r, err)
		return
	}
	if strings.TrimSpace(req.Maker) == "" {
		respondFailure(w, r, BadRequestErr.New("maker is required"))
		return
	}
	resp, err := s.deps.Orders.CancelOrders(r.Context(), req)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondOK(w, r, map[string]any{"transactions": resp.Transactions})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	wallet, err := keyParam(r, "wallet")
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	list, err := s.deps.Orders.OpenOrders(r.Context(), wallet.String())
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondOK(w, r, map[string]any{"orders": list})
}

func (s *Server) walletBalance(w http.ResponseWriter, r *http.Request) {
	wallet, err := keyParam(r, "wallet")
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	lamports, err := s.deps.Chain.Balance(r.Context(), wallet)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	out := map[string]any{"wallet": wallet.String(), "lamports": lamports}
	if r.URL.Query().Get("mint") != "" {
		mint, err := keyParam(r, "mint")
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		token, err := s.deps.Chain.TokenBalance(r.Context(), wallet, mint)
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		out["token"] = token
	}
	respondOK(w, r, out)
}

func (s *Server) sendTransaction(w http.ResponseWriter, r *http.Request) {
	var payload sendPayload
	if err := decodeBody(w, r, &payload); err != nil {
		respondFailure(w, r, err)
		return
	}
	tx, err := dexsol.DecodeSignedBase64(payload.SignedTransaction)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	sig, err := s.deps.Chain.Send(r.Context(), tx)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondOK(w, r, map[string]any{"signature": sig.String()})
}

func keyParam(r *http.Request, name string) (solana.PublicKey, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return solana.PublicKey{}, BadRequestErr.New("%s is required", name)
	}
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, BadRequestErr.New("%s: %v", name, err)
	}
	return key, nil
}
