package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/zeebo/errs"

	"github.com/kirarisk/JupLimits/internal/bundle"
	"github.com/kirarisk/JupLimits/internal/config"
	"github.com/kirarisk/JupLimits/internal/dex/jupiter"
	dexsol "github.com/kirarisk/JupLimits/internal/dex/solana"
	"github.com/kirarisk/JupLimits/internal/relay"
)

// BadRequestErr marks request bodies and query parameters the handlers cannot use.
var BadRequestErr = errs.Class("bad request")

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("encode response")
	}
}

func respondOK(w http.ResponseWriter, r *http.Request, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["success"] = true
	respondJSON(w, r, http.StatusOK, fields)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondJSON(w, r, status, map[string]any{"success": false, "error": message})
}

// respondFailure maps an error to its HTTP status and logs it.
func respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)
	evt := zerolog.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		evt = zerolog.Ctx(r.Context()).Error()
	}
	evt.Err(err).Int("status", status).Msg("request failed")
	respondError(w, r, status, message)
}

func classify(err error) (int, string) {
	switch {
	case relay.RejectedErr.Has(err):
		return http.StatusBadGateway, relay.Message(err)
	case BadRequestErr.Has(err), bundle.ValidationErr.Has(err), dexsol.DecodeErr.Has(err):
		return http.StatusBadRequest, err.Error()
	case config.MissingErr.Has(err), config.InvalidErr.Has(err), dexsol.CredentialErr.Has(err):
		return http.StatusInternalServerError, err.Error()
	case relay.Error.Has(err):
		return http.StatusBadGateway, relay.Message(err)
	case jupiter.Error.Has(err), dexsol.LedgerErr.Has(err), bundle.TipErr.Has(err):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream timed out"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(into); err != nil {
		return BadRequestErr.New("invalid JSON body: %v", err)
	}
	return nil
}
