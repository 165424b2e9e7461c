// Package server exposes the relay backend over HTTP: bundle submission, order-API passthrough,
// wallet reads and bundle status streaming.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/kirarisk/JupLimits/internal/bundle"
	"github.com/kirarisk/JupLimits/internal/dex/jupiter"
	dexsol "github.com/kirarisk/JupLimits/internal/dex/solana"
	"github.com/kirarisk/JupLimits/internal/notify"
	"github.com/kirarisk/JupLimits/internal/orders"
)

// Bundler submits assembled bundles. *bundle.Service and bundle.Disabled implement it.
type Bundler interface {
	SubmitOrder(ctx context.Context, req bundle.OrderRequest) (*bundle.Receipt, error)
	SubmitCancellation(ctx context.Context, req bundle.CancelRequest) (*bundle.Receipt, error)
}

// OrderBook is the aggregator's limit-order API.
type OrderBook interface {
	CreateOrder(ctx context.Context, req jupiter.CreateOrderRequest) (*jupiter.CreateOrderResponse, error)
	CancelOrders(ctx context.Context, req jupiter.CancelOrdersRequest) (*jupiter.CancelOrdersResponse, error)
	OpenOrders(ctx context.Context, wallet string) ([]orders.Order, error)
}

// Chain reads balances and relays single transactions.
type Chain interface {
	Balance(ctx context.Context, wallet solana.PublicKey) (uint64, error)
	TokenBalance(ctx context.Context, wallet, mint solana.PublicKey) (*dexsol.TokenBalance, error)
	Send(ctx context.Context, tx *dexsol.SignedTx) (solana.Signature, error)
}

// RemovalWatcher confirms that cancelled orders left the book.
type RemovalWatcher interface {
	AwaitCancellation(ctx context.Context, wallet string, ids []string) (orders.Outcome, error)
}

// StatusBoard answers the last known status of recent bundles.
type StatusBoard interface {
	Latest(bundleID string) (notify.Event, bool)
	Snapshot() []notify.Event
}

// Deps are the collaborators handlers call. Hub and Statuses may be nil.
type Deps struct {
	Bundles  Bundler
	Orders   OrderBook
	Chain    Chain
	Watcher  RemovalWatcher
	Statuses StatusBoard
	Hub      *Hub
}

type Server struct {
	deps   Deps
	log    zerolog.Logger
	router *mux.Router
	srv    *http.Server
}

func New(addr string, deps Deps, log zerolog.Logger) *Server {
	s := &Server{deps: deps, log: log}
	s.router = s.routes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(s.log))
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		respondJSON(w, req, http.StatusMethodNotAllowed, map[string]any{"success": false, "error": "method not allowed"})
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		respondJSON(w, req, http.StatusNotFound, map[string]any{"success": false, "error": "not found"})
	})

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	// Bundle ids are hex, so {id} never swallows order or cancel.
	r.HandleFunc("/api/bundles/order", s.submitOrderBundle).Methods(http.MethodPost)
	r.HandleFunc("/api/bundles/cancel", s.submitCancelBundle).Methods(http.MethodPost)
	r.HandleFunc("/api/bundles", s.recentBundles).Methods(http.MethodGet)
	r.HandleFunc("/api/bundles/{id:[0-9a-fA-F-]{8,}}", s.bundleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/orders/create", s.createOrder).Methods(http.MethodPost)
	r.HandleFunc("/api/orders/cancel", s.cancelOrders).Methods(http.MethodPost)
	r.HandleFunc("/api/orders", s.listOrders).Methods(http.MethodGet)
	r.HandleFunc("/api/wallet/balance", s.walletBalance).Methods(http.MethodGet)
	r.HandleFunc("/api/transactions/send", s.sendTransaction).Methods(http.MethodPost)

	if s.deps.Hub != nil {
		r.Handle("/ws/bundles", s.deps.Hub).Methods(http.MethodGet)
	}
	return r
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.deps.Hub != nil {
		s.deps.Hub.Close()
	}
	return s.srv.Shutdown(ctx)
}
