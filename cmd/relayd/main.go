// Binary relayd serves the bundle relay API: it wraps caller-signed limit-order transactions with
// the service fee and relay tip and submits them atomically.
package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kirarisk/JupLimits/internal/bundle"
	"github.com/kirarisk/JupLimits/internal/config"
	"github.com/kirarisk/JupLimits/internal/dex/jupiter"
	dexsol "github.com/kirarisk/JupLimits/internal/dex/solana"
	"github.com/kirarisk/JupLimits/internal/metrics"
	"github.com/kirarisk/JupLimits/internal/notify"
	"github.com/kirarisk/JupLimits/internal/orders"
	"github.com/kirarisk/JupLimits/internal/relay"
	"github.com/kirarisk/JupLimits/internal/server"
	"github.com/kirarisk/JupLimits/internal/util"
)

func main() {
	boot := util.NewLogger("info")

	cfgPath := getEnv("JUPLIMITS_CONFIG", "internal/config/config.yaml")
	cfg, err := config.Load(cfgPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		boot.Warn().Str("path", cfgPath).Msg("config file not found, using defaults")
		def := config.Default()
		cfg = &def
	case err != nil:
		boot.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.ApplyOverrides(config.EnvSource(cfg.App.EnvFile)); err != nil {
		boot.Fatal().Err(err).Msg("apply environment")
	}

	log := util.NewLogger(cfg.App.LogLevel).With().Str("app", cfg.App.Name).Str("env", cfg.App.Env).Logger()

	metricsSrv := metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ledger := dexsol.NewLedger(cfg.Dex.RpcURL, cfg.Dex.Commitment)
	book := jupiter.NewClient(cfg.Dex.JupiterBase, cfg.Dex.JupiterAPIKey, cfg.Dex.JupiterRPS)
	engine := relay.NewClient(cfg.Relay.BlockEngineURL, cfg.Relay.AuthUUID)

	board := notify.NewLedger(0)
	hub := server.NewHub(util.Component(log, "ws"), cfg.App.WSOrigins...)
	sink := notify.Fanout{notify.NewLog(util.Component(log, "bundles")), board, hub}
	tracker := relay.NewTracker(engine, sink, util.Component(log, "tracker"),
		time.Duration(cfg.Relay.StatusPollMs)*time.Millisecond, cfg.Relay.StatusAttempts)

	watcher := orders.NewWatcher(book, util.Component(log, "orders"),
		orders.WithInterval(time.Duration(cfg.Orders.PollIntervalMs)*time.Millisecond),
		orders.WithMaxAttempts(cfg.Orders.PollAttempts),
	)

	srv := server.New(cfg.App.HTTPAddr, server.Deps{
		Bundles:  newBundler(cfg, log, engine, ledger, sink, tracker),
		Orders:   book,
		Chain:    ledger,
		Watcher:  watcher,
		Statuses: board,
		Hub:      hub,
	}, util.Component(log, "http"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		_ = metricsSrv.Shutdown(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
	tracker.Stop()
}

// newBundler returns the live assembler, or a stand-in that fails every submission when the
// configuration cannot support one. Reads and order-API passthrough keep working either way.
func newBundler(cfg *config.Config, log zerolog.Logger, engine *relay.Client, ledger *dexsol.Ledger, sink notify.Notifier, tracker *relay.Tracker) server.Bundler {
	settings, err := bundle.SettingsFromConfig(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("bundle submission disabled")
		return bundle.Disabled{Err: err}
	}
	opts := []bundle.Option{bundle.WithNotifier(sink)}
	if cfg.Relay.TrackStatus {
		opts = append(opts, bundle.WithTracker(tracker))
	}
	svc, err := bundle.NewService(settings, engine, ledger, util.Component(log, "bundle"), opts...)
	if err != nil {
		log.Warn().Err(err).Msg("bundle submission disabled")
		return bundle.Disabled{Err: err}
	}
	log.Info().
		Str("payer", svc.Payer().String()).
		Str("fee_collector", settings.FeeCollector.String()).
		Int64("fee_bps", settings.FeeBps).
		Uint64("tip_lamports", settings.TipLamports).
		Msg("bundle submission enabled")
	return svc
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
