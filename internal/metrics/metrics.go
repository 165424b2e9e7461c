package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BundlesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bundles_total", Help: "Bundle submissions by path and outcome"},
		[]string{"path", "outcome"},
	)
	TipLamportsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bundle_tip_lamports_total", Help: "Lamports paid to relay tip accounts"},
	)
	FeeBaseUnitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bundle_fee_base_units_total", Help: "Service fees charged, in base units of the input mint"},
		[]string{"mint"},
	)
	RelayRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "relay_request_seconds", Help: "Relay JSON-RPC latency", Buckets: prometheus.DefBuckets},
		[]string{"method"},
	)
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Inbound API requests"},
		[]string{"route", "code"},
	)
	WSClients = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ws_clients", Help: "Connected bundle status websocket clients"},
	)
)

func init() {
	prometheus.MustRegister(BundlesTotal, TipLamportsTotal, FeeBaseUnitsTotal, RelayRequestSeconds, HTTPRequestsTotal, WSClients)
}

// ObserveRelay records how long one relay call took.
func ObserveRelay(method string, started time.Time) {
	RelayRequestSeconds.WithLabelValues(method).Observe(time.Since(started).Seconds())
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
