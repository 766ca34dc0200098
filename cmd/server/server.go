// Command server runs the heimdall exchange: the matching core, the TCP
// wire-protocol front door, the market-data websocket, and a Prometheus
// /metrics endpoint, wired together the way the teacher's cmd/main.go wires
// its engine and net.Server together.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"heimdall/internal/common"
	"heimdall/internal/config"
	"heimdall/internal/exchange"
	"heimdall/internal/marketdata"
	"heimdall/internal/metrics"
	"heimdall/internal/server"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.ParseServerConfig(flag.NewFlagSet("server", flag.ExitOnError), os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ex := exchange.New()
	if err := ex.AddMarket(common.Pair{Numeraire: "USD", Base: "BTC"}); err != nil {
		log.Fatal().Err(err).Msg("failed to register default market")
	}

	hub := marketdata.NewHub()
	rec := metrics.New(prometheus.DefaultRegisterer)

	go serveMetrics(cfg.MetricsAddr)
	go serveMarketData(cfg.MarketDataAddr, hub)

	srv := server.New(cfg.ListenAddr, ex, hub, rec)
	log.Info().Str("addr", cfg.ListenAddr).Msg("starting exchange")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("server exited with error")
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("metrics server exited")
	}
}

func serveMarketData(addr string, hub *marketdata.Hub) {
	mux := http.NewServeMux()
	mux.Handle("/marketdata", hub)
	log.Info().Str("addr", addr).Msg("serving market data")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("market-data server exited")
	}
}
