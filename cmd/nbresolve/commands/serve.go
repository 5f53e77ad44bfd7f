package commands

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marcuoli/go-nameresolve/internal/api"
	"github.com/marcuoli/go-nameresolve/internal/logger"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP resolution API",
	Long: `Run an HTTP API exposing name lookups, DC lists and node status.

Routes:
  GET /v1/resolve/{name}?type=&order=&site=
  GET /v1/dclist/{domain}?site=&ads_only=&kdc=
  GET /v1/status/{addr}
  GET /metrics (when metrics are enabled)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	listen := cfg.API.Listen
	if serveListen != "" {
		listen = serveListen
	}

	var (
		reg      *prometheus.Registry
		gatherer prometheus.Gatherer
		regArg   prometheus.Registerer
	)
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		regArg = reg
		if cfg.Metrics.Listen == "" || cfg.Metrics.Listen == listen {
			gatherer = reg
		}
	}

	r, closer, err := openResolver(regArg)
	if err != nil {
		return err
	}
	defer closeQuietly(closer)

	ctx := cmd.Context()
	g, ctx := errgroup.WithContext(ctx)

	apiServer := api.NewServer(listen, api.NewRouter(r, gatherer, cfg.API.RequestTimeout))
	g.Go(func() error { return apiServer.Start(ctx) })

	if reg != nil && gatherer == nil {
		mux := chi.NewRouter()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer := api.NewServer(cfg.Metrics.Listen, mux)
		logger.Info("Metrics enabled", "listen", cfg.Metrics.Listen)
		g.Go(func() error { return metricsServer.Start(ctx) })
	}

	logger.Info("nbresolve serving. Press Ctrl+C to stop.",
		"order", r.Order(),
		"workgroup", cfg.Resolve.Workgroup,
	)
	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
