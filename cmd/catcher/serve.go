package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/xraph/catcher"
	"github.com/xraph/catcher/api"
	"github.com/xraph/catcher/config"
	"github.com/xraph/catcher/observability"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().String("metrics-addr", "", "Separate listen address for /metrics")
	cmd.Flags().String("store", "", "Store backend: memory, pebble, sqlite or redis")
	cmd.Flags().String("dsn", "", "Store location: directory, file path or redis:// URL")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn or error")
	cmd.Flags().String("log-format", "", "Log format: json or text")

	return cmd
}

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadConfig(cmd); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
			return nil
		},
	}
}

// loadConfig layers the YAML file, CATCHER_* variables and explicit flags,
// in that order.
func loadConfig(cmd *cobra.Command) (config.File, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.File{}, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return config.File{}, err
	}

	flags := []struct {
		name string
		dst  *string
	}{
		{"addr", &cfg.Server.Addr},
		{"metrics-addr", &cfg.Server.MetricsAddr},
		{"store", &cfg.Store.Backend},
		{"dsn", &cfg.Store.DSN},
		{"log-level", &cfg.Log.Level},
		{"log-format", &cfg.Log.Format},
	}
	for _, f := range flags {
		if fl := cmd.Flags().Lookup(f.name); fl != nil && fl.Changed {
			*f.dst = fl.Value.String()
		}
	}

	if err := cfg.Validate(); err != nil {
		return config.File{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := cfg.Log.Logger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := cfg.Store.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("closing store", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := append(cfg.Options(),
		catcher.WithStore(st),
		catcher.WithLogger(logger),
		catcher.WithMetrics(observability.NewMetrics(reg)),
	)
	c, err := catcher.New(opts...)
	if err != nil {
		return fmt.Errorf("creating catcher: %w", err)
	}
	defer c.Close()

	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})

	mux := http.NewServeMux()
	mux.Handle("/", api.NewHandler(c))

	servers := []*http.Server{{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}}
	if cfg.Server.MetricsAddr == "" {
		mux.Handle("GET /metrics", metricsHandler)
	} else {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", metricsHandler)
		servers = append(servers, &http.Server{
			Addr:        cfg.Server.MetricsAddr,
			Handler:     metricsMux,
			ReadTimeout: cfg.Server.ReadTimeout,
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info("catcher listening",
				"addr", srv.Addr,
				"store", cfg.Store.Backend,
				"version", version,
			)
			errCh <- srv.ListenAndServe()
		}(srv)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	}

	// Live subscriptions end first so Shutdown is not held open by them.
	_ = c.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "addr", srv.Addr, "error", err)
		}
	}

	if serveErr != nil {
		return fmt.Errorf("server error: %w", serveErr)
	}
	return nil
}
