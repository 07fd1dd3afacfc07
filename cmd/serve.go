// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/anjanb/questdb/internal/config"
	"github.com/anjanb/questdb/internal/copyload"
	"github.com/anjanb/questdb/internal/dsn"
	"github.com/anjanb/questdb/internal/engine"
	"github.com/anjanb/questdb/internal/engine/memengine"
	"github.com/anjanb/questdb/internal/engine/pgengine"
	"github.com/anjanb/questdb/internal/logging"
	"github.com/anjanb/questdb/internal/metrics"
	"github.com/anjanb/questdb/internal/query"
	"github.com/anjanb/questdb/internal/server"
	"github.com/anjanb/questdb/internal/xdg"
)

const shutdownTimeout = 10 * time.Second

// serveCmd runs the query endpoint until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /exec, /status and /metrics over HTTP",
	Long: `The serve command starts the JSON query endpoint. Settings come from config.json
in the XDG config directory, then JSONQUERY_<KEY> environment variables, then flags.

  GET /exec?query=select+*+from+t&limit=10,20&count=true&nm=true`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadServeConfig(cmd.Flags())
		if err != nil {
			return err
		}
		log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Redact: cfg.LogRedact})
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, log)
	},
}

// loadServeConfig layers changed flags over the file and environment.
func loadServeConfig(flags *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	flags.Visit(func(f *pflag.Flag) {
		if err == nil {
			err = cfg.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
		}
	})
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func serve(ctx context.Context, cfg config.Config, log *logging.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	eng, err := openEngine(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer eng.Close()

	root, err := copyRoot(cfg)
	if err != nil {
		return err
	}
	proc, err := query.New(query.Options{
		Compiler:       eng,
		Store:          eng,
		Fs:             copyload.NewRootFs(root),
		Workers:        cfg.Workers,
		PlanCacheSize:  cfg.PlanCacheSize,
		CopyChunkSize:  int(cfg.CopyChunkSize),
		FloatScale:     cfg.FloatScale,
		DoubleScale:    cfg.DoubleScale,
		CheckFrequency: cfg.ConnectionCheckFrequency,
		Log:            log,
		Metrics:        m,
	})
	if err != nil {
		return err
	}
	defer proc.Close()

	srv := server.New(server.Options{
		Processor:    proc,
		BufferSize:   int(cfg.SendBufferSize),
		KeepAlive:    cfg.KeepAliveHeader,
		Gatherer:     reg,
		Log:          log,
		ReadTimeout:  time.Duration(cfg.ReadTimeout),
		WriteTimeout: time.Duration(cfg.WriteTimeout),
		IdleTimeout:  time.Duration(cfg.IdleTimeout),
	})
	hs := srv.HTTPServer(cfg.HTTPAddr)

	var lis net.Listener
	if cfg.GRPCAddr != "" {
		if lis, err = net.Listen("tcp", cfg.GRPCAddr); err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "listening", "addr", cfg.HTTPAddr, "engine", cfg.Engine,
			"workers", cfg.Workers, "buffer", cfg.SendBufferSize.String(), "copy_root", root)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var health *server.Health
	if lis != nil {
		health = server.NewHealth(log)
		g.Go(func() error { return health.Serve(gctx, lis) })
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if health != nil {
			health.Stop()
		}
		return hs.Shutdown(sctx)
	})
	return g.Wait()
}

func openEngine(ctx context.Context, cfg config.Config, log *logging.Logger) (engine.Engine, error) {
	if cfg.Engine != "postgres" {
		return memengine.New(), nil
	}
	raw, _, err := resolveDSN()
	if err != nil {
		return nil, err
	}
	normalized, err := dsn.Normalize(raw)
	if err != nil {
		return nil, err
	}
	return pgengine.Open(ctx, normalized, log)
}

// copyRoot returns the directory COPY file names resolve against,
// creating it when missing.
func copyRoot(cfg config.Config) (string, error) {
	root := cfg.CopyRoot
	if root == "" {
		state, err := xdg.StateDir()
		if err != nil {
			return "", err
		}
		root = filepath.Join(state, "import")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	return root, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	f := serveCmd.Flags()
	f.String("http-addr", "", "HTTP listen address")
	f.String("grpc-addr", "", "gRPC health listen address")
	f.String("engine", "", "memory or postgres")
	f.String("send-buffer-size", "", "response buffer size, e.g. 2MiB")
	f.String("workers", "", "plan acquisition workers")
	f.String("plan-cache-size", "", "cached plans per worker")
	f.String("copy-root", "", "directory COPY file names are resolved against")
	f.String("log-level", "", "trace, debug, info, warn or error")
	f.String("log-format", "", "text or json")
}
