// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/yeetrun/dockyard/pkg/config"
	"github.com/yeetrun/dockyard/pkg/logging"
	"github.com/yeetrun/dockyard/pkg/metrics"
	"github.com/yeetrun/dockyard/pkg/registry"
	"github.com/yeetrun/dockyard/pkg/response"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"tailscale.com/tsnet"
	"tailscale.com/util/must"
)

// openStorage returns the configured manifest store and a closer for it.
func openStorage(cfg config.StorageConfig) (registry.Storage, io.Closer, error) {
	switch cfg.Driver {
	case config.DriverFilesystem:
		s, err := registry.NewFilesystemStorage(cfg.RootDir)
		if err != nil {
			return nil, nil, err
		}
		return s, closerFunc(func() error { return nil }), nil
	case config.DriverContainerd:
		s, err := registry.NewContainerdStorage(cfg.ContainerdSocket, cfg.Namespace, cfg.ImagePrefix)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// newHandler wires the registry, logging and metrics together.
func newHandler(cfg *config.Config, storage registry.Storage, log *zap.Logger, m *metrics.Metrics) http.Handler {
	opts := []registry.Option{
		registry.WithLogger(log.Named("registry")),
		registry.WithObserver(response.Observers(logging.Observer(log.Named("http")), m)),
		registry.WithReadOnly(cfg.ReadOnly),
	}
	if cfg.RateLimit.Enabled {
		opts = append(opts, registry.WithRateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}
	return m.Middleware(registry.New(storage, opts...))
}

type server struct {
	name string
	srv  *http.Server
	ln   net.Listener
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	storage, closer, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closer.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	handler := newHandler(cfg, storage, log, m)

	var servers []server
	closeListeners := func() {
		for _, s := range servers {
			s.ln.Close()
		}
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	servers = append(servers, server{"registry", newHTTPServer(handler), ln})

	if cfg.Metrics.Addr != "" {
		mln, err := net.Listen("tcp", cfg.Metrics.Addr)
		if err != nil {
			closeListeners()
			return fmt.Errorf("listen metrics %s: %w", cfg.Metrics.Addr, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		servers = append(servers, server{"metrics", newHTTPServer(mux), mln})
	}

	if cfg.TSNet.Hostname != "" {
		ts := newTSNet(cfg, log)
		defer ts.Close()
		tln, err := ts.Listen("tcp", ":80")
		if err != nil {
			closeListeners()
			return fmt.Errorf("tsnet listen: %w", err)
		}
		servers = append(servers, server{"tsnet", newHTTPServer(handler), tln})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		g.Go(func() error {
			log.Info("listening", zap.String("server", s.name), zap.Stringer("addr", s.ln.Addr()))
			if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", s.name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		var errs []error
		for _, s := range servers {
			if err := s.srv.Shutdown(sctx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", s.name, err))
			}
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}

func newHTTPServer(h http.Handler) *http.Server {
	return &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newTSNet(cfg *config.Config, log *zap.Logger) *tsnet.Server {
	dir := cfg.TSNet.Dir
	if dir == "" {
		dir = filepath.Join(cfg.Storage.RootDir, "tsnet")
	}
	sugar := log.Named("tsnet").Sugar()
	return &tsnet.Server{
		Dir:      must.Get(filepath.Abs(dir)),
		Hostname: cfg.TSNet.Hostname,
		AuthKey:  cfg.TSNet.AuthKey,
		Logf:     sugar.Debugf,
		UserLogf: sugar.Infof,
	}
}
