// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/yeetrun/dockyard/pkg/config"
	"github.com/yeetrun/dockyard/pkg/metrics"
	"github.com/yeetrun/dockyard/pkg/response"
	"go.uber.org/zap"
)

func TestNewHandler(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.RootDir = t.TempDir()
	cfg.ReadOnly = true

	storage, closer, err := openStorage(cfg.Storage)
	if err != nil {
		t.Fatalf("openStorage: %v", err)
	}
	defer closer.Close()
	m := metrics.New(prometheus.NewRegistry())
	h := newHandler(cfg, storage, zap.NewNop(), m)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v2/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get(response.APIVersionHeader); got != response.APIVersion {
		t.Fatalf("%s = %q, want %q", response.APIVersionHeader, got, response.APIVersion)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/v2/app/manifests/v1", strings.NewReader("{}")))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("read-only PUT status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}

	if got := testutil.ToFloat64(m.ResponsesTotal.WithLabelValues("success", "200")); got != 1 {
		t.Fatalf("success/200 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ResponsesTotal.WithLabelValues("failure", "405")); got != 1 {
		t.Fatalf("failure/405 = %v, want 1", got)
	}
}

func TestOpenStorageUnknownDriver(t *testing.T) {
	if _, _, err := openStorage(config.StorageConfig{Driver: "s3"}); err == nil {
		t.Fatalf("openStorage(s3) succeeded")
	}
}

func TestLoadConfigFlags(t *testing.T) {
	t.Setenv("DOCKYARD_STORAGE_ROOT_DIR", t.TempDir())
	cfg, err := loadConfig(flagsParsed{Addr: ":6000", LogLevel: "debug", Dev: true})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Addr != ":6000" || cfg.Log.Level != "debug" || !cfg.Log.Development {
		t.Fatalf("loadConfig = %+v, flags not applied", cfg)
	}
	if _, err := loadConfig(flagsParsed{LogLevel: "loud"}); err == nil {
		t.Fatalf("loadConfig with bad level succeeded")
	}
}
