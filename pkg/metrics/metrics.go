// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics exports Prometheus metrics for resolved registry
// responses.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yeetrun/dockyard/pkg/response"
)

// Metrics holds the response collectors.
type Metrics struct {
	ResponsesTotal   *prometheus.CounterVec
	ResponseDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		ResponsesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dockyard_responses_total",
				Help: "Registry responses by resolution kind and status code.",
			},
			[]string{"kind", "code"},
		),
		ResponseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dockyard_response_seconds",
				Help:    "Time from request arrival to resolved response.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"kind"},
		),
		gatherer: reg,
	}
}

type startKey struct{}

// Middleware stamps the request arrival time so Observe can time it.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), startKey{}, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Observe implements response.Observer.
func (m *Metrics) Observe(r *http.Request, kind response.Kind, status int, _ error) {
	m.ResponsesTotal.WithLabelValues(kind.String(), strconv.Itoa(status)).Inc()
	if start, ok := r.Context().Value(startKey{}).(time.Time); ok {
		m.ResponseDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	}
}

var _ response.Observer = (*Metrics)(nil)

// Handler serves the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
