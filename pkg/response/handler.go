// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package response

import (
	"net/http"
)

// Observer is told how every request served by a Handler was resolved. err is
// non-nil only for KindDispatchFailure or when writing the body failed.
type Observer interface {
	Observe(r *http.Request, kind Kind, status int, err error)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(r *http.Request, kind Kind, status int, err error)

func (f ObserverFunc) Observe(r *http.Request, kind Kind, status int, err error) {
	f(r, kind, status, err)
}

// Observers fans out to each non-nil observer in order.
func Observers(obs ...Observer) Observer {
	return ObserverFunc(func(r *http.Request, kind Kind, status int, err error) {
		for _, o := range obs {
			if o != nil {
				o.Observe(r, kind, status, err)
			}
		}
	})
}

// Option configures a Handler.
type Option func(*options)

type options struct {
	observer Observer
}

// WithObserver sets the Observer notified after each request.
func WithObserver(o Observer) Option {
	return func(opts *options) {
		opts.observer = o
	}
}

// Handler serves an endpoint function through Resolve.
type Handler[T Responder] struct {
	fn  func(*http.Request) Outcome[T]
	obs Observer
}

// Handle returns an http.Handler that calls fn, resolves its Outcome and
// writes the result.
func Handle[T Responder](fn func(*http.Request) Outcome[T], opts ...Option) *Handler[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Handler[T]{fn: fn, obs: o.observer}
}

func (h *Handler[T]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	out := h.fn(r)
	resp, err := Resolve(out, r)
	if err != nil {
		status := WriteDispatchFailure(w, err)
		h.observe(r, KindDispatchFailure, status, err)
		return
	}
	werr := Write(w, resp)
	h.observe(r, out.Kind(), resp.Status, werr)
}

func (h *Handler[T]) observe(r *http.Request, kind Kind, status int, err error) {
	if h.obs != nil {
		h.obs.Observe(r, kind, status, err)
	}
}
