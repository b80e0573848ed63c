// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package response

import "net/http"

// Responder is implemented by every endpoint result type.
//
// ResolveOK renders the value as a successful outcome and ResolveErr as a
// failed one. Either may return an error when the response itself cannot be
// built; that is a dispatch failure, not a domain failure.
type Responder interface {
	ResolveOK(r *http.Request) (*Response, error)
	ResolveErr(r *http.Request) (*Response, error)
}

type variant uint8

const (
	variantNone variant = iota
	variantSuccess
	variantFailure
)

// Outcome holds exactly one of a success or a failure value. It can only be
// built with Success or Failure and is not modified afterwards.
type Outcome[T Responder] struct {
	v     variant
	value T
}

// Success wraps v as a successful outcome.
func Success[T Responder](v T) Outcome[T] {
	return Outcome[T]{v: variantSuccess, value: v}
}

// Failure wraps v as a failed outcome.
func Failure[T Responder](v T) Outcome[T] {
	return Outcome[T]{v: variantFailure, value: v}
}

// Failed reports whether o was built with Failure.
func (o Outcome[T]) Failed() bool {
	return o.v == variantFailure
}

// Kind reports which branch o holds. A zero Outcome reports
// KindDispatchFailure since it can never be resolved.
func (o Outcome[T]) Kind() Kind {
	switch o.v {
	case variantSuccess:
		return KindSuccess
	case variantFailure:
		return KindFailure
	default:
		return KindDispatchFailure
	}
}
