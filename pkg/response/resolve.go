// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package response

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies how a request was resolved.
type Kind int

const (
	KindSuccess Kind = iota
	KindFailure
	KindDispatchFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	case KindDispatchFailure:
		return "dispatch_failure"
	default:
		return "unknown"
	}
}

// ErrEmptyOutcome is returned when resolving an Outcome that was not built
// with Success or Failure.
var ErrEmptyOutcome = errors.New("outcome has no value")

// ErrNilResponse is returned when a Responder reports no error but also no
// response.
var ErrNilResponse = errors.New("responder returned nil response")

// DispatchError reports that a Responder could not build a response.
type DispatchError struct {
	Status int
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed (%d): %v", e.status(), e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

func (e *DispatchError) status() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// NewDispatchError returns a *DispatchError with the given status.
func NewDispatchError(status int, err error) *DispatchError {
	return &DispatchError{Status: status, Err: err}
}

// StatusOf returns the status a dispatch failure should be reported with.
func StatusOf(err error) int {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.status()
	}
	return http.StatusInternalServerError
}

// Resolve renders o for the request r.
//
// The Responder's ResolveOK or ResolveErr builds the base response, and the
// API version header is merged into it, replacing any value already set. If
// the Responder fails, Resolve returns a *DispatchError and no response.
func Resolve[T Responder](o Outcome[T], r *http.Request) (*Response, error) {
	var (
		resp *Response
		err  error
	)
	switch o.v {
	case variantSuccess:
		resp, err = o.value.ResolveOK(r)
	case variantFailure:
		resp, err = o.value.ResolveErr(r)
	default:
		err = ErrEmptyOutcome
	}
	if err != nil {
		var de *DispatchError
		if errors.As(err, &de) {
			return nil, de
		}
		return nil, &DispatchError{Status: http.StatusInternalServerError, Err: err}
	}
	if resp == nil {
		return nil, &DispatchError{Status: http.StatusInternalServerError, Err: ErrNilResponse}
	}
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	resp.Header.Set(APIVersionHeader, APIVersion)
	return resp, nil
}
