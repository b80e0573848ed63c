// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

const (
	// APIVersionHeader is set on every resolved registry response.
	APIVersionHeader = "Docker-Distribution-API-Version"
	// APIVersion is the value advertised in APIVersionHeader.
	APIVersion = "registry/2.0"
)

// Response is a fully built HTTP response that has not been written yet.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// New returns an empty response with the given status.
func New(status int) *Response {
	return &Response{
		Status: status,
		Header: make(http.Header),
	}
}

// JSON returns a response with v encoded as its body. Encoding failures are
// reported as a *DispatchError.
func JSON(status int, v any) (*Response, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &DispatchError{
			Status: http.StatusInternalServerError,
			Err:    fmt.Errorf("encode json body: %w", err),
		}
	}
	resp := New(status)
	resp.Header.Set("Content-Type", "application/json")
	resp.Header.Set("Content-Length", strconv.Itoa(len(b)))
	resp.Body = b
	return resp, nil
}

// SetHeader sets a header on the response and returns it for chaining.
func (r *Response) SetHeader(key, value string) *Response {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(key, value)
	return r
}

// Write copies resp to w.
func Write(w http.ResponseWriter, resp *Response) error {
	h := w.Header()
	for k, vv := range resp.Header {
		h[k] = append([]string(nil), vv...)
	}
	w.WriteHeader(resp.Status)
	if len(resp.Body) == 0 {
		return nil
	}
	_, err := w.Write(resp.Body)
	return err
}

// WriteDispatchFailure writes the bare status carried by err. Nothing else is
// written, not even the API version header.
func WriteDispatchFailure(w http.ResponseWriter, err error) int {
	status := StatusOf(err)
	w.WriteHeader(status)
	return status
}
