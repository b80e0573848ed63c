// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/yeetrun/dockyard/pkg/response"
)

const (
	catalogPath = "/v2/_catalog"
	versionPath = "/v2/"
)

// ErrNoAPIVersion is returned by Ping when the server does not advertise
// the distribution API version header.
var ErrNoAPIVersion = errors.New("missing " + response.APIVersionHeader + " header")

// Client talks to a single registry.
type Client struct {
	http *resty.Client
}

// Option configures a Client.
type Option func(*resty.Client)

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) {
		c.SetTimeout(d)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *resty.Client) {
		c.SetHeader("User-Agent", ua)
	}
}

// NewClient returns a client for the registry at baseURL, for example
// "http://localhost:5000".
func NewClient(baseURL string, opts ...Option) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(c)
	}
	return &Client{http: c}
}

// List fetches and decodes the catalog.
func (c *Client) List(ctx context.Context) (RepositoryList, error) {
	resp, err := c.http.R().SetContext(ctx).Get(catalogPath)
	if err != nil {
		return RepositoryList{}, &Error{Op: "list", Kind: KindTransport, Err: err}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return RepositoryList{}, &Error{Op: "list", Kind: KindStatus, StatusCode: resp.StatusCode()}
	}
	list, err := Decode(resp.Body())
	if err != nil {
		var cerr *Error
		if errors.As(err, &cerr) {
			cerr.Op = "list"
		}
		return RepositoryList{}, err
	}
	return list, nil
}

// Ping checks that the server speaks the distribution API and returns the
// advertised version.
func (c *Client) Ping(ctx context.Context) (string, error) {
	resp, err := c.http.R().SetContext(ctx).Get(versionPath)
	if err != nil {
		return "", &Error{Op: "ping", Kind: KindTransport, Err: err}
	}
	if resp.StatusCode() != 200 {
		return "", &Error{Op: "ping", Kind: KindStatus, StatusCode: resp.StatusCode()}
	}
	v := resp.Header().Get(response.APIVersionHeader)
	if v == "" {
		return "", &Error{Op: "ping", Kind: KindStatus, StatusCode: resp.StatusCode(), Err: ErrNoAPIVersion}
	}
	return v, nil
}

const (
	taskPending int32 = iota
	taskDelivered
	taskCanceled
)

// Task is a handle to a background catalog fetch.
type Task struct {
	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
}

// Fetch lists the catalog in a new goroutine and calls fn with the result
// exactly once, unless the task is canceled first.
func (c *Client) Fetch(ctx context.Context, fn func(RepositoryList, error)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		defer cancel()
		list, err := c.List(ctx)
		if !t.state.CompareAndSwap(taskPending, taskDelivered) {
			return
		}
		fn(list, err)
	}()
	return t
}

// Cancel aborts the request. It reports whether the callback was
// prevented; false means delivery had already begun or the task was
// already canceled.
func (t *Task) Cancel() bool {
	if !t.state.CompareAndSwap(taskPending, taskCanceled) {
		return false
	}
	t.cancel()
	return true
}

// Done is closed once the task has delivered its result or observed its
// cancellation.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
