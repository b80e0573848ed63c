// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"errors"
	"net/http"
	"strconv"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/yeetrun/dockyard/pkg/compress"
	"github.com/yeetrun/dockyard/pkg/response"
)

// Each route family has a single result type used for both outcome
// variants. The success payload is read by ResolveOK and err by ResolveErr.

var errNoSuccess = errors.New("result has no success form")

type apiVersionResult struct {
	err *Error
}

func (apiVersionResult) ResolveOK(*http.Request) (*response.Response, error) {
	return response.JSON(http.StatusOK, struct{}{})
}

func (res apiVersionResult) ResolveErr(*http.Request) (*response.Response, error) {
	return errorResponse(res.err)
}

type catalogBody struct {
	Repositories []string `json:"repositories"`
}

type catalogResult struct {
	repos []string
	err   *Error
}

func (res catalogResult) ResolveOK(*http.Request) (*response.Response, error) {
	repos := res.repos
	if repos == nil {
		repos = []string{}
	}
	return response.JSON(http.StatusOK, catalogBody{Repositories: repos})
}

func (res catalogResult) ResolveErr(*http.Request) (*response.Response, error) {
	return errorResponse(res.err)
}

type tagsBody struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

type tagsResult struct {
	name string
	tags []string
	err  *Error
}

func (res tagsResult) ResolveOK(*http.Request) (*response.Response, error) {
	tags := res.tags
	if tags == nil {
		tags = []string{}
	}
	return response.JSON(http.StatusOK, tagsBody{Name: res.name, Tags: tags})
}

func (res tagsResult) ResolveErr(*http.Request) (*response.Response, error) {
	return errorResponse(res.err)
}

type manifestResult struct {
	method   string
	manifest *Manifest // GET, HEAD
	repo     string
	digest   string // PUT
	err      *Error
}

func (res manifestResult) ResolveOK(r *http.Request) (*response.Response, error) {
	switch res.method {
	case http.MethodGet, http.MethodHead:
		return res.manifestResponse(r)
	case http.MethodPut:
		resp := response.New(http.StatusCreated).
			SetHeader("Location", ManifestPath(res.repo, res.digest)).
			SetHeader("Docker-Content-Digest", res.digest).
			SetHeader("Content-Length", "0")
		return resp, nil
	case http.MethodDelete:
		return response.New(http.StatusAccepted).SetHeader("Content-Length", "0"), nil
	}
	return nil, response.NewDispatchError(http.StatusInternalServerError, errNoSuccess)
}

func (res manifestResult) manifestResponse(r *http.Request) (*response.Response, error) {
	mf := res.manifest
	if mf == nil {
		return nil, response.NewDispatchError(http.StatusInternalServerError, ErrManifestNotFound)
	}
	mediaType := mf.MediaType
	if mediaType == "" {
		mediaType = ocispec.MediaTypeImageManifest
	}
	resp := response.New(http.StatusOK).
		SetHeader("Content-Type", mediaType).
		SetHeader("Docker-Content-Digest", mf.Digest).
		SetHeader("Content-Length", strconv.FormatInt(mf.Size, 10))
	if res.method == http.MethodHead {
		return resp, nil
	}

	resp.Body = mf.Data
	if enc := compress.SelectEncoding(r.Header.Get("Accept-Encoding")); enc != compress.Identity {
		// Fall back to the uncompressed body on error.
		if b, err := compress.Encode(mf.Data, enc); err == nil {
			resp.Body = b
			resp.SetHeader("Content-Encoding", string(enc)).
				SetHeader("Content-Length", strconv.Itoa(len(b)))
		}
		resp.Header.Add("Vary", "Accept-Encoding")
	}
	return resp, nil
}

func (res manifestResult) ResolveErr(*http.Request) (*response.Response, error) {
	return errorResponse(res.err)
}

// errorResult only exists as a failure.
type errorResult struct {
	err *Error
}

func (errorResult) ResolveOK(*http.Request) (*response.Response, error) {
	return nil, response.NewDispatchError(http.StatusInternalServerError, errNoSuccess)
}

func (res errorResult) ResolveErr(*http.Request) (*response.Response, error) {
	return errorResponse(res.err)
}
