// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/yeetrun/dockyard/pkg/compress"
	"github.com/yeetrun/dockyard/pkg/response"
	"go.uber.org/zap"
)

// maxManifestSize bounds the body accepted by a manifest PUT.
const maxManifestSize = 4 << 20

// Registry serves the Distribution API v2 endpoints. Every response it
// writes is resolved through the response package.
type Registry struct {
	storage  Storage
	mux      *http.ServeMux
	log      *zap.Logger
	observer response.Observer
	readOnly bool
	limiter  *rateLimiter

	opts []response.Option
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithObserver sets the observer notified after every response.
func WithObserver(o response.Observer) Option {
	return func(r *Registry) {
		r.observer = o
	}
}

// WithReadOnly rejects manifest writes and deletes when ro is true.
func WithReadOnly(ro bool) Option {
	return func(r *Registry) {
		r.readOnly = ro
	}
}

// WithRateLimit limits each client IP to rps requests per second with the
// given burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(r *Registry) {
		if rps <= 0 {
			r.limiter = nil
			return
		}
		r.limiter = newRateLimiter(rps, burst)
	}
}

// New creates a new registry with the given storage backend.
func New(storage Storage, opts ...Option) *Registry {
	r := &Registry{
		storage: storage,
		mux:     http.NewServeMux(),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.observer != nil {
		r.opts = append(r.opts, response.WithObserver(r.observer))
	}
	r.setupRoutes()
	return r
}

// NewHandler creates a new HTTP handler for the registry.
func NewHandler(storage Storage, opts ...Option) http.Handler {
	return New(storage, opts...)
}

func (r *Registry) setupRoutes() {
	apiVersion := response.Handle(r.apiVersion, r.opts...)
	r.mux.Handle(BasePath(), apiVersion)
	r.mux.Handle(CatalogPath(), response.Handle(r.catalog, r.opts...))

	tags := response.Handle(r.tags, r.opts...)
	manifest := response.Handle(r.manifest, r.opts...)
	r.mux.HandleFunc(BasePath()+"/", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == BasePath()+"/" {
			apiVersion.ServeHTTP(w, req)
			return
		}
		p, err := ParseRegistryPath(req.URL.Path)
		if err != nil {
			r.log.Debug("parse registry path", zap.String("path", req.URL.Path), zap.Error(err))
			r.fail(w, req, errNotFound)
			return
		}
		if !ValidRepositoryName(p.Repo) {
			r.fail(w, req, NewError(http.StatusBadRequest, ErrCodeNameInvalid, "invalid repository name").
				WithDetail(map[string]string{"name": p.Repo}))
			return
		}
		req = withRegistryPath(req, p)

		switch p.Type {
		case PathTypeManifest:
			if !ValidReference(p.Reference) {
				code := ErrCodeTagInvalid
				if isDigest(p.Reference) {
					code = ErrCodeDigestInvalid
				}
				r.fail(w, req, NewError(http.StatusBadRequest, code, "invalid reference").
					WithDetail(map[string]string{"reference": p.Reference}))
				return
			}
			if r.readOnly && (req.Method == http.MethodPut || req.Method == http.MethodDelete) {
				r.fail(w, req, errReadOnly)
				return
			}
			manifest.ServeHTTP(w, req)
		case PathTypeTagsList:
			tags.ServeHTTP(w, req)
		case PathTypeBlob, PathTypeBlobUpload:
			r.fail(w, req, errBlobUnsupported)
		default:
			r.fail(w, req, errNotFound)
		}
	})
	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		r.fail(w, req, errNotFound)
	})
}

// ServeHTTP implements http.Handler for the registry.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if r.limiter != nil && !r.limiter.allow(req) {
		r.log.Debug("rate limited", zap.String("remote", req.RemoteAddr))
		r.fail(w, req, errTooManyRequests)
		return
	}
	// ServeMux would redirect unclean paths without the API version header.
	if p := req.URL.Path; p != cleanPath(p) {
		r.log.Debug("unclean path", zap.String("path", p))
		r.fail(w, req, errNotFound)
		return
	}
	r.mux.ServeHTTP(w, req)
}

// cleanPath returns the canonical form of p, keeping a trailing slash.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	if p[len(p)-1] == '/' && np != "/" {
		np += "/"
	}
	return np
}

// fail serves err as a failure outcome so it carries the API version header.
func (r *Registry) fail(w http.ResponseWriter, req *http.Request, err *Error) {
	response.Handle(func(*http.Request) response.Outcome[errorResult] {
		return response.Failure(errorResult{err: err})
	}, r.opts...).ServeHTTP(w, req)
}

func (r *Registry) apiVersion(req *http.Request) response.Outcome[apiVersionResult] {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return response.Failure(apiVersionResult{err: errMethodNotAllowed(req.Method)})
	}
	return response.Success(apiVersionResult{})
}

func (r *Registry) catalog(req *http.Request) response.Outcome[catalogResult] {
	if req.Method != http.MethodGet {
		return response.Failure(catalogResult{err: errMethodNotAllowed(req.Method)})
	}
	repos, err := r.storage.Repositories(req.Context())
	if err != nil {
		r.log.Warn("list repositories", zap.Error(err))
		return response.Failure(catalogResult{err: errInternal(err)})
	}
	return response.Success(catalogResult{repos: repos})
}

func (r *Registry) tags(req *http.Request) response.Outcome[tagsResult] {
	p := registryPathFrom(req)
	res := tagsResult{name: p.Repo}
	if req.Method != http.MethodGet {
		res.err = errMethodNotAllowed(req.Method)
		return response.Failure(res)
	}
	tags, err := r.storage.Tags(req.Context(), p.Repo)
	if err != nil {
		if errors.Is(err, ErrRepositoryNotFound) {
			res.err = NewError(http.StatusNotFound, ErrCodeNameUnknown, "repository name not known to registry").
				WithDetail(map[string]string{"name": p.Repo})
			return response.Failure(res)
		}
		r.log.Warn("list tags", zap.String("repo", p.Repo), zap.Error(err))
		res.err = errInternal(err)
		return response.Failure(res)
	}
	res.tags = tags
	return response.Success(res)
}

func (r *Registry) manifest(req *http.Request) response.Outcome[manifestResult] {
	p := registryPathFrom(req)
	res := manifestResult{method: req.Method, repo: p.Repo}
	var err *Error
	switch req.Method {
	case http.MethodGet, http.MethodHead:
		res.manifest, err = r.getManifest(req, p)
	case http.MethodPut:
		res.digest, err = r.putManifest(req, p)
	case http.MethodDelete:
		err = r.deleteManifest(req, p)
	default:
		err = errMethodNotAllowed(req.Method)
	}
	if err != nil {
		res.err = err
		return response.Failure(res)
	}
	return response.Success(res)
}

func errManifestUnknown(p *RegistryPath) *Error {
	return NewError(http.StatusNotFound, ErrCodeManifestUnknown, "manifest unknown").
		WithDetail(map[string]string{"name": p.Repo, "reference": p.Reference})
}

func (r *Registry) getManifest(req *http.Request, p *RegistryPath) (*Manifest, *Error) {
	mf, err := r.storage.GetManifest(req.Context(), p.Repo, p.Reference)
	if err != nil {
		if errors.Is(err, ErrManifestNotFound) {
			return nil, errManifestUnknown(p)
		}
		r.log.Warn("get manifest", zap.String("repo", p.Repo), zap.String("reference", p.Reference), zap.Error(err))
		return nil, errInternal(err)
	}
	return mf, nil
}

func (r *Registry) putManifest(req *http.Request, p *RegistryPath) (string, *Error) {
	if err := compress.DecompressRequest(req); err != nil {
		if errors.Is(err, compress.ErrUnsupported) {
			return "", NewError(http.StatusUnsupportedMediaType, ErrCodeUnsupported, err.Error())
		}
		return "", NewError(http.StatusBadRequest, ErrCodeManifestInvalid, "failed to decompress request body")
	}
	defer req.Body.Close()

	data, err := io.ReadAll(io.LimitReader(req.Body, maxManifestSize+1))
	if err != nil {
		return "", NewError(http.StatusBadRequest, ErrCodeManifestInvalid, "failed to read manifest")
	}
	switch {
	case len(data) == 0:
		return "", NewError(http.StatusBadRequest, ErrCodeManifestInvalid, "empty manifest")
	case len(data) > maxManifestSize:
		return "", NewError(http.StatusRequestEntityTooLarge, ErrCodeManifestInvalid,
			fmt.Sprintf("manifest exceeds %d bytes", maxManifestSize))
	}

	mediaType := req.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = ocispec.MediaTypeImageManifest
	}
	dg, err := r.storage.PutManifest(req.Context(), p.Repo, p.Reference, data, mediaType)
	if err != nil {
		if errors.Is(err, ErrDigestMismatch) {
			return "", NewError(http.StatusBadRequest, ErrCodeDigestInvalid, "provided digest did not match uploaded content").
				WithDetail(map[string]string{"reference": p.Reference})
		}
		r.log.Warn("put manifest", zap.String("repo", p.Repo), zap.String("reference", p.Reference), zap.Error(err))
		return "", errInternal(err)
	}
	r.log.Info("manifest stored", zap.String("repo", p.Repo), zap.String("reference", p.Reference), zap.String("digest", dg))
	return dg, nil
}

func (r *Registry) deleteManifest(req *http.Request, p *RegistryPath) *Error {
	if err := r.storage.DeleteManifest(req.Context(), p.Repo, p.Reference); err != nil {
		if errors.Is(err, ErrManifestNotFound) {
			return errManifestUnknown(p)
		}
		r.log.Warn("delete manifest", zap.String("repo", p.Repo), zap.String("reference", p.Reference), zap.Error(err))
		return errInternal(err)
	}
	return nil
}
