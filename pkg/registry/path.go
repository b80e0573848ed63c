// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/opencontainers/go-digest"
)

// PathType represents the type of registry operation
type PathType int

const (
	PathTypeUnknown PathType = iota
	PathTypeManifest
	PathTypeBlob
	PathTypeBlobUpload
	PathTypeTagsList
)

func (pt PathType) String() string {
	switch pt {
	case PathTypeManifest:
		return "manifest"
	case PathTypeBlob:
		return "blob"
	case PathTypeBlobUpload:
		return "blob_upload"
	case PathTypeTagsList:
		return "tags_list"
	default:
		return "unknown"
	}
}

// RegistryPath holds the parsed components of a registry path
type RegistryPath struct {
	Type      PathType
	Repo      string
	Reference string // manifests: tag or digest; blobs: digest; uploads: uuid
}

var (
	nameComponent = `[a-z0-9]+(?:(?:\.|_|__|-+)[a-z0-9]+)*`
	nameRE        = regexp.MustCompile(`^` + nameComponent + `(?:/` + nameComponent + `)*$`)
	tagRE         = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9._-]{0,127}$`)
)

// ValidRepositoryName reports whether name is a valid repository name.
func ValidRepositoryName(name string) bool {
	return len(name) <= 255 && nameRE.MatchString(name)
}

// ValidReference reports whether ref is a valid tag or a valid digest.
func ValidReference(ref string) bool {
	if isDigest(ref) {
		return digest.Digest(ref).Validate() == nil
	}
	return tagRE.MatchString(ref)
}

func isDigest(reference string) bool {
	return strings.Contains(reference, ":")
}

// ParseRegistryPath parses a Docker Registry V2 API path. It does not
// validate the repository name or reference; see ValidRepositoryName and
// ValidReference.
func ParseRegistryPath(p string) (*RegistryPath, error) {
	p = strings.Trim(p, "/")
	parts := strings.Split(p, "/")

	if len(parts) < 2 || parts[0] != "v2" {
		return nil, fmt.Errorf("path must start with /v2/")
	}
	if len(parts) < 3 {
		return nil, fmt.Errorf("path too short")
	}

	// Repo names may contain slashes, so the first operation keyword ends it.
	var opIdx int
	var op string
	for i := 1; i < len(parts); i++ {
		if parts[i] == "manifests" || parts[i] == "blobs" || parts[i] == "tags" {
			opIdx = i
			op = parts[i]
			break
		}
	}
	if op == "" {
		return nil, fmt.Errorf("no valid operation found (manifests/blobs/tags)")
	}

	repo := strings.Join(parts[1:opIdx], "/")
	if repo == "" {
		return nil, fmt.Errorf("empty repository name")
	}
	result := &RegistryPath{Repo: repo}

	switch op {
	case "manifests":
		// /v2/<repo>/manifests/<reference>
		if len(parts) != opIdx+2 || parts[opIdx+1] == "" {
			return nil, fmt.Errorf("manifests path must be manifests/<reference>")
		}
		result.Type = PathTypeManifest
		result.Reference = parts[opIdx+1]

	case "blobs":
		// /v2/<repo>/blobs/<digest>
		// /v2/<repo>/blobs/uploads/[<uuid>]
		if len(parts) <= opIdx+1 {
			return nil, fmt.Errorf("blobs path missing subpath")
		}
		if parts[opIdx+1] == "uploads" {
			result.Type = PathTypeBlobUpload
			if len(parts) > opIdx+2 {
				result.Reference = parts[opIdx+2]
			}
		} else {
			result.Type = PathTypeBlob
			result.Reference = parts[opIdx+1]
		}

	case "tags":
		// /v2/<repo>/tags/list
		if len(parts) != opIdx+2 || parts[opIdx+1] != "list" {
			return nil, fmt.Errorf("tags path must be tags/list")
		}
		result.Type = PathTypeTagsList
	}

	return result, nil
}

type registryPathKey struct{}

func withRegistryPath(r *http.Request, p *RegistryPath) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), registryPathKey{}, p))
}

func registryPathFrom(r *http.Request) *RegistryPath {
	p, _ := r.Context().Value(registryPathKey{}).(*RegistryPath)
	if p == nil {
		return &RegistryPath{}
	}
	return p
}

// BasePath returns the base path for registry URLs.
func BasePath() string {
	return "/v2"
}

// ManifestPath returns the path for a manifest.
func ManifestPath(repo, reference string) string {
	return path.Join(BasePath(), repo, "manifests", reference)
}

// CatalogPath returns the path of the repository catalog.
func CatalogPath() string {
	return path.Join(BasePath(), "_catalog")
}
