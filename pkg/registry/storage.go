// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
)

var (
	// ErrManifestNotFound indicates the manifest was not found
	ErrManifestNotFound = errors.New("manifest not found")
	// ErrRepositoryNotFound indicates the repository has no manifests
	ErrRepositoryNotFound = errors.New("repository not found")
	// ErrDigestMismatch indicates the digest does not match the content
	ErrDigestMismatch = errors.New("digest mismatch")
)

// Manifest is a stored manifest and its metadata.
type Manifest struct {
	MediaType string
	Digest    string
	Size      int64
	Data      []byte
}

// Storage is the registry's view of its manifest store.
type Storage interface {
	// Repositories returns all repository names in lexical order.
	Repositories(ctx context.Context) ([]string, error)
	// Tags returns the tags of repo in lexical order.
	Tags(ctx context.Context, repo string) ([]string, error)

	// GetManifest retrieves a manifest for a repository and reference
	GetManifest(ctx context.Context, repo, reference string) (*Manifest, error)
	// PutManifest stores a manifest for a repository and reference
	PutManifest(ctx context.Context, repo, reference string, data []byte, mediaType string) (digest string, err error)
	// DeleteManifest removes a manifest
	DeleteManifest(ctx context.Context, repo, reference string) error
}

// FilesystemStorage implements Storage using the filesystem.
//
// Manifests live at <root>/manifests/<repo>/<reference> and their media types
// at <root>/mediatypes/<repo>/<reference>. Files are written to a temporary
// name and renamed into place.
type FilesystemStorage struct {
	rootDir string
}

var _ Storage = (*FilesystemStorage)(nil)

const tempPrefix = ".tmp-"

// NewFilesystemStorage creates a new filesystem-based storage.
func NewFilesystemStorage(rootDir string) (*FilesystemStorage, error) {
	for _, dir := range []string{"manifests", "mediatypes"} {
		if err := os.MkdirAll(filepath.Join(rootDir, dir), 0755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", dir, err)
		}
	}
	return &FilesystemStorage{
		rootDir: rootDir,
	}, nil
}

func (s *FilesystemStorage) manifestsDir() string {
	return filepath.Join(s.rootDir, "manifests")
}

func (s *FilesystemStorage) manifestPath(repo, reference string) string {
	return filepath.Join(s.manifestsDir(), filepath.FromSlash(repo), reference)
}

func (s *FilesystemStorage) mediaTypePath(repo, reference string) string {
	return filepath.Join(s.rootDir, "mediatypes", filepath.FromSlash(repo), reference)
}

// isManifestFile reports whether a directory entry name holds manifest data.
func isManifestFile(name string) bool {
	return !strings.HasPrefix(name, tempPrefix)
}

// Repositories walks the manifests directory and returns every directory
// that holds at least one manifest.
func (s *FilesystemStorage) Repositories(ctx context.Context) ([]string, error) {
	root := s.manifestsDir()
	var repos []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !isManifestFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, filepath.Dir(p))
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		repo := filepath.ToSlash(rel)
		if n := len(repos); n == 0 || repos[n-1] != repo {
			repos = append(repos, repo)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk manifests: %w", err)
	}
	slices.Sort(repos)
	return slices.Compact(repos), nil
}

// Tags returns the tag references stored for repo.
func (s *FilesystemStorage) Tags(ctx context.Context, repo string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.manifestsDir(), filepath.FromSlash(repo)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrRepositoryNotFound
		}
		return nil, fmt.Errorf("read repository: %w", err)
	}
	tags := []string{}
	found := false
	for _, e := range entries {
		if e.IsDir() || !isManifestFile(e.Name()) {
			continue
		}
		found = true
		if isDigest(e.Name()) {
			continue
		}
		tags = append(tags, e.Name())
	}
	if !found {
		return nil, ErrRepositoryNotFound
	}
	slices.Sort(tags)
	return tags, nil
}

// GetManifest retrieves a manifest for a repository and reference.
func (s *FilesystemStorage) GetManifest(ctx context.Context, repo, reference string) (*Manifest, error) {
	data, err := os.ReadFile(s.manifestPath(repo, reference))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrManifestNotFound
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	mediaType := ""
	if b, err := os.ReadFile(s.mediaTypePath(repo, reference)); err == nil {
		mediaType = string(b)
	}
	return &Manifest{
		MediaType: mediaType,
		Digest:    digest.FromBytes(data).String(),
		Size:      int64(len(data)),
		Data:      data,
	}, nil
}

// PutManifest stores a manifest for a repository and reference. A manifest
// pushed by tag is also stored under its digest.
func (s *FilesystemStorage) PutManifest(ctx context.Context, repo, reference string, data []byte, mediaType string) (string, error) {
	if mediaType == "" {
		return "", fmt.Errorf("media type is empty")
	}
	dg := digest.FromBytes(data)
	if isDigest(reference) && reference != dg.String() {
		return "", fmt.Errorf("%w: %s != %s", ErrDigestMismatch, dg, reference)
	}

	refs := []string{reference}
	if !isDigest(reference) {
		refs = append(refs, dg.String())
	}
	for _, ref := range refs {
		if err := writeFileAtomic(s.mediaTypePath(repo, ref), []byte(mediaType)); err != nil {
			return "", fmt.Errorf("write media type: %w", err)
		}
		if err := writeFileAtomic(s.manifestPath(repo, ref), data); err != nil {
			return "", fmt.Errorf("write manifest: %w", err)
		}
	}
	return dg.String(), nil
}

// DeleteManifest removes a manifest.
func (s *FilesystemStorage) DeleteManifest(ctx context.Context, repo, reference string) error {
	if err := os.Remove(s.manifestPath(repo, reference)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrManifestNotFound
		}
		return fmt.Errorf("delete manifest: %w", err)
	}
	if err := os.Remove(s.mediaTypePath(repo, reference)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete media type: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := filepath.Join(filepath.Dir(path), tempPrefix+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
