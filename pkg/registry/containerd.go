// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/content"
	"github.com/containerd/containerd/images"
	"github.com/containerd/errdefs"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (
	labelContentType = "containerd.io/content/type"
	labelGCRoot      = "containerd.io/gc.root"
)

// ContainerdStorage implements Storage on top of containerd's image and
// content stores. Manifests pushed by tag are registered as images named
// <prefix>/<repo>:<tag> so they show up in `ctr images list`. Manifests
// pushed by digest are stored as content and marked as gc roots.
//
// Digest references are content addressed and not scoped to a repository.
type ContainerdStorage struct {
	client *containerd.Client // nil in tests

	images    images.Store
	content   containerdContentStore
	prefix    string
	withLease func(context.Context) (context.Context, func(context.Context) error, error)
}

// containerdContentStore is the subset of content.Store used for manifests.
type containerdContentStore interface {
	content.Provider
	content.Ingester
	Info(ctx context.Context, dg digest.Digest) (content.Info, error)
	Update(ctx context.Context, info content.Info, fieldpaths ...string) (content.Info, error)
	Delete(ctx context.Context, dg digest.Digest) error
}

var _ Storage = (*ContainerdStorage)(nil)

// NewContainerdStorage connects to the containerd socket and stores images
// in namespace. prefix is prepended to every image name.
func NewContainerdStorage(socket, namespace, prefix string) (*ContainerdStorage, error) {
	client, err := containerd.New(socket, containerd.WithDefaultNamespace(namespace))
	if err != nil {
		return nil, fmt.Errorf("create containerd client: %w", err)
	}
	s := newContainerdStorage(client.ImageService(), client.ContentStore(), prefix)
	s.client = client
	s.withLease = func(ctx context.Context) (context.Context, func(context.Context) error, error) {
		return client.WithLease(ctx)
	}
	return s, nil
}

func newContainerdStorage(is images.Store, cs containerdContentStore, prefix string) *ContainerdStorage {
	return &ContainerdStorage{
		images:  is,
		content: cs,
		prefix:  strings.Trim(prefix, "/"),
	}
}

// Close closes the containerd client connection.
func (s *ContainerdStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *ContainerdStorage) imageRepo(repo string) string {
	if s.prefix == "" {
		return repo
	}
	return s.prefix + "/" + repo
}

func (s *ContainerdStorage) imageName(repo, tag string) string {
	return s.imageRepo(repo) + ":" + tag
}

// splitImageName reverses imageName. ok is false for images outside prefix.
func (s *ContainerdStorage) splitImageName(name string) (repo, tag string, ok bool) {
	if s.prefix != "" {
		name, ok = strings.CutPrefix(name, s.prefix+"/")
		if !ok {
			return "", "", false
		}
	}
	// Repository names never contain ':', but registry hosts in an
	// unprefixed name may.
	i := strings.LastIndex(name, ":")
	if i <= strings.LastIndex(name, "/") {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

// Repositories returns every repository with at least one tagged image.
func (s *ContainerdStorage) Repositories(ctx context.Context) ([]string, error) {
	imgs, err := s.images.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	var repos []string
	for _, img := range imgs {
		if repo, _, ok := s.splitImageName(img.Name); ok {
			repos = append(repos, repo)
		}
	}
	slices.Sort(repos)
	return slices.Compact(repos), nil
}

// Tags returns the tags of repo.
func (s *ContainerdStorage) Tags(ctx context.Context, repo string) ([]string, error) {
	imgs, err := s.images.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	var tags []string
	for _, img := range imgs {
		if r, tag, ok := s.splitImageName(img.Name); ok && r == repo {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return nil, ErrRepositoryNotFound
	}
	slices.Sort(tags)
	return tags, nil
}

func (s *ContainerdStorage) descriptor(ctx context.Context, repo, reference string) (ocispec.Descriptor, error) {
	if isDigest(reference) {
		dg := digest.Digest(reference)
		info, err := s.content.Info(ctx, dg)
		if err != nil {
			return ocispec.Descriptor{}, err
		}
		return ocispec.Descriptor{
			MediaType: info.Labels[labelContentType],
			Digest:    dg,
			Size:      info.Size,
		}, nil
	}
	img, err := s.images.Get(ctx, s.imageName(repo, reference))
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	return img.Target, nil
}

// GetManifest retrieves a manifest from containerd.
func (s *ContainerdStorage) GetManifest(ctx context.Context, repo, reference string) (*Manifest, error) {
	desc, err := s.descriptor(ctx, repo, reference)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, ErrManifestNotFound
		}
		return nil, fmt.Errorf("resolve manifest %s:%s: %w", repo, reference, err)
	}
	blob, err := content.ReadBlob(ctx, s.content, desc)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, ErrManifestNotFound
		}
		return nil, fmt.Errorf("read manifest blob '%s' from containerd: %w", desc.Digest, err)
	}
	return &Manifest{
		MediaType: desc.MediaType,
		Digest:    desc.Digest.String(),
		Size:      int64(len(blob)),
		Data:      blob,
	}, nil
}

// PutManifest writes the manifest into the content store and, for tag
// references, registers the image.
func (s *ContainerdStorage) PutManifest(ctx context.Context, repo, reference string, data []byte, mediaType string) (_ string, err error) {
	desc := ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    digest.FromBytes(data),
		Size:      int64(len(data)),
	}
	if isDigest(reference) && reference != desc.Digest.String() {
		return "", fmt.Errorf("%w: %s != %s", ErrDigestMismatch, desc.Digest, reference)
	}

	if s.withLease != nil {
		var release func(context.Context) error
		ctx, release, err = s.withLease(ctx)
		if err != nil {
			return "", fmt.Errorf("create lease: %w", err)
		}
		defer func() {
			// The image or gc root holds the content once the lease is gone.
			if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
				err = errors.Join(err, fmt.Errorf("release lease: %w", rerr))
			}
		}()
	}

	labels := map[string]string{labelContentType: mediaType}
	ref := "manifest-" + desc.Digest.Encoded()
	if err := content.WriteBlob(ctx, s.content, ref, bytes.NewReader(data), desc, content.WithLabels(labels)); err != nil {
		return "", fmt.Errorf("write manifest blob: %w", err)
	}
	if isDigest(reference) {
		// WriteBlob skips labels when the content already exists.
		if err := s.markContentRoot(ctx, desc.Digest); err != nil {
			return "", err
		}
	}

	if !isDigest(reference) {
		img := images.Image{
			Name:   s.imageName(repo, reference),
			Target: desc,
		}
		if _, err := s.images.Create(ctx, img); err != nil {
			if !errdefs.IsAlreadyExists(err) {
				return "", fmt.Errorf("create image: %w", err)
			}
			if _, err := s.images.Update(ctx, img, "target"); err != nil {
				return "", fmt.Errorf("update image: %w", err)
			}
		}
	}
	return desc.Digest.String(), nil
}

func (s *ContainerdStorage) markContentRoot(ctx context.Context, dg digest.Digest) error {
	labels := map[string]string{
		labelGCRoot: time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := s.content.Update(ctx, content.Info{Digest: dg, Labels: labels}, "labels."+labelGCRoot); err != nil {
		return fmt.Errorf("mark content root %s: %w", dg, err)
	}
	return nil
}

// DeleteManifest removes a tag's image or a digest's content.
func (s *ContainerdStorage) DeleteManifest(ctx context.Context, repo, reference string) error {
	var err error
	if isDigest(reference) {
		err = s.content.Delete(ctx, digest.Digest(reference))
	} else {
		err = s.images.Delete(ctx, s.imageName(repo, reference))
	}
	if err != nil {
		if errdefs.IsNotFound(err) {
			return ErrManifestNotFound
		}
		return fmt.Errorf("delete manifest from containerd: %w", err)
	}
	return nil
}
