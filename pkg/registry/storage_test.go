// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opencontainers/go-digest"
)

func TestFilesystemStorageManifests(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewFilesystemStorage(root)
	if err != nil {
		t.Fatalf("NewFilesystemStorage: %v", err)
	}

	dg, err := s.PutManifest(ctx, "team/app", "v1", []byte(testManifest), "application/vnd.oci.image.manifest.v1+json")
	if err != nil {
		t.Fatalf("PutManifest: %v", err)
	}
	if want := digest.FromString(testManifest).String(); dg != want {
		t.Fatalf("digest = %q, want %q", dg, want)
	}

	for _, ref := range []string{"v1", dg} {
		mf, err := s.GetManifest(ctx, "team/app", ref)
		if err != nil {
			t.Fatalf("GetManifest(%q): %v", ref, err)
		}
		want := &Manifest{
			MediaType: "application/vnd.oci.image.manifest.v1+json",
			Digest:    dg,
			Size:      int64(len(testManifest)),
			Data:      []byte(testManifest),
		}
		if diff := cmp.Diff(want, mf); diff != "" {
			t.Fatalf("GetManifest(%q) mismatch (-want +got):\n%s", ref, diff)
		}
	}

	entries, err := os.ReadDir(filepath.Join(root, "manifests", "team", "app"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tempPrefix) {
			t.Fatalf("temporary file %q left behind", e.Name())
		}
	}

	if err := s.DeleteManifest(ctx, "team/app", "v1"); err != nil {
		t.Fatalf("DeleteManifest: %v", err)
	}
	if err := s.DeleteManifest(ctx, "team/app", "v1"); !errors.Is(err, ErrManifestNotFound) {
		t.Fatalf("second DeleteManifest = %v, want %v", err, ErrManifestNotFound)
	}
	if _, err := s.GetManifest(ctx, "team/app", "v1"); !errors.Is(err, ErrManifestNotFound) {
		t.Fatalf("GetManifest after delete = %v, want %v", err, ErrManifestNotFound)
	}
}

func TestFilesystemStorageTagLooksLikeMetadata(t *testing.T) {
	ctx := context.Background()
	s, err := NewFilesystemStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStorage: %v", err)
	}
	const ociType = "application/vnd.oci.image.manifest.v1+json"
	if _, err := s.PutManifest(ctx, "app", "v1", []byte(testManifest), ociType); err != nil {
		t.Fatalf("PutManifest(v1): %v", err)
	}
	if _, err := s.PutManifest(ctx, "app", "v1.mediatype", []byte(`{"x":1}`), "application/json"); err != nil {
		t.Fatalf("PutManifest(v1.mediatype): %v", err)
	}

	mf, err := s.GetManifest(ctx, "app", "v1")
	if err != nil {
		t.Fatalf("GetManifest(v1): %v", err)
	}
	if mf.MediaType != ociType || string(mf.Data) != testManifest {
		t.Fatalf("GetManifest(v1) = %q %q, want %q %q", mf.MediaType, mf.Data, ociType, testManifest)
	}
	tags, err := s.Tags(ctx, "app")
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if diff := cmp.Diff([]string{"v1", "v1.mediatype"}, tags); diff != "" {
		t.Fatalf("Tags mismatch (-want +got):\n%s", diff)
	}
}

func TestFilesystemStorageDigestMismatch(t *testing.T) {
	s, err := NewFilesystemStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStorage: %v", err)
	}
	ref := digest.FromString("other").String()
	_, err = s.PutManifest(context.Background(), "app", ref, []byte(testManifest), "application/json")
	if !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("PutManifest = %v, want %v", err, ErrDigestMismatch)
	}
}

func TestFilesystemStorageListing(t *testing.T) {
	ctx := context.Background()
	s, err := NewFilesystemStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStorage: %v", err)
	}

	repos, err := s.Repositories(ctx)
	if err != nil {
		t.Fatalf("Repositories: %v", err)
	}
	if len(repos) != 0 {
		t.Fatalf("Repositories = %q, want none", repos)
	}

	putManifest(t, s, "zeta", "b", testManifest)
	putManifest(t, s, "zeta", "a", testManifest)
	putManifest(t, s, "alpha/one", "latest", testManifest)
	putManifest(t, s, "alpha", "latest", `{}`)

	repos, err = s.Repositories(ctx)
	if err != nil {
		t.Fatalf("Repositories: %v", err)
	}
	if diff := cmp.Diff([]string{"alpha", "alpha/one", "zeta"}, repos); diff != "" {
		t.Fatalf("Repositories mismatch (-want +got):\n%s", diff)
	}

	tags, err := s.Tags(ctx, "zeta")
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, tags); diff != "" {
		t.Fatalf("Tags mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.Tags(ctx, "missing"); !errors.Is(err, ErrRepositoryNotFound) {
		t.Fatalf("Tags(missing) = %v, want %v", err, ErrRepositoryNotFound)
	}
}

func TestParseRegistryPath(t *testing.T) {
	tests := []struct {
		path    string
		want    *RegistryPath
		wantErr bool
	}{
		{path: "/v2/alpine/manifests/latest", want: &RegistryPath{Type: PathTypeManifest, Repo: "alpine", Reference: "latest"}},
		{path: "/v2/team/app/manifests/sha256:abc", want: &RegistryPath{Type: PathTypeManifest, Repo: "team/app", Reference: "sha256:abc"}},
		{path: "/v2/team/app/tags/list", want: &RegistryPath{Type: PathTypeTagsList, Repo: "team/app"}},
		{path: "/v2/app/blobs/sha256:abc", want: &RegistryPath{Type: PathTypeBlob, Repo: "app", Reference: "sha256:abc"}},
		{path: "/v2/app/blobs/uploads/", want: &RegistryPath{Type: PathTypeBlobUpload, Repo: "app"}},
		{path: "/v2/app/blobs/uploads/1234", want: &RegistryPath{Type: PathTypeBlobUpload, Repo: "app", Reference: "1234"}},
		{path: "/v2/app/manifests/a/b", wantErr: true},
		{path: "/v2/app/tags/other", wantErr: true},
		{path: "/v2/manifests/latest", wantErr: true},
		{path: "/v1/app/manifests/latest", wantErr: true},
		{path: "/v2/app", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ParseRegistryPath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRegistryPath(%q) = %+v, want error", tt.path, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRegistryPath(%q): %v", tt.path, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ParseRegistryPath(%q) mismatch (-want +got):\n%s", tt.path, diff)
			}
		})
	}
}

func TestValidNames(t *testing.T) {
	names := map[string]bool{
		"alpine":            true,
		"library/alpine":    true,
		"my-app_v2/sub.dir": true,
		"Alpine":            false,
		"-alpine":           false,
		"alpine/":           false,

		strings.Repeat("a", 256): false,
	}
	for name, want := range names {
		if got := ValidRepositoryName(name); got != want {
			t.Errorf("ValidRepositoryName(%q) = %v, want %v", name, got, want)
		}
	}

	refs := map[string]bool{
		"latest":                           true,
		"v1.2.3":                           true,
		"_x":                               true,
		".hidden":                          false,
		"sha256:abc":                       false,
		digest.FromString("x").String():    true,
		strings.Repeat("t", 129):           false,
	}
	for ref, want := range refs {
		if got := ValidReference(ref); got != want {
			t.Errorf("ValidReference(%q) = %v, want %v", ref, got, want)
		}
	}
}
