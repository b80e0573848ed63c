// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package registry serves the read side of the Docker Registry HTTP API V2.
//
// Every route returns a [response.Outcome] and is written through
// [response.Handle], so every response the registry produces carries the
// Docker-Distribution-API-Version header. The only exception is a dispatch
// failure, which is a bare status code.
//
// Supported routes:
//
//	GET         /v2/                               API version check
//	GET         /v2/_catalog                       repository listing
//	GET         /v2/<name>/tags/list               tag listing
//	GET, HEAD   /v2/<name>/manifests/<reference>   manifest fetch
//	PUT, DELETE /v2/<name>/manifests/<reference>   manifest store/remove
//
// Blob transfer is not implemented; blob routes answer UNSUPPORTED. Manifests
// are stored as opaque bytes under the Content-Type they were pushed with.
// Catalog and tag listings are not paginated and ignore n and last.
//
// Manifest GET responses are compressed when the client sends Accept-Encoding
// (zstd, gzip, deflate) and manifest PUT bodies may be sent compressed with
// Content-Encoding.
//
// Errors use the OCI error envelope:
//
//	{"errors":[{"code":"MANIFEST_UNKNOWN","message":"manifest unknown"}]}
//
// Spec: https://github.com/opencontainers/distribution-spec/blob/main/spec.md
package registry
