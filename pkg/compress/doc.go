// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compress negotiates and applies HTTP content codings for registry
// bodies.
//
// Registry responses are built in memory before they are written, so the
// package works on byte slices:
//
//	enc := compress.SelectEncoding(r.Header.Get("Accept-Encoding"))
//	if enc != compress.Identity {
//	    body, err = compress.Encode(body, enc)
//	}
//
// Request bodies are decoded in place with DecompressRequest.
//
// When quality values tie the preference order is zstd > gzip > deflate.
package compress
