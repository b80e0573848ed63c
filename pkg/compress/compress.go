// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compress

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Encoding is an HTTP content coding name.
type Encoding string

const (
	Identity Encoding = ""
	Zstd     Encoding = "zstd"
	Gzip     Encoding = "gzip"
	Deflate  Encoding = "deflate"
)

// preference lists the supported encodings, best first.
var preference = []Encoding{Zstd, Gzip, Deflate}

// ErrUnsupported is returned for content codings this package cannot handle.
var ErrUnsupported = errors.New("unsupported content encoding")

// SelectEncoding picks the encoding to use for a response given the
// request's Accept-Encoding header. It returns Identity when nothing
// acceptable is offered.
func SelectEncoding(acceptEncoding string) Encoding {
	if strings.TrimSpace(acceptEncoding) == "" {
		return Identity
	}
	q := make(map[Encoding]float64, len(preference))
	wildcard, hasWildcard := 0.0, false
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		quality := 1.0
		for _, p := range strings.Split(params, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || strings.TrimSpace(k) != "q" {
				continue
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				quality = f
			}
		}
		if name == "*" {
			wildcard, hasWildcard = quality, true
			continue
		}
		q[Encoding(name)] = quality
	}
	if hasWildcard {
		for _, enc := range preference {
			if _, ok := q[enc]; !ok {
				q[enc] = wildcard
			}
		}
	}

	best, bestQ := Identity, 0.0
	for _, enc := range preference {
		if v, ok := q[enc]; ok && v > bestQ {
			best, bestQ = enc, v
		}
	}
	return best
}

// Encode compresses data with enc. Identity returns data unchanged.
func Encode(data []byte, enc Encoding) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch enc {
	case Identity:
		return data, nil
	case Zstd:
		w, err = zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedFastest))
	case Gzip:
		w = gzip.NewWriter(&buf)
	case Deflate:
		w, err = flate.NewWriter(&buf, flate.DefaultCompression)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, enc)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s writer: %w", enc, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("write %s: %w", enc, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close %s writer: %w", enc, err)
	}
	return buf.Bytes(), nil
}

// NewReader returns a reader that decodes r according to enc.
func NewReader(r io.Reader, enc Encoding) (io.ReadCloser, error) {
	switch enc {
	case Identity, "identity":
		return io.NopCloser(r), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case Gzip:
		return gzip.NewReader(r)
	case Deflate:
		return flate.NewReader(r), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, enc)
	}
}

// DecompressRequest replaces r.Body with a decoding reader when the request
// carries a Content-Encoding header. Content-Encoding and Content-Length are
// removed afterwards since they no longer describe the body.
func DecompressRequest(r *http.Request) error {
	enc := Encoding(strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding"))))
	if enc == Identity || enc == "identity" {
		return nil
	}
	rc, err := NewReader(r.Body, enc)
	if err != nil {
		return fmt.Errorf("decompress request body: %w", err)
	}
	orig := r.Body
	r.Body = &closeWrapper{ReadCloser: rc, onClose: orig.Close}
	r.Header.Del("Content-Encoding")
	r.Header.Del("Content-Length")
	r.ContentLength = -1
	return nil
}

type closeWrapper struct {
	io.ReadCloser
	onClose func() error
}

func (cw *closeWrapper) Close() error {
	return errors.Join(cw.ReadCloser.Close(), cw.onClose())
}
