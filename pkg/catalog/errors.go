// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies client errors.
type ErrorKind int

const (
	// KindTransport means no HTTP response was received.
	KindTransport ErrorKind = iota
	// KindStatus means the registry answered with a non-2xx status.
	KindStatus
	// KindDecode means the response body could not be decoded.
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is returned by every Client operation.
type Error struct {
	Op         string
	Kind       ErrorKind
	StatusCode int // set for KindStatus
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindStatus && e.Err != nil:
		return fmt.Sprintf("catalog %s: %s: %v", e.Op, http.StatusText(e.StatusCode), e.Err)
	case e.Kind == KindStatus:
		return fmt.Sprintf("catalog %s: unexpected status %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	default:
		return fmt.Sprintf("catalog %s: %s error: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
