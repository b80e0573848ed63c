// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yeetrun/dockyard/pkg/response"
)

// Error codes defined by the OCI Distribution Specification.
const (
	// ErrCodeDigestInvalid indicates provided digest did not match uploaded content
	ErrCodeDigestInvalid = "DIGEST_INVALID"
	// ErrCodeManifestInvalid indicates manifest is invalid
	ErrCodeManifestInvalid = "MANIFEST_INVALID"
	// ErrCodeManifestUnknown indicates manifest is unknown
	ErrCodeManifestUnknown = "MANIFEST_UNKNOWN"
	// ErrCodeNameInvalid indicates invalid repository name
	ErrCodeNameInvalid = "NAME_INVALID"
	// ErrCodeNameUnknown indicates repository name not known
	ErrCodeNameUnknown = "NAME_UNKNOWN"
	// ErrCodeTagInvalid indicates the manifest reference is not a valid tag or digest
	ErrCodeTagInvalid = "TAG_INVALID"
	// ErrCodeDenied indicates requested access denied
	ErrCodeDenied = "DENIED"
	// ErrCodeUnsupported indicates operation is unsupported
	ErrCodeUnsupported = "UNSUPPORTED"
	// ErrCodeTooManyRequests indicates too many requests
	ErrCodeTooManyRequests = "TOOMANYREQUESTS"
	// ErrCodeUnknown indicates an unexpected storage or server error
	ErrCodeUnknown = "UNKNOWN"
)

// ErrorDescriptor is a single entry of an OCI error response.
type ErrorDescriptor struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  any    `json:"detail,omitempty"`
}

// ErrorResponse represents the OCI-compliant error response format.
type ErrorResponse struct {
	Errors []ErrorDescriptor `json:"errors"`
}

// Error is a registry error together with the HTTP status it is served with.
type Error struct {
	Status     int
	Descriptor ErrorDescriptor
}

// NewError creates a new registry error.
func NewError(status int, code, message string) *Error {
	return &Error{
		Status: status,
		Descriptor: ErrorDescriptor{
			Code:    code,
			Message: message,
		},
	}
}

// WithDetail returns a copy of e with detail attached.
func (e *Error) WithDetail(detail any) *Error {
	c := *e
	c.Descriptor.Detail = detail
	return &c
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Descriptor.Code, e.Descriptor.Message)
}

// Response renders e as an OCI error body.
func (e *Error) Response() (*response.Response, error) {
	return response.JSON(e.Status, ErrorResponse{
		Errors: []ErrorDescriptor{e.Descriptor},
	})
}

var errMissingError = errors.New("failure outcome carries no registry error")

// errorResponse renders err, treating a missing error as a dispatch failure.
func errorResponse(err *Error) (*response.Response, error) {
	if err == nil {
		return nil, response.NewDispatchError(http.StatusInternalServerError, errMissingError)
	}
	return err.Response()
}

func errMethodNotAllowed(method string) *Error {
	return NewError(http.StatusMethodNotAllowed, ErrCodeUnsupported, "method not allowed").
		WithDetail(map[string]string{"method": method})
}

func errInternal(err error) *Error {
	return NewError(http.StatusInternalServerError, ErrCodeUnknown, err.Error())
}

var (
	errReadOnly        = NewError(http.StatusMethodNotAllowed, ErrCodeDenied, "registry is read-only")
	errTooManyRequests = NewError(http.StatusTooManyRequests, ErrCodeTooManyRequests, "too many requests")
	errBlobUnsupported = NewError(http.StatusMethodNotAllowed, ErrCodeUnsupported, "blob operations are not supported")
	errNotFound        = NewError(http.StatusNotFound, ErrCodeNameInvalid, "invalid registry path")
)
