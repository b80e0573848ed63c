// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package response turns registry endpoint results into HTTP responses.
//
// An endpoint returns an [Outcome] built with [Success] or [Failure]. The
// value inside implements [Responder], which knows how to render itself on
// either branch. [Resolve] picks the branch, builds the base [Response] and
// stamps it with the Docker-Distribution-API-Version header, so no endpoint
// can forget it.
//
// There are two kinds of failure:
//
//   - A domain failure is an expected error outcome (unknown manifest, bad
//     name, rate limited). It is built with [Failure] and rendered like any
//     other response, header included.
//   - A dispatch failure happens when a Responder cannot build its response at
//     all. [Resolve] returns a [*DispatchError] and [Handle] writes only the
//     bare status code.
//
// [Response] is a plain value so results can be resolved and inspected in
// tests without a running server.
package response
