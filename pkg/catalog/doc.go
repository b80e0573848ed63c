// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package catalog is a client for a registry's repository catalog
// (GET /v2/_catalog).
//
// A Client issues a fresh request on every call. There is no retry, no
// caching and no pagination. Fetch runs the request in the background and
// hands the result to a callback; the returned Task can cancel it before
// delivery.
package catalog
