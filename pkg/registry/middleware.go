// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"tailscale.com/syncs"
)

// sweepInterval is how often idle limiters are dropped.
const sweepInterval = time.Minute

// rateLimiter keeps a token bucket per client IP. Buckets that have refilled
// completely are dropped on the next sweep since a fresh one is identical.
type rateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	lastSweep atomic.Int64 // unix nanos
	limiters  syncs.Map[string, *rate.Limiter]
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	l := &rateLimiter{
		limit: rate.Limit(rps),
		burst: burst,
		now:   time.Now,
	}
	l.lastSweep.Store(l.now().UnixNano())
	return l
}

func (l *rateLimiter) allow(req *http.Request) bool {
	now := l.now()
	l.maybeSweep(now)
	lim, _ := l.limiters.LoadOrInit(clientIP(req), func() *rate.Limiter {
		return rate.NewLimiter(l.limit, l.burst)
	})
	return lim.AllowN(now, 1)
}

func (l *rateLimiter) maybeSweep(now time.Time) {
	last := l.lastSweep.Load()
	if now.UnixNano()-last < int64(sweepInterval) {
		return
	}
	if !l.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	l.limiters.WithLock(func(m map[string]*rate.Limiter) {
		for ip, lim := range m {
			if lim.TokensAt(now) >= float64(l.burst) {
				delete(m, ip)
			}
		}
	})
}

func clientIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
