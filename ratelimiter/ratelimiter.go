// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package ratelimiter provides per-remote-address request throttling for
// the streamable transport's HTTP endpoint, grounded on the token-bucket
// approach the SDK's examples/rate-limiting demonstrates with
// golang.org/x/time/rate. It lives outside the transport core: rate
// limiting is host policy, not a protocol requirement (spec.md §1
// Non-goals excludes transport-level retries and treats higher-layer
// concerns like this as the caller's job).
package ratelimiter

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// Middleware rate-limits requests per remote IP before they reach next.
type Middleware struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New returns a Middleware allowing rps requests per second, per remote
// address, with the given burst size.
func New(rps float64, burst int) *Middleware {
	return &Middleware{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wrap returns next wrapped with rate limiting. A request that exceeds the
// limit receives the generic transport error envelope from spec.md §6.3
// (code -32000) with HTTP 429, matching the status/code pairing the core
// transport uses for every other protocol-gate rejection.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.allow(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprintf(w, `{"jsonrpc":"2.0","error":{"code":-32000,"message":"rate limit exceeded"},"id":null}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) allow(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return m.limiterFor(host).Allow()
}

func (m *Middleware) limiterFor(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[key]
	if !ok {
		l = rate.NewLimiter(m.rps, m.burst)
		m.limiters[key] = l
	}
	return l
}
