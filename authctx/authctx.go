// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package authctx attaches host-verified authentication info to a request
// context, for the streamable transport to pick up as the opaque AuthInfo
// accompanying OnMessage dispatch (spec.md §1, §6.4). The transport core
// only reads the attached value back with FromContext and never inspects
// AuthInfo's dynamic type; authctx exists for hosts that want a ready-made
// bearer-token middleware,
// mirroring the verifyToken-then-attach pattern of the SDK's examples/auth
// server, minus any particular token format or OAuth flow.
package authctx

import (
	"context"
	"net/http"
	"strings"
)

type contextKey struct{}

// Verifier validates a bearer token extracted from an incoming request and
// returns the opaque value to attach to the request context. Returning an
// error causes the middleware to reject the request with 401.
type Verifier func(ctx context.Context, token string) (any, error)

// FromBearer returns middleware that extracts the `Authorization: Bearer
// <token>` header, calls verify, and stores the resulting value on the
// request context for downstream handlers (typically a transport.Transport)
// to retrieve with FromContext.
//
// Requests without an Authorization header are passed through unmodified;
// it is the wrapped handler's responsibility to decide whether anonymous
// access is allowed. This mirrors the streamable transport's own stance
// that authentication is the host's concern, not the core's.
func FromBearer(verify Verifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			http.Error(w, "malformed Authorization header", http.StatusUnauthorized)
			return
		}
		info, err := verify(r.Context(), token)
		if err != nil {
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), contextKey{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the value attached by FromBearer, if any.
func FromContext(ctx context.Context) any {
	return ctx.Value(contextKey{})
}
