// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import "net/http"

// validateSession applies the Session Validator rules of spec.md §4.2 to a
// non-initialize GET, DELETE, or POST request. t.mu must be held by the
// caller, since it reads session state directly.
//
// It returns nil when the request may proceed, or the *rpcError to write
// back to the client otherwise.
func (t *Transport) validateSession(r *http.Request) *rpcError {
	if !t.stateful() {
		return nil
	}
	if !t.initialized {
		return newRPCError(http.StatusBadRequest, codeTransportError, "Server not initialized", nil)
	}
	got := r.Header.Get("Mcp-Session-Id")
	if got == "" {
		return newRPCError(http.StatusBadRequest, codeTransportError, "Mcp-Session-Id header is required", nil)
	}
	if got != t.sessionID {
		return newRPCError(http.StatusNotFound, codeSessionNotFound, "Session not found", nil)
	}
	return nil
}
