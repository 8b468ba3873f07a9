// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transport implements the server side of the MCP Streamable HTTP
// transport: a single HTTP endpoint that multiplexes POST (client-to-server
// messages), GET (a server-initiated push stream), and DELETE (session
// teardown), correlating in-flight JSON-RPC requests with the SSE streams
// or pending JSON responses that must eventually carry their replies.
//
// A Transport owns exactly one logical session. Callers that multiplex many
// sessions behind one HTTP server, as the SDK's StreamableHTTPHandler does,
// keep a map from Mcp-Session-Id to *Transport and dispatch ServeHTTP calls
// into it.
package transport
