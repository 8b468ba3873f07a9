// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc2

import "errors"

// Sentinel decode errors, wrapped with context by DecodeMessage/DecodeBatch
// so that callers can tell them apart with errors.Is. The transport's POST
// handler does not distinguish them: every decode failure is answered with
// the -32700 parse-error envelope.
var (
	ErrParse          = errors.New("parse error")
	ErrInvalidRequest = errors.New("invalid request")
)
