// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package govars provides a mechanism to configure compatibility and
// diagnostic parameters via the MCPSTREAM_DEBUG environment variable,
// following the same comma-separated key=value convention as the SDK's
// MCPGODEBUG variable.
//
// For example:
//
//	MCPSTREAM_DEBUG=gaterejectlog=1
package govars

import (
	"fmt"
	"os"
	"strings"
)

const envKey = "MCPSTREAM_DEBUG"

var params map[string]string

func init() {
	var err error
	params, err = parse(os.Getenv(envKey))
	if err != nil {
		panic(err)
	}
}

// Value returns the value of the named diagnostic parameter, or "" if it
// was not set.
func Value(key string) string {
	return params[key]
}

// Bool reports whether the named parameter is set to a truthy value ("1",
// "true", or "yes").
func Bool(key string) bool {
	switch params[key] {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func parse(envValue string) (map[string]string, error) {
	if envValue == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(envValue, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%s: invalid format: %q", envKey, part)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}
