// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsonrpc2 implements the narrow slice of the JSON-RPC 2.0 wire
// format that the streamable HTTP transport needs: message identifiers,
// requests, notifications, responses, and batch framing. It stands in for
// the message schema and predicates that a full MCP library would provide;
// the transport only ever depends on this package, never on any particular
// MCP method set.
package jsonrpc2

import (
	"fmt"

	json "github.com/segmentio/encoding/json"
)

// ID is a JSON-RPC request identifier: a string, a number, or absent
// (the zero ID). Absent IDs mark notifications.
type ID struct {
	value any
}

// StringID creates a string request identifier.
func StringID(s string) ID { return ID{value: s} }

// Int64ID creates a numeric request identifier.
func Int64ID(i int64) ID { return ID{value: i} }

// IsValid reports whether id was explicitly set; the zero ID is invalid
// and marks a notification.
func (id ID) IsValid() bool { return id.value != nil }

// Raw returns the underlying string, int64, or nil.
func (id ID) Raw() any { return id.value }

// String renders the ID for use as a map key; distinct ID values never
// collide because the Go value's dynamic type is encoded alongside it.
func (id ID) String() string {
	switch v := id.value.(type) {
	case nil:
		return ""
	case string:
		return "s:" + v
	case int64:
		return fmt.Sprintf("i:%d", v)
	default:
		return fmt.Sprintf("?:%v", v)
	}
}

func makeID(v any) (ID, error) {
	switch v := v.(type) {
	case nil:
		return ID{}, nil
	case float64:
		return Int64ID(int64(v)), nil
	case string:
		return StringID(v), nil
	}
	return ID{}, fmt.Errorf("%w: invalid id type %T", ErrInvalidRequest, v)
}

// Message is the interface implemented by the two wire message shapes:
// *Request (calls and notifications) and *Response (results and errors).
// The set is closed by the unexported marshal method.
type Message interface {
	marshal() *wireMessage
}

// Request is a JSON-RPC call (ID.IsValid()) or notification (otherwise).
type Request struct {
	ID     ID
	Method string
	Params json.RawMessage
}

// IsCall reports whether the request expects a response.
func (r *Request) IsCall() bool { return r.ID.IsValid() }

func (r *Request) marshal() *wireMessage {
	return &wireMessage{Version: version, ID: r.ID.value, Method: r.Method, Params: r.Params}
}

// Response is a reply to a Request with the same ID.
type Response struct {
	ID     ID
	Result json.RawMessage
	Error  *WireError
}

// IsError reports whether this response carries an error.
func (r *Response) IsError() bool { return r.Error != nil }

func (r *Response) marshal() *wireMessage {
	return &wireMessage{Version: version, ID: r.ID.value, Result: r.Result, Error: r.Error}
}

// WireError is the `error` member of a JSON-RPC response.
type WireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *WireError) Error() string { return fmt.Sprintf("jsonrpc2: code %d: %s", e.Code, e.Message) }

const version = "2.0"

// wireMessage is the on-the-wire union of request and response fields,
// mirroring the JSON-RPC 2.0 object shape.
type wireMessage struct {
	Version string      `json:"jsonrpc"`
	ID      any         `json:"id,omitempty"`
	Method  string      `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *WireError  `json:"error,omitempty"`
}

// EncodeMessage marshals msg to its wire JSON form.
func EncodeMessage(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg.marshal())
	if err != nil {
		return nil, fmt.Errorf("jsonrpc2: encode: %w", err)
	}
	return data, nil
}

// DecodeMessage unmarshals a single JSON-RPC object into a Request or
// Response, validating that it is a well-formed JSON-RPC 2.0 message.
func DecodeMessage(data []byte) (Message, error) {
	var wire wireMessage
	if err := StrictUnmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	id, err := makeID(wire.ID)
	if err != nil {
		return nil, err
	}
	if wire.Method != "" {
		return &Request{ID: id, Method: wire.Method, Params: wire.Params}, nil
	}
	if wire.Result == nil && wire.Error == nil {
		return nil, fmt.Errorf("%w: message has neither method nor result nor error", ErrInvalidRequest)
	}
	return &Response{ID: id, Result: wire.Result, Error: wire.Error}, nil
}

// EncodeBatch marshals msgs as a JSON array of wire messages.
func EncodeBatch(msgs []Message) ([]byte, error) {
	wires := make([]*wireMessage, len(msgs))
	for i, m := range msgs {
		wires[i] = m.marshal()
	}
	data, err := json.Marshal(wires)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc2: encode batch: %w", err)
	}
	return data, nil
}

// DecodeBatch decodes a POST body as either a single JSON-RPC message or a
// JSON array of messages, per the MCP Streamable HTTP spec's "batch or
// singleton" payload rule. The returned bool reports whether the body was
// an array on the wire (singletons are always normalized into a one-element
// slice, per spec.md §4.4).
func DecodeBatch(data []byte) ([]Message, bool, error) {
	var rawBatch []json.RawMessage
	if err := json.Unmarshal(data, &rawBatch); err == nil {
		if len(rawBatch) == 0 {
			return nil, true, fmt.Errorf("%w: empty batch", ErrInvalidRequest)
		}
		msgs := make([]Message, len(rawBatch))
		for i, raw := range rawBatch {
			msg, err := DecodeMessage(raw)
			if err != nil {
				return nil, true, err
			}
			msgs[i] = msg
		}
		return msgs, true, nil
	}
	msg, err := DecodeMessage(data)
	if err != nil {
		return nil, false, err
	}
	return []Message{msg}, false, nil
}
