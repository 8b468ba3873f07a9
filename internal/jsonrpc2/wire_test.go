// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc2

import (
	"strings"
	"testing"
)

func TestEncodeDecodeRequest(t *testing.T) {
	req := &Request{ID: StringID("abc"), Method: "tools/call", Params: []byte(`{"x":1}`)}
	data, err := EncodeMessage(req)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := DecodeMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := msg.(*Request)
	if !ok {
		t.Fatalf("decoded %T, want *Request", msg)
	}
	if got.Method != req.Method || got.ID.Raw() != req.ID.Raw() {
		t.Errorf("got %+v, want %+v", got, req)
	}
	if !got.IsCall() {
		t.Error("IsCall() = false for a request with a valid id")
	}
}

func TestDecodeNotification(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"jsonrpc":"2.0","method":"ping"}`))
	if err != nil {
		t.Fatal(err)
	}
	req := msg.(*Request)
	if req.IsCall() {
		t.Error("IsCall() = true for a notification")
	}
}

func TestDecodeResponse(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`))
	if err != nil {
		t.Fatal(err)
	}
	resp := msg.(*Response)
	if resp.IsError() {
		t.Error("IsError() = true for a result response")
	}
	if resp.ID.Raw() != int64(1) {
		t.Errorf("ID = %v, want 1", resp.ID.Raw())
	}
}

func TestDecodeMessageRejectsDuplicateKeys(t *testing.T) {
	_, err := DecodeMessage([]byte(`{"jsonrpc":"2.0","id":1,"Id":2,"method":"x"}`))
	if err == nil {
		t.Fatal("expected an error for case-variant duplicate keys")
	}
}

func TestDecodeMessageRejectsMalformed(t *testing.T) {
	_, err := DecodeMessage([]byte(`not json`))
	if err == nil || !strings.Contains(err.Error(), "parse error") {
		t.Fatalf("got %v, want a wrapped ErrParse", err)
	}
}

func TestDecodeBatch(t *testing.T) {
	data := []byte(`[{"jsonrpc":"2.0","id":1,"method":"a"},{"jsonrpc":"2.0","id":2,"method":"b"}]`)
	msgs, isBatch, err := DecodeBatch(data)
	if err != nil {
		t.Fatal(err)
	}
	if !isBatch {
		t.Error("isBatch = false for a JSON array payload")
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
}

func TestDecodeBatchSingleton(t *testing.T) {
	data := []byte(`{"jsonrpc":"2.0","id":1,"method":"a"}`)
	msgs, isBatch, err := DecodeBatch(data)
	if err != nil {
		t.Fatal(err)
	}
	if isBatch {
		t.Error("isBatch = true for a single object payload")
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
}

func TestDecodeBatchRejectsEmptyArray(t *testing.T) {
	_, _, err := DecodeBatch([]byte(`[]`))
	if err == nil {
		t.Fatal("expected an error for an empty batch")
	}
}

func TestEncodeBatchOrder(t *testing.T) {
	msgs := []Message{
		&Response{ID: Int64ID(1), Result: []byte(`1`)},
		&Response{ID: Int64ID(2), Result: []byte(`2`)},
	}
	data, err := EncodeBatch(msgs)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Index(string(data), `"result":1`) > strings.Index(string(data), `"result":2`) {
		t.Errorf("batch did not preserve order: %s", data)
	}
}

func TestIDStringDistinguishesTypes(t *testing.T) {
	if StringID("1").String() == Int64ID(1).String() {
		t.Error("string id \"1\" collides with numeric id 1 as a map key")
	}
}
