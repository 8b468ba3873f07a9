// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc2

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	json "github.com/segmentio/encoding/json"
)

// StrictUnmarshal decodes data into v — always a *wireMessage in this
// package — refusing anything Go's normally case-insensitive JSON decoding
// would let slip past the jsonrpc2.ID/Method/Params/Result fields:
//
//   - case-variant duplicate keys (e.g. both "id" and "Id" on one object)
//   - any JSON field name that matches a wireMessage tag except by case
//   - any field wireMessage does not declare at all
//
// DecodeMessage and DecodeBatch route every inbound request, notification,
// and response through this before it ever reaches Request/Response, so a
// client cannot smuggle a second "method" or "id" past whichever one Go's
// default decoder happens to bind first.
func StrictUnmarshal(data []byte, v interface{}) error {
	if err := rejectCaseVariantDuplicateKeys(data); err != nil {
		return fmt.Errorf("strict unmarshal: %w", err)
	}
	if err := rejectFieldCaseMismatch(data, v); err != nil {
		return fmt.Errorf("strict unmarshal: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("strict unmarshal: %w", err)
	}
	return nil
}

// rejectCaseVariantDuplicateKeys walks data (and every nested object/array
// within it) looking for two keys that collide once lowercased but differ
// in their original casing.
func rejectCaseVariantDuplicateKeys(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// Not a JSON object at the top level (a batch array element's
		// scalar field, for instance); nothing to check here.
		return nil
	}
	if err := checkKeyCasing(raw); err != nil {
		return err
	}
	for key, val := range raw {
		if err := rejectCaseVariantDuplicateKeysInValue(val); err != nil {
			return fmt.Errorf("in field %q: %w", key, err)
		}
	}
	return nil
}

func rejectCaseVariantDuplicateKeysInValue(data json.RawMessage) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		if err := checkKeyCasing(obj); err != nil {
			return err
		}
		for key, val := range obj {
			if err := rejectCaseVariantDuplicateKeysInValue(val); err != nil {
				return fmt.Errorf("in field %q: %w", key, err)
			}
		}
		return nil
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		for i, elem := range arr {
			if err := rejectCaseVariantDuplicateKeysInValue(elem); err != nil {
				return fmt.Errorf("in array index %d: %w", i, err)
			}
		}
	}
	return nil
}

func checkKeyCasing(obj map[string]json.RawMessage) error {
	seen := make(map[string]string, len(obj)) // lowercase -> original
	for key := range obj {
		lower := strings.ToLower(key)
		if original, exists := seen[lower]; exists && original != key {
			return fmt.Errorf("duplicate key with different case: %q and %q", original, key)
		}
		seen[lower] = key
	}
	return nil
}

// rejectFieldCaseMismatch ensures every top-level JSON key in data matches
// one of v's declared `json:"..."` tags exactly; a key that matches only
// case-insensitively (e.g. "Method" when the tag is "method") is rejected
// outright rather than left for DisallowUnknownFields to catch, since that
// case is exactly the jsonrpc2.ID/Method smuggling vector this guards
// against, not an ordinary typo.
func rejectFieldCaseMismatch(data []byte, v interface{}) error {
	expected := wireFieldNames(v)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	for key := range raw {
		if expected[key] {
			continue
		}
		lower := strings.ToLower(key)
		for name := range expected {
			if strings.ToLower(name) == lower {
				return fmt.Errorf("field name case mismatch: got %q, expected %q", key, name)
			}
		}
		// No case-insensitive match either: an ordinary unknown field,
		// left for DisallowUnknownFields to reject.
	}
	return nil
}

// wireFieldNames returns the set of JSON field names v's struct tags
// declare, dereferencing v if it is a pointer (as every StrictUnmarshal
// destination in this package is).
func wireFieldNames(v interface{}) map[string]bool {
	fields := make(map[string]bool)

	t := reflect.TypeOf(v)
	if t == nil {
		return fields
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return fields
	}

	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			fields[name] = true
		}
	}
	return fields
}
