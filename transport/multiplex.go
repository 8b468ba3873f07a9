// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/enZane/stream-http-edge-transport/internal/jsonrpc2"
)

// jsonResolver is the JSON-mode counterpart of an sseController: a
// one-shot future that the blocked ServeHTTP goroutine waits on, and that
// Send resolves once every request on the stream has a terminal response.
type jsonResolver struct {
	done chan struct{}
	once sync.Once
	body []byte
	err  error
}

func newJSONResolver() *jsonResolver {
	return &jsonResolver{done: make(chan struct{})}
}

func (r *jsonResolver) resolve(body []byte) {
	r.once.Do(func() {
		r.body = body
		close(r.done)
	})
}

func (r *jsonResolver) abort(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

func (r *jsonResolver) wait(ctx context.Context) ([]byte, error) {
	select {
	case <-r.done:
		return r.body, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send delivers an outbound JSON-RPC message, routing it to whichever
// stream correlates with relatedRequestID (spec.md §4.5). relatedRequestID
// is ignored for *jsonrpc2.Response messages, whose own ID is
// authoritative.
//
// Send returns an error only for the two dispatch failures spec.md §7
// classifies as propagated to the host: an unknown request id, or an
// attempt to send a response on the standalone stream. Frame-write and
// event-store failures are reported via OnError instead.
func (t *Transport) Send(ctx context.Context, msg jsonrpc2.Message, relatedRequestID jsonrpc2.ID) error {
	resp, isResponse := msg.(*jsonrpc2.Response)

	effectiveID := relatedRequestID
	if isResponse {
		effectiveID = resp.ID
	}

	if !effectiveID.IsValid() {
		if isResponse {
			return fmt.Errorf("transport: cannot send a response on a standalone SSE stream unless resuming a previous client request")
		}
		return t.sendStandalone(ctx, msg)
	}
	return t.sendCorrelated(ctx, msg, effectiveID, isResponse)
}

func (t *Transport) sendStandalone(ctx context.Context, msg jsonrpc2.Message) error {
	t.mu.Lock()
	s, ok := t.streams[standaloneStreamID]
	t.mu.Unlock()
	if !ok || s.sse == nil {
		return nil // no standalone stream open: silently drop, per spec.md §4.5.
	}
	t.writeToSSE(ctx, standaloneStreamID, s.sse, msg)
	return nil
}

func (t *Transport) sendCorrelated(ctx context.Context, msg jsonrpc2.Message, id jsonrpc2.ID, isResponse bool) error {
	key := id.String()

	t.mu.Lock()
	streamID, ok := t.requestStream[key]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("transport: no stream found for request ID: %s", key)
	}
	s := t.streams[streamID]
	t.mu.Unlock()

	if s != nil && s.sse != nil {
		t.writeToSSE(ctx, streamID, s.sse, msg)
	}

	if !isResponse {
		return nil // server-initiated request/notification: written through, no completion.
	}

	t.bufferAndMaybeComplete(streamID, key, msg.(*jsonrpc2.Response))
	return nil
}

// writeToSSE assigns an event id (when resumability is enabled) and writes
// one frame. Failures are reported, never propagated: per spec.md §4.1 an
// enqueue failure must not throw out of send.
func (t *Transport) writeToSSE(ctx context.Context, streamID string, ctrl *sseController, msg jsonrpc2.Message) {
	data, err := jsonrpc2.EncodeMessage(msg)
	if err != nil {
		t.reportError(fmt.Errorf("transport: encode outbound message: %w", err))
		return
	}
	eventID, err := t.storeEvent(ctx, streamID, data)
	if err != nil {
		t.reportError(err)
	}
	if err := ctrl.writeFrame(eventID, data); err != nil {
		t.reportError(err)
	}
}

// bufferAndMaybeComplete records resp as the terminal response for the
// request it answers, then, if every request registered on its stream now
// has a terminal response, drives that stream through Completing to
// Closed.
func (t *Transport) bufferAndMaybeComplete(streamID, key string, resp *jsonrpc2.Response) {
	t.mu.Lock()
	t.responseBuffer[key] = resp
	if !t.streamComplete(streamID) {
		t.mu.Unlock()
		return
	}

	ids := t.streamRequests[streamID]
	s := t.streams[streamID]
	ordered := make([]*jsonrpc2.Response, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, t.responseBuffer[id.String()])
	}

	// Cleanup: remove every correlated request id from both maps, then
	// remove the stream itself from the registry (and, transitively, any
	// pending resolver, since both live in the same sink).
	for _, id := range ids {
		k := id.String()
		delete(t.responseBuffer, k)
		delete(t.requestStream, k)
	}
	delete(t.streamRequests, streamID)
	delete(t.streams, streamID)
	t.mu.Unlock()

	if s == nil {
		return
	}
	switch {
	case s.resolver != nil:
		body, err := encodeJSONModeBody(ordered)
		if err != nil {
			s.resolver.abort(err)
			t.reportError(err)
			return
		}
		s.resolver.resolve(body)
	case s.sse != nil:
		s.sse.Close()
	}
}

// streamComplete reports whether every request registered on streamID has
// a buffered terminal response. t.mu must be held by the caller.
func (t *Transport) streamComplete(streamID string) bool {
	for _, id := range t.streamRequests[streamID] {
		if _, ok := t.responseBuffer[id.String()]; !ok {
			return false
		}
	}
	return true
}

// encodeJSONModeBody renders the JSON-mode completion body: the bare
// response when exactly one request was registered on the stream, or the
// array of responses in request-registration order otherwise (spec.md
// §4.5, §8 "JSON-mode batching").
func encodeJSONModeBody(responses []*jsonrpc2.Response) ([]byte, error) {
	if len(responses) == 1 {
		return jsonrpc2.EncodeMessage(responses[0])
	}
	msgs := make([]jsonrpc2.Message, len(responses))
	for i, r := range responses {
		msgs[i] = r
	}
	return jsonrpc2.EncodeBatch(msgs)
}
