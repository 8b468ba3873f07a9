// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/enZane/stream-http-edge-transport/authctx"
	"github.com/enZane/stream-http-edge-transport/internal/jsonrpc2"
)

// initializeMethod is the JSON-RPC method name that starts a session.
const initializeMethod = "initialize"

// ServeHTTP implements http.Handler, dispatching by method per spec.md §4.4.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		t.servePOST(w, r)
	case http.MethodGet:
		t.serveGET(w, r)
	case http.MethodDelete:
		t.serveDELETE(w, r)
	default:
		t.methodNotAllowed(w)
	}
}

func acceptIncludes(r *http.Request, mimeType string) bool {
	for _, v := range r.Header.Values("Accept") {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(strings.SplitN(part, ";", 2)[0]) == mimeType {
				return true
			}
		}
	}
	return false
}

func (t *Transport) servePOST(w http.ResponseWriter, r *http.Request) {
	if !acceptIncludes(r, "application/json") || !acceptIncludes(r, "text/event-stream") {
		t.writeRPCError(w, newRPCError(http.StatusNotAcceptable, codeTransportError,
			"Accept header must include both application/json and text/event-stream", nil))
		return
	}
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		t.writeRPCError(w, newRPCError(http.StatusUnsupportedMediaType, codeTransportError,
			"Content-Type must be application/json", nil))
		return
	}

	body, sizeErr := t.readBoundedBody(r)
	if sizeErr != nil {
		t.writeRPCError(w, sizeErr)
		return
	}

	msgs, _, err := jsonrpc2.DecodeBatch(body)
	if err != nil {
		t.writeRPCError(w, newRPCError(http.StatusBadRequest, codeParseError, "Parse error", err.Error()))
		return
	}

	if rerr := t.handleInitialize(msgs); rerr != nil {
		t.writeRPCError(w, rerr)
		return
	}
	if !isInitializePayload(msgs) {
		t.mu.Lock()
		rerr := t.validateSession(r)
		t.mu.Unlock()
		if rerr != nil {
			t.writeRPCError(w, rerr)
			return
		}
	}

	info := RequestInfo{AuthInfo: authctx.FromContext(r.Context())}

	hasRequest := false
	for _, m := range msgs {
		if req, ok := m.(*jsonrpc2.Request); ok && req.IsCall() {
			hasRequest = true
			break
		}
	}

	if !hasRequest {
		t.dispatchAll(r.Context(), msgs, info)
		t.writeSessionHeader(w)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	streamID := newStreamID()
	t.registerStream(streamID, msgs)

	if t.opts.EnableJSONResponse {
		t.servePostJSON(w, r, streamID, msgs, info)
		return
	}
	t.servePostSSE(w, r, streamID, msgs, info)
}

func isInitializePayload(msgs []jsonrpc2.Message) bool {
	for _, m := range msgs {
		if req, ok := m.(*jsonrpc2.Request); ok && req.Method == initializeMethod {
			return true
		}
	}
	return false
}

// handleInitialize applies the single-initialize-per-session rule of
// spec.md §4.4, assigning a session id on success. It returns nil when
// msgs is not an initialize payload at all.
func (t *Transport) handleInitialize(msgs []jsonrpc2.Message) *rpcError {
	if !isInitializePayload(msgs) {
		return nil
	}
	if len(msgs) > 1 {
		return newRPCError(http.StatusBadRequest, codeInvalidRequest, "Only one initialization request is allowed", nil)
	}

	t.mu.Lock()
	if t.stateful() && t.initialized {
		t.mu.Unlock()
		return newRPCError(http.StatusBadRequest, codeInvalidRequest, "Server already initialized", nil)
	}
	if t.stateful() {
		t.sessionID = t.opts.SessionIDGenerator()
	}
	t.initialized = true
	sessionID := t.sessionID
	t.mu.Unlock()

	if t.opts.OnSessionInitialized != nil && sessionID != "" {
		t.opts.OnSessionInitialized(sessionID)
	}
	return nil
}

// registerStream inserts every call-request in msgs into the request→stream
// index under streamID, in payload order.
func (t *Transport) registerStream(streamID string, msgs []jsonrpc2.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range msgs {
		req, ok := m.(*jsonrpc2.Request)
		if !ok || !req.IsCall() {
			continue
		}
		t.requestStream[req.ID.String()] = streamID
		t.streamRequests[streamID] = append(t.streamRequests[streamID], req.ID)
	}
}

func (t *Transport) writeSessionHeader(w http.ResponseWriter) {
	t.mu.Lock()
	sessionID := t.sessionID
	t.mu.Unlock()
	if sessionID != "" {
		w.Header().Set("Mcp-Session-Id", sessionID)
	}
}

func (t *Transport) servePostSSE(w http.ResponseWriter, r *http.Request, streamID string, msgs []jsonrpc2.Message, info RequestInfo) {
	ctrl := newSSEController(w)
	t.mu.Lock()
	t.streams[streamID] = &sink{sse: ctrl}
	t.mu.Unlock()

	t.writeSessionHeader(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	// Deliberate yield: onmessage dispatch happens on a separate goroutine,
	// after the response (and its live SSE body) has been handed back,
	// per spec.md §5.
	go t.dispatchAll(r.Context(), msgs, info)

	select {
	case <-ctrl.Done():
	case <-r.Context().Done():
		t.deregisterStream(streamID)
	}
}

func (t *Transport) servePostJSON(w http.ResponseWriter, r *http.Request, streamID string, msgs []jsonrpc2.Message, info RequestInfo) {
	resolver := newJSONResolver()
	t.mu.Lock()
	t.streams[streamID] = &sink{resolver: resolver}
	t.mu.Unlock()

	go t.dispatchAll(r.Context(), msgs, info)

	body, err := resolver.wait(r.Context())
	if err != nil {
		t.deregisterStream(streamID)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return // client disconnected before completion
		}
		t.writeRPCError(w, newRPCError(http.StatusInternalServerError, codeTransportError, err.Error(), nil))
		return
	}

	t.writeSessionHeader(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// serveGET only ever opens or resumes the standalone stream; a POST-opened,
// request-bound stream is never reachable here, so resuming one is refused
// by construction rather than by an explicit check.
func (t *Transport) serveGET(w http.ResponseWriter, r *http.Request) {
	if !acceptIncludes(r, "text/event-stream") {
		t.writeRPCError(w, newRPCError(http.StatusNotAcceptable, codeTransportError,
			"Accept header must include text/event-stream", nil))
		return
	}
	t.mu.Lock()
	rerr := t.validateSession(r)
	t.mu.Unlock()
	if rerr != nil {
		t.writeRPCError(w, rerr)
		return
	}

	if lastEventID := r.Header.Get("Last-Event-Id"); lastEventID != "" && t.opts.EventStore != nil {
		t.serveReplay(w, r, lastEventID)
		return
	}

	ctrl := newSSEController(w)
	t.mu.Lock()
	if _, exists := t.streams[standaloneStreamID]; exists {
		t.mu.Unlock()
		t.writeRPCError(w, newRPCError(http.StatusConflict, codeTransportError, "Only one SSE stream is allowed per session", nil))
		return
	}
	t.streams[standaloneStreamID] = &sink{sse: ctrl}
	t.mu.Unlock()

	t.writeSessionHeader(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	select {
	case <-ctrl.Done():
	case <-r.Context().Done():
		t.deregisterStream(standaloneStreamID)
	}
}

func (t *Transport) serveReplay(w http.ResponseWriter, r *http.Request, lastEventID string) {
	ctrl := newSSEController(w)

	t.writeSessionHeader(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	streamID, err := t.replay(r.Context(), lastEventID, ctrl)
	if err != nil {
		t.reportError(err)
		ctrl.Close()
		return
	}

	t.mu.Lock()
	t.streams[streamID] = &sink{sse: ctrl}
	t.mu.Unlock()

	select {
	case <-ctrl.Done():
	case <-r.Context().Done():
		t.deregisterStream(streamID)
	}
}

func (t *Transport) serveDELETE(w http.ResponseWriter, r *http.Request) {
	t.mu.Lock()
	rerr := t.validateSession(r)
	t.mu.Unlock()
	if rerr != nil {
		t.writeRPCError(w, rerr)
		return
	}
	t.Close()
	w.WriteHeader(http.StatusOK)
}

// deregisterStream removes streamID from the stream registry without
// touching request→stream or response-buffer entries, matching the
// consumer-cancellation transition of spec.md §4.5's state machine: pending
// requests for the stream are orphaned, not failed, and clean themselves up
// once their terminal responses arrive.
func (t *Transport) deregisterStream(streamID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.streams, streamID)
}

func (t *Transport) dispatchAll(ctx context.Context, msgs []jsonrpc2.Message, info RequestInfo) {
	for _, msg := range msgs {
		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return
		}
		if t.OnMessage != nil {
			t.OnMessage(ctx, msg, info)
		}
	}
}

// readBoundedBody reads r.Body up to the configured limit, returning an
// *rpcError sized 413 if it is exceeded.
func (t *Transport) readBoundedBody(r *http.Request) ([]byte, *rpcError) {
	limit := t.opts.MaxBodyBytes
	if limit < 0 {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, newRPCError(http.StatusBadRequest, codeParseError, "Parse error", err.Error())
		}
		return data, nil
	}
	limited := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, newRPCError(http.StatusBadRequest, codeParseError, "Parse error", err.Error())
	}
	if int64(len(data)) > limit {
		return nil, newRPCError(http.StatusRequestEntityTooLarge, codeTransportError,
			fmt.Sprintf("request body exceeds %d bytes", limit), nil)
	}
	return data, nil
}
