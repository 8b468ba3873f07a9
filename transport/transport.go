// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/enZane/stream-http-edge-transport/eventstore"
	"github.com/enZane/stream-http-edge-transport/internal/jsonrpc2"
)

// DefaultMaxBodyBytes is the POST body size ceiling applied when
// Options.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 4 << 20 // 4 MiB

// standaloneStreamID is the reserved stream id for the GET-opened,
// request-independent push channel.
const standaloneStreamID = "_GET_stream"

// SessionIDGenerator produces a fresh, unpredictable session identifier. A
// nil generator (see Options.SessionIDGenerator) puts the transport in
// stateless mode: no Mcp-Session-Id is ever assigned or required.
type SessionIDGenerator func() string

// RequestInfo carries ambient information about the HTTP request an inbound
// message arrived on, passed alongside the message to OnMessage.
type RequestInfo struct {
	// AuthInfo is whatever value authctx (or other host middleware) attached
	// to the request context, or nil. The transport never inspects it.
	AuthInfo any
}

// Options configures a Transport. All fields are optional.
type Options struct {
	// SessionIDGenerator, when set, puts the transport in stateful mode: the
	// first successful initialize request assigns a session id from this
	// function, and every subsequent request must present it. When nil, the
	// transport is stateless and never validates or assigns a session.
	SessionIDGenerator SessionIDGenerator

	// OnSessionInitialized, if set, is invoked once with the assigned session
	// id immediately after a successful initialize request.
	OnSessionInitialized func(sessionID string)

	// EnableJSONResponse switches POST responses that carry at least one
	// request from a streamed SSE body to a single batched JSON body.
	EnableJSONResponse bool

	// EventStore, when set, enables resumable SSE streams via the
	// Last-Event-Id header.
	EventStore eventstore.Store

	// MaxBodyBytes bounds POST body size. Zero selects DefaultMaxBodyBytes;
	// a negative value disables the limit.
	MaxBodyBytes int64

	// Logger receives structured diagnostic records. A nil Logger uses
	// slog.Default().
	Logger *slog.Logger
}

// Transport implements the server side of the MCP Streamable HTTP protocol
// for a single logical session.
//
// The zero Transport is not usable; construct one with New.
type Transport struct {
	opts   Options
	logger *slog.Logger

	// OnMessage is invoked for every inbound JSON-RPC message once all
	// protocol gates and session validation have passed, in payload order.
	OnMessage func(ctx context.Context, msg jsonrpc2.Message, info RequestInfo)
	// OnError is invoked for frame-write failures and replay failures; it
	// never tears down the transport.
	OnError func(err error)
	// OnClose is invoked exactly once, when Close runs.
	OnClose func()

	mu          sync.Mutex
	started     bool
	closed      bool
	sessionID   string
	initialized bool

	// streams maps a streamId to the sink that outbound messages for that
	// stream are written through: either a live SSE controller or a pending
	// JSON resolver, per design note spec.md §9 (tagged variant, one branch
	// at completion time).
	streams map[string]*sink

	// requestStream maps a request id (by its map-key rendering) to the
	// streamId it was registered under.
	requestStream map[string]string

	// streamRequests records, per streamId, the ordered list of request ids
	// registered on it, so JSON-mode batches can be assembled in the order
	// requests were discovered rather than the order responses arrived.
	streamRequests map[string][]jsonrpc2.ID

	// responseBuffer holds terminal responses as they arrive via Send, keyed
	// by request id, until every request on their stream has one.
	responseBuffer map[string]*jsonrpc2.Response
}

// sink is the sending half of a stream: exactly one of sse or resolver is
// set, chosen by response mode at stream-creation time.
type sink struct {
	sse      *sseController
	resolver *jsonResolver
}

// New constructs a Transport from opts. It does not start serving; call
// Start before handing it an http.Handler adapter such as ServeHTTP.
func New(opts Options) *Transport {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Transport{
		opts:           opts,
		logger:         logger,
		streams:        make(map[string]*sink),
		requestStream:  make(map[string]string),
		streamRequests: make(map[string][]jsonrpc2.ID),
		responseBuffer: make(map[string]*jsonrpc2.Response),
	}
}

// Start marks the transport ready to serve. It performs no I/O; connections
// are handled per-request by ServeHTTP. A second call fails.
func (t *Transport) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return errors.New("transport: already started")
	}
	t.started = true
	return nil
}

// Close tears the session down: every registered stream is closed
// (tolerating already-closed streams), every mapping is cleared, and
// OnClose fires once.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	sinks := make([]*sink, 0, len(t.streams))
	for _, s := range t.streams {
		sinks = append(sinks, s)
	}
	t.streams = make(map[string]*sink)
	t.requestStream = make(map[string]string)
	t.streamRequests = make(map[string][]jsonrpc2.ID)
	t.responseBuffer = make(map[string]*jsonrpc2.Response)
	t.mu.Unlock()

	for _, s := range sinks {
		if s.sse != nil {
			s.sse.Close()
		}
		if s.resolver != nil {
			s.resolver.abort(errors.New("transport closed"))
		}
	}
	if t.OnClose != nil {
		t.OnClose()
	}
	return nil
}

// SessionID returns the current session id, or "" if the transport is
// stateless or has not yet completed its initialize handshake.
func (t *Transport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

func (t *Transport) stateful() bool {
	return t.opts.SessionIDGenerator != nil
}

func newStreamID() string {
	return uuid.NewString()
}

func (t *Transport) reportError(err error) {
	if err == nil {
		return
	}
	if t.OnError != nil {
		t.OnError(err)
		return
	}
	t.logger.Error("transport error", "error", err)
}
