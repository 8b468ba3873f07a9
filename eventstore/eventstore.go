// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package eventstore defines the narrow two-method contract the streamable
// transport uses for resumability, and ships an in-memory implementation.
//
// Only the transport's Event Store Adapter (see transport/eventstoreadapter.go)
// talks to a Store; application code only needs to construct one and pass
// it in transport.Options.EventStore.
package eventstore

import (
	"context"
	"fmt"
	"sync"
)

// Store is the contract an external event store must satisfy to enable
// resumable SSE streams, per spec.md §6.5.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// StoreEvent records message as having been sent on streamID, and
	// returns a totally-ordered, opaque event id for it. It is called at
	// most once per outbound message on a given stream.
	StoreEvent(ctx context.Context, streamID string, message []byte) (eventID string, err error)

	// ReplayEventsAfter emits, via send, every event recorded after
	// lastEventID in the order they were stored, then returns the stream id
	// under which subsequent live events for the resumed connection should
	// be registered.
	ReplayEventsAfter(ctx context.Context, lastEventID string, send func(eventID string, message []byte) error) (streamID string, err error)
}

// MemoryStore is an in-memory Store, grounded on the SDK's
// MemoryServerSessionStateStore pattern (a mutex-guarded map plus a
// monotonic counter), generalized to event logs instead of session blobs.
//
// It is intended for a single-process deployment or for tests; it does not
// survive process restarts.
type MemoryStore struct {
	mu     sync.Mutex
	nextID uint64
	// events is keyed by streamID, and holds the ordered log of (eventID,
	// message) pairs sent on that stream.
	events map[string][]memoryEvent
	// resumeStreamID is returned from ReplayEventsAfter; by default it is the
	// streamID the replayed event belonged to, so resumption continues on
	// the same logical stream.
	resumeStreamID func(streamID string) string
}

type memoryEvent struct {
	id      string
	message []byte
}

// NewMemoryStore returns a ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string][]memoryEvent),
	}
}

// StoreEvent implements Store.
func (s *MemoryStore) StoreEvent(_ context.Context, streamID string, message []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("%s_%d", streamID, s.nextID)
	cp := append([]byte(nil), message...)
	s.events[streamID] = append(s.events[streamID], memoryEvent{id: id, message: cp})
	return id, nil
}

// ReplayEventsAfter implements Store. It scans every stream's event log
// (oldest-recorded event first is irrelevant here; streams are independent)
// looking for lastEventID, then replays everything recorded after it on
// that same stream.
func (s *MemoryStore) ReplayEventsAfter(_ context.Context, lastEventID string, send func(eventID string, message []byte) error) (string, error) {
	s.mu.Lock()
	streamID, startIdx, ok := s.locate(lastEventID)
	var toSend []memoryEvent
	if ok {
		toSend = append(toSend, s.events[streamID][startIdx+1:]...)
	}
	s.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("eventstore: unknown Last-Event-Id %q", lastEventID)
	}
	for _, evt := range toSend {
		if err := send(evt.id, evt.message); err != nil {
			return "", fmt.Errorf("eventstore: replay: %w", err)
		}
	}
	if s.resumeStreamID != nil {
		return s.resumeStreamID(streamID), nil
	}
	return streamID, nil
}

// locate must be called with s.mu held.
func (s *MemoryStore) locate(eventID string) (streamID string, idx int, ok bool) {
	for sid, log := range s.events {
		for i, evt := range log {
			if evt.id == eventID {
				return sid, i, true
			}
		}
	}
	return "", 0, false
}
