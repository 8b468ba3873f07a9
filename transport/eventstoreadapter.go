// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"fmt"
)

// storeEvent assigns an event id to message on streamID via the configured
// event store, if any. It returns ("", nil) when resumability is disabled;
// callers treat an empty eventID as "do not stamp an id: line".
func (t *Transport) storeEvent(ctx context.Context, streamID string, message []byte) (string, error) {
	if t.opts.EventStore == nil {
		return "", nil
	}
	id, err := t.opts.EventStore.StoreEvent(ctx, streamID, message)
	if err != nil {
		return "", fmt.Errorf("transport: store event: %w", err)
	}
	return id, nil
}

// replay delegates to the configured event store to emit every event
// recorded after lastEventID into a freshly created SSE controller, then
// returns the streamId under which subsequent live events should be
// registered. The caller is responsible for registering ctrl under that
// streamId once replay returns successfully.
func (t *Transport) replay(ctx context.Context, lastEventID string, ctrl *sseController) (string, error) {
	streamID, err := t.opts.EventStore.ReplayEventsAfter(ctx, lastEventID, func(eventID string, message []byte) error {
		return ctrl.writeFrame(eventID, message)
	})
	if err != nil {
		return "", fmt.Errorf("transport: replay: %w", err)
	}
	return streamID, nil
}
