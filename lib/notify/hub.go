// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vcstatus/vcstatus/lib/clock"
)

// Notification is one event emitted by the presence session.
type Notification struct {
	Seq     uint64          `cbor:"seq" json:"seq"`
	At      int64           `cbor:"at" json:"at"`
	Event   string          `cbor:"event" json:"event"`
	Payload json.RawMessage `cbor:"payload" json:"payload"`
}

// Config configures a Hub.
type Config struct {
	// HistorySize is how many notifications Watch replays.
	HistorySize int

	// BufferSize is each watcher's channel capacity. Default 64.
	BufferSize int

	Clock  clock.Clock
	Logger *slog.Logger
}

// Hub distributes notifications. The zero value is not usable; use
// NewHub.
type Hub struct {
	clock      clock.Clock
	logger     *slog.Logger
	bufferSize int

	mu       sync.Mutex
	sequence uint64
	history  *Ring[Notification]
	watchers map[*Watcher]struct{}
	closed   bool
}

// NewHub returns a Hub.
func NewHub(config Config) *Hub {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 64
	}
	return &Hub{
		clock:      config.Clock,
		logger:     config.Logger,
		bufferSize: config.BufferSize,
		history:    NewRing[Notification](config.HistorySize),
		watchers:   make(map[*Watcher]struct{}),
	}
}

// Notify records and delivers one notification. A payload that cannot
// be encoded as JSON is logged and dropped.
func (h *Hub) Notify(event string, payload any) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("dropping unencodable notification", "event", event, "error", err)
		return
	}

	h.log(event, encoded)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.sequence++
	notification := Notification{
		Seq:     h.sequence,
		At:      h.clock.Now().UnixMilli(),
		Event:   event,
		Payload: encoded,
	}
	h.history.Push(notification)
	for watcher := range h.watchers {
		select {
		case watcher.channel <- notification:
		default:
			watcher.dropped.Add(1)
		}
	}
}

func (h *Hub) log(event string, payload []byte) {
	switch event {
	case "critical_error":
		h.logger.Error("presence notification", "event", event, "payload", string(payload))
	case "error":
		h.logger.Warn("presence notification", "event", event, "payload", string(payload))
	default:
		h.logger.Debug("presence notification", "event", event, "payload", string(payload))
	}
}

// Watch registers a watcher and returns it together with the recorded
// history. Every notification after the history is delivered on the
// watcher's channel.
func (h *Hub) Watch() (*Watcher, []Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	channel := make(chan Notification, h.bufferSize)
	watcher := &Watcher{hub: h, channel: channel, C: channel}
	if h.closed {
		close(channel)
		return watcher, nil
	}
	h.watchers[watcher] = struct{}{}
	return watcher, h.history.Snapshot()
}

// History returns the recorded notifications, oldest first.
func (h *Hub) History() []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.history.Snapshot()
}

// WatcherCount returns the number of open watchers.
func (h *Hub) WatcherCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

// Close closes every watcher channel. Later notifications are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for watcher := range h.watchers {
		close(watcher.channel)
		delete(h.watchers, watcher)
	}
}

func (h *Hub) remove(watcher *Watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, open := h.watchers[watcher]; open {
		delete(h.watchers, watcher)
		close(watcher.channel)
	}
}

// Watcher receives notifications on C until closed.
type Watcher struct {
	// C is closed when the watcher or its hub is closed.
	C <-chan Notification

	hub     *Hub
	channel chan Notification
	dropped atomic.Uint64
}

// Dropped returns how many notifications were lost to a full buffer.
func (w *Watcher) Dropped() uint64 {
	return w.dropped.Load()
}

// Close unregisters the watcher and closes C. Idempotent.
func (w *Watcher) Close() {
	w.hub.remove(w)
}
