// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/vcstatus/vcstatus/lib/clock"
	"github.com/vcstatus/vcstatus/lib/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRing(t *testing.T) {
	ring := NewRing[int](3)
	if len(ring.Snapshot()) != 0 {
		t.Fatal("new ring should be empty")
	}
	for value := 1; value <= 5; value++ {
		ring.Push(value)
	}
	snapshot := ring.Snapshot()
	if len(snapshot) != 3 || snapshot[0] != 3 || snapshot[1] != 4 || snapshot[2] != 5 {
		t.Fatalf("Snapshot = %v, want [3 4 5]", snapshot)
	}
	if ring.Len() != 3 {
		t.Fatalf("Len = %d", ring.Len())
	}

	empty := NewRing[int](0)
	empty.Push(1)
	if empty.Len() != 0 {
		t.Fatal("zero-capacity ring should keep nothing")
	}
}

func TestHubDeliversInOrderWithHistory(t *testing.T) {
	fakeClock := clock.Fake(time.UnixMilli(1_000))
	hub := NewHub(Config{HistorySize: 2, Clock: fakeClock, Logger: quietLogger()})

	hub.Notify("vc_select", map[string]bool{"in_vc": true})
	hub.Notify("vc_info", map[string]any{"name": "General", "users": []any{}})
	hub.Notify("vc_speak", map[string]any{"user_id": "1", "is_me": false, "speaking": true})

	watcher, history := hub.Watch()
	defer watcher.Close()
	if len(history) != 2 || history[0].Event != "vc_info" || history[1].Event != "vc_speak" {
		t.Fatalf("history = %+v", history)
	}
	if history[1].Seq != 3 {
		t.Errorf("history seq = %d, want 3", history[1].Seq)
	}

	fakeClock.Advance(time.Second)
	hub.Notify("vc_select", map[string]bool{"in_vc": false})
	notification := testutil.RequireReceive(t, watcher.C, 5*time.Second, "live notification")
	if notification.Seq != 4 || notification.Event != "vc_select" {
		t.Fatalf("notification = %+v", notification)
	}
	if string(notification.Payload) != `{"in_vc":false}` {
		t.Errorf("payload = %s", notification.Payload)
	}
	if notification.At != 2_000 {
		t.Errorf("At = %d, want 2000", notification.At)
	}
}

func TestHubDropsForSlowWatcher(t *testing.T) {
	hub := NewHub(Config{BufferSize: 1, Logger: quietLogger()})
	watcher, _ := hub.Watch()
	defer watcher.Close()

	hub.Notify("vc_speak", 1)
	hub.Notify("vc_speak", 2)
	hub.Notify("vc_speak", 3)

	if watcher.Dropped() != 2 {
		t.Fatalf("Dropped = %d, want 2", watcher.Dropped())
	}
	first := testutil.RequireReceive(t, watcher.C, 5*time.Second, "buffered notification")
	if string(first.Payload) != "1" {
		t.Errorf("payload = %s, want the first notification", first.Payload)
	}
}

func TestHubUnencodablePayloadDropped(t *testing.T) {
	hub := NewHub(Config{HistorySize: 4, Logger: quietLogger()})
	hub.Notify("error", math.NaN())
	if len(hub.History()) != 0 {
		t.Fatal("unencodable notification should not be recorded")
	}
}

func TestHubCloseEndsWatchers(t *testing.T) {
	hub := NewHub(Config{Logger: quietLogger()})
	watcher, _ := hub.Watch()
	other, _ := hub.Watch()
	other.Close()
	other.Close()
	if hub.WatcherCount() != 1 {
		t.Fatalf("WatcherCount = %d, want 1", hub.WatcherCount())
	}

	hub.Close()
	if _, open := <-watcher.C; open {
		t.Fatal("watcher channel should be closed")
	}
	watcher.Close()

	late, history := hub.Watch()
	if history != nil {
		t.Error("closed hub should return no history")
	}
	if _, open := <-late.C; open {
		t.Fatal("watch on a closed hub should return a closed channel")
	}
}
