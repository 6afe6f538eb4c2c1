// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/vcstatus/vcstatus/lib/notify"
	"github.com/vcstatus/vcstatus/presence"
)

func TestNotificationText(t *testing.T) {
	tests := []struct {
		event   string
		payload string
		want    string
	}{
		{presence.EventVCSelect, `{"in_vc":false}`, "left voice"},
		{presence.EventVCInfo, `{"name":"General","users":[{"id":"2"},{"id":"3"}]}`, "in General with 2 others"},
		{presence.EventVCMuteUpdate, `{"mute":false,"deaf":true}`, "mute off, deafen on"},
		{presence.EventVCUser, `{"event":"JOIN","data":{"id":"2","username":"bob"}}`, "bob joined"},
		{presence.EventVCUser, `{"event":"LEAVE","data":{"id":"3","username":"carol","nick":"Caz"}}`, "Caz left"},
		{presence.EventVCSpeak, `{"user_id":"2","is_me":false,"speaking":false}`, "2 stopped speaking"},
		{presence.EventVCSpeak, `{"user_id":"1","is_me":true,"speaking":true}`, "you started speaking"},
		{presence.EventError, `{"error_type":"reauth","message":"token revoked"}`, "error reauth: token revoked"},
		{presence.EventCriticalError, `{"error_type":"ipc","message":"closed"}`, "critical error ipc: closed"},
		{"custom", `{"x":1}`, `custom {"x":1}`},
	}
	for _, test := range tests {
		got, err := notificationText(notify.Notification{Event: test.event, Payload: json.RawMessage(test.payload)})
		if err != nil {
			t.Errorf("%s %s: %v", test.event, test.payload, err)
			continue
		}
		if got != test.want {
			t.Errorf("%s %s = %q, want %q", test.event, test.payload, got, test.want)
		}
	}
}

func TestDescribeNotificationFallsBackToRaw(t *testing.T) {
	at := time.Date(2026, 3, 1, 14, 5, 9, 0, time.Local)
	line := describeNotification(notify.Notification{
		At:      at.UnixMilli(),
		Event:   presence.EventVCSelect,
		Payload: json.RawMessage(`"not an object"`),
	})
	if !strings.Contains(line, "14:05:09") {
		t.Errorf("line %q lacks the local time", line)
	}
	if !strings.HasSuffix(line, `vc_select "not an object"`) {
		t.Errorf("line = %q", line)
	}
}
