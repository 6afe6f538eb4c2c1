// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

// Notification names.
const (
	EventError         = "error"
	EventCriticalError = "critical_error"
	EventVCSelect      = "vc_select"
	EventVCInfo        = "vc_info"
	EventVCMuteUpdate  = "vc_mute_update"
	EventVCUser        = "vc_user"
	EventVCSpeak       = "vc_speak"
)

// Membership change kinds carried by vc_user.
const (
	MemberJoin   = "JOIN"
	MemberUpdate = "UPDATE"
	MemberLeave  = "LEAVE"
)

// Notifier receives state-change notifications. Notify is called from
// the event loop goroutine and must not block. notify.Hub implements
// it.
type Notifier interface {
	Notify(event string, payload any)
}

type discardNotifier struct{}

func (discardNotifier) Notify(string, any) {}

// VCSelect is the vc_select payload.
type VCSelect struct {
	InVC bool `json:"in_vc"`
}

// VCInfo is the vc_info payload: the channel name and the other
// members, sorted by display name.
type VCInfo struct {
	Name  string   `json:"name"`
	Users []Member `json:"users"`
}

// VCMuteUpdate is the vc_mute_update payload.
type VCMuteUpdate struct {
	Mute bool `json:"mute"`
	Deaf bool `json:"deaf"`
}

// VCUser is the vc_user payload.
type VCUser struct {
	Event string `json:"event"`
	Data  Member `json:"data"`
}

// VCSpeak is the vc_speak payload.
type VCSpeak struct {
	UserID   string `json:"user_id"`
	IsMe     bool   `json:"is_me"`
	Speaking bool   `json:"speaking"`
}
