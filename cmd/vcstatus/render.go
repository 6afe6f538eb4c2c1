// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vcstatus/vcstatus/control"
	"github.com/vcstatus/vcstatus/lib/notify"
	"github.com/vcstatus/vcstatus/presence"
)

var (
	labelStyle    = lipgloss.NewStyle().Bold(true).Width(10)
	channelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	speakingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	faintStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// renderStatus writes a human-readable status snapshot.
func renderStatus(w io.Writer, status control.Status) {
	state := status.State

	session := state.Phase.String()
	if state.UserID != "" {
		session += faintStyle.Render(" (user " + state.UserID + ")")
	}
	if !status.Connected {
		session = mutedStyle.Render("not connected to the host")
	}
	fmt.Fprintf(w, "%s%s\n", labelStyle.Render("Session"), session)

	if !state.InChannel() {
		fmt.Fprintf(w, "%s%s\n", labelStyle.Render("Channel"), faintStyle.Render("not in voice"))
		return
	}
	name := state.ChannelName
	if name == "" {
		name = state.ChannelID
	}
	fmt.Fprintf(w, "%s%s\n", labelStyle.Render("Channel"), channelStyle.Render(name))
	fmt.Fprintf(w, "%s%s\n", labelStyle.Render("You"), selfFlags(state))

	members := state.MemberList()
	fmt.Fprintf(w, "%s%d\n", labelStyle.Render("Members"), len(members))
	for _, member := range members {
		fmt.Fprintf(w, "  %s\n", renderMember(member))
	}
}

func selfFlags(state presence.State) string {
	var flags []string
	if state.SelfSpeaking {
		flags = append(flags, speakingStyle.Render("speaking"))
	}
	if state.Deaf {
		flags = append(flags, mutedStyle.Render("deafened"))
	} else if state.Mute {
		flags = append(flags, mutedStyle.Render("muted"))
	}
	if len(flags) == 0 {
		return faintStyle.Render("listening")
	}
	return strings.Join(flags, ", ")
}

func renderMember(member presence.Member) string {
	marker := faintStyle.Render("○")
	if member.Speaking {
		marker = speakingStyle.Render("●")
	}
	line := marker + " " + member.DisplayName()
	switch {
	case member.EffectiveDeaf():
		line += " " + mutedStyle.Render("deafened")
	case member.EffectiveMute():
		line += " " + mutedStyle.Render("muted")
	}
	return line
}

// describeNotification renders one watch notification as a single
// line. Payloads that do not decode are shown raw.
func describeNotification(notification notify.Notification) string {
	at := time.UnixMilli(notification.At).Format(time.TimeOnly)
	prefix := faintStyle.Render(at) + " "

	text, err := notificationText(notification)
	if err != nil {
		text = notification.Event + " " + string(notification.Payload)
	}
	return prefix + text
}

func notificationText(notification notify.Notification) (string, error) {
	payload := notification.Payload
	switch notification.Event {
	case presence.EventVCSelect:
		var selected presence.VCSelect
		if err := json.Unmarshal(payload, &selected); err != nil {
			return "", err
		}
		if selected.InVC {
			return "joined a voice channel", nil
		}
		return "left voice", nil

	case presence.EventVCInfo:
		var info presence.VCInfo
		if err := json.Unmarshal(payload, &info); err != nil {
			return "", err
		}
		return fmt.Sprintf("in %s with %d others", channelStyle.Render(info.Name), len(info.Users)), nil

	case presence.EventVCMuteUpdate:
		var update presence.VCMuteUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			return "", err
		}
		return fmt.Sprintf("mute %s, deafen %s", onOff(update.Mute), onOff(update.Deaf)), nil

	case presence.EventVCUser:
		var user presence.VCUser
		if err := json.Unmarshal(payload, &user); err != nil {
			return "", err
		}
		verb := map[string]string{
			presence.MemberJoin:   "joined",
			presence.MemberUpdate: "updated",
			presence.MemberLeave:  "left",
		}[user.Event]
		if verb == "" {
			verb = user.Event
		}
		return user.Data.DisplayName() + " " + verb, nil

	case presence.EventVCSpeak:
		var speak presence.VCSpeak
		if err := json.Unmarshal(payload, &speak); err != nil {
			return "", err
		}
		who := speak.UserID
		if speak.IsMe {
			who = "you"
		}
		if speak.Speaking {
			return speakingStyle.Render(who + " started speaking"), nil
		}
		return who + " stopped speaking", nil

	case presence.EventError, presence.EventCriticalError:
		var failure struct {
			ErrorType string `json:"error_type"`
			Message   string `json:"message"`
		}
		if err := json.Unmarshal(payload, &failure); err != nil {
			return "", err
		}
		label := "error"
		if notification.Event == presence.EventCriticalError {
			label = "critical error"
		}
		return errorStyle.Render(label) + " " + failure.ErrorType + ": " + failure.Message, nil
	}
	return notification.Event + " " + string(payload), nil
}

func onOff(value bool) string {
	if value {
		return "on"
	}
	return "off"
}
