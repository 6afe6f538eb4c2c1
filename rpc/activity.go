// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ActivityType is the verb shown before an activity name.
type ActivityType int

const (
	ActivityPlaying   ActivityType = 0
	ActivityStreaming ActivityType = 1
	ActivityListening ActivityType = 2
	ActivityWatching  ActivityType = 3
	ActivityCompeting ActivityType = 5
)

// Activity is the status shown on the user's profile.
type Activity struct {
	Name       string              `json:"name,omitempty" cbor:"name,omitempty"`
	Type       ActivityType        `json:"type" cbor:"type"`
	URL        string              `json:"url,omitempty" cbor:"url,omitempty"`
	Details    string              `json:"details,omitempty" cbor:"details,omitempty"`
	State      string              `json:"state,omitempty" cbor:"state,omitempty"`
	Timestamps *ActivityTimestamps `json:"timestamps,omitempty" cbor:"timestamps,omitempty"`
	Assets     *ActivityAssets     `json:"assets,omitempty" cbor:"assets,omitempty"`
	Party      *ActivityParty      `json:"party,omitempty" cbor:"party,omitempty"`
	Buttons    []ActivityButton    `json:"buttons,omitempty" cbor:"buttons,omitempty"`
	Instance   bool                `json:"instance,omitempty" cbor:"instance,omitempty"`
}

// ActivityTimestamps are Unix milliseconds.
type ActivityTimestamps struct {
	Start int64 `json:"start,omitempty" cbor:"start,omitempty"`
	End   int64 `json:"end,omitempty" cbor:"end,omitempty"`
}

type ActivityAssets struct {
	LargeImage string `json:"large_image,omitempty" cbor:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty" cbor:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty" cbor:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty" cbor:"small_text,omitempty"`
}

// ActivityParty describes a group; Size is [current, max].
type ActivityParty struct {
	ID   string `json:"id,omitempty" cbor:"id,omitempty"`
	Size []int  `json:"size,omitempty" cbor:"size,omitempty"`
}

type ActivityButton struct {
	Label string `json:"label" cbor:"label"`
	URL   string `json:"url" cbor:"url"`
}

const (
	maxActivityButtons = 2
	maxActivityText    = 128
)

// Validate checks the limits the host enforces, so a bad activity
// fails locally with a clear message instead of as an opaque ERROR.
func (a *Activity) Validate() error {
	var errs []error
	if utf8.RuneCountInString(a.Details) > maxActivityText {
		errs = append(errs, fmt.Errorf("details exceeds %d characters", maxActivityText))
	}
	if utf8.RuneCountInString(a.State) > maxActivityText {
		errs = append(errs, fmt.Errorf("state exceeds %d characters", maxActivityText))
	}
	if len(a.Buttons) > maxActivityButtons {
		errs = append(errs, fmt.Errorf("at most %d buttons are allowed, got %d", maxActivityButtons, len(a.Buttons)))
	}
	for index, button := range a.Buttons {
		if button.Label == "" || button.URL == "" {
			errs = append(errs, fmt.Errorf("button %d needs both label and url", index))
		}
	}
	if a.Party != nil && len(a.Party.Size) != 0 {
		if len(a.Party.Size) != 2 || a.Party.Size[0] < 0 || a.Party.Size[0] > a.Party.Size[1] {
			errs = append(errs, fmt.Errorf("party size must be [current, max] with current <= max"))
		}
	}
	if a.Timestamps != nil && a.Timestamps.End != 0 && a.Timestamps.End < a.Timestamps.Start {
		errs = append(errs, fmt.Errorf("timestamps end precedes start"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid activity: %w", err)
	}
	return nil
}
