// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vcstatus/vcstatus/cmd/vcstatus/cli"
)

func writeActivityFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activity.jsonc")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildActivityFromFileWithOverrides(t *testing.T) {
	path := writeActivityFile(t, `{
		// shown under the name
		"details": "Writing code",
		"state": "in the editor",
		"assets": {
			"large_image": "logo",
			"large_text": "vcstatus", // trailing comma below
		},
	}`)
	now := time.Unix(1_700_000_000, 0)

	activity, err := buildActivity(&activitySetParams{File: path, State: "reviewing", Started: true}, now)
	if err != nil {
		t.Fatalf("buildActivity: %v", err)
	}
	if activity.Details != "Writing code" {
		t.Errorf("Details = %q", activity.Details)
	}
	if activity.State != "reviewing" {
		t.Errorf("State = %q, want the flag value", activity.State)
	}
	if activity.Assets == nil || activity.Assets.LargeImage != "logo" || activity.Assets.LargeText != "vcstatus" {
		t.Errorf("Assets = %+v", activity.Assets)
	}
	if activity.Timestamps == nil || activity.Timestamps.Start != now.Unix() {
		t.Errorf("Timestamps = %+v", activity.Timestamps)
	}
}

func TestBuildActivityFromFlags(t *testing.T) {
	activity, err := buildActivity(&activitySetParams{Details: "Pairing", LargeText: "hover"}, time.Now())
	if err != nil {
		t.Fatalf("buildActivity: %v", err)
	}
	if activity.Details != "Pairing" || activity.Assets == nil || activity.Assets.LargeText != "hover" || activity.Assets.LargeImage != "" {
		t.Errorf("activity = %+v, assets = %+v", activity, activity.Assets)
	}
	if activity.Timestamps != nil {
		t.Error("timestamps set without --started")
	}
}

func TestBuildActivityErrors(t *testing.T) {
	tests := []struct {
		name     string
		params   func(t *testing.T) *activitySetParams
		category cli.ErrorCategory
		message  string
	}{
		{
			name:     "empty",
			params:   func(*testing.T) *activitySetParams { return &activitySetParams{} },
			category: cli.CategoryValidation,
			message:  "activity is empty",
		},
		{
			name: "missing file",
			params: func(t *testing.T) *activitySetParams {
				return &activitySetParams{File: filepath.Join(t.TempDir(), "absent.jsonc")}
			},
			category: cli.CategoryNotFound,
			message:  "does not exist",
		},
		{
			name: "malformed file",
			params: func(t *testing.T) *activitySetParams {
				return &activitySetParams{File: writeActivityFile(t, `{"details": `)}
			},
			category: cli.CategoryValidation,
			message:  "parsing",
		},
		{
			name: "invalid activity",
			params: func(*testing.T) *activitySetParams {
				return &activitySetParams{Details: strings.Repeat("x", 200)}
			},
			category: cli.CategoryValidation,
			message:  "invalid activity",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := buildActivity(test.params(t), time.Now())
			var toolError *cli.ToolError
			if !errors.As(err, &toolError) {
				t.Fatalf("error = %v, want a ToolError", err)
			}
			if toolError.Category != test.category {
				t.Errorf("category = %s, want %s", toolError.Category, test.category)
			}
			if !strings.Contains(err.Error(), test.message) {
				t.Errorf("error = %q, want it to mention %q", err, test.message)
			}
		})
	}
}
