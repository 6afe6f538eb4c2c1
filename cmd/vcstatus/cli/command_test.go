// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

type greetParams struct {
	JSONOutput
	Name  string `flag:"name,n" desc:"who to greet" default:"world"`
	Times int    `flag:"times" desc:"repetitions" default:"1"`
}

// testTree returns a small tree whose leaf records how it was run.
func testTree(help *bytes.Buffer) (*Command, *greetParams, *[]string) {
	var params greetParams
	var ranWith []string
	leaf := &Command{
		Name:    "greet",
		Summary: "Say hello",
		Flags: func() *pflag.FlagSet {
			return FlagsFromParams("greet", &params)
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			ranWith = append([]string{"ran"}, args...)
			return nil
		},
	}
	root := &Command{
		Name:   "vcstatus",
		Stderr: help,
		Subcommands: []*Command{
			{Name: "voice", Summary: "Voice commands", Subcommands: []*Command{leaf}},
			{Name: "version", Summary: "Print version", Run: func(context.Context, []string, *slog.Logger) error { return nil }},
		},
	}
	return root, &params, &ranWith
}

func TestExecuteDispatchesAndParsesFlags(t *testing.T) {
	var help bytes.Buffer
	root, params, ranWith := testTree(&help)

	if err := root.Execute(context.Background(), []string{"voice", "greet", "-n", "alice", "--times=3", "--json", "extra"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !slices.Equal(*ranWith, []string{"ran", "extra"}) {
		t.Errorf("ran with %v", *ranWith)
	}
	if params.Name != "alice" || params.Times != 3 || !params.OutputJSON {
		t.Errorf("params = %+v", *params)
	}
}

func TestExecuteAppliesDefaults(t *testing.T) {
	var help bytes.Buffer
	root, params, _ := testTree(&help)

	if err := root.Execute(context.Background(), []string{"voice", "greet"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if params.Name != "world" || params.Times != 1 || params.OutputJSON {
		t.Errorf("params = %+v", *params)
	}
}

func TestExecuteSuggestsCommand(t *testing.T) {
	var help bytes.Buffer
	root, _, _ := testTree(&help)

	err := root.Execute(context.Background(), []string{"vioce"})
	var toolError *ToolError
	if !errors.As(err, &toolError) || toolError.Category != CategoryValidation {
		t.Fatalf("error = %v, want a validation ToolError", err)
	}
	if !strings.Contains(err.Error(), `did you mean "voice"`) {
		t.Errorf("error = %q", err)
	}
	if !strings.Contains(toolError.Hint, "vcstatus --help") {
		t.Errorf("hint = %q", toolError.Hint)
	}
}

func TestExecuteSuggestsFlag(t *testing.T) {
	var help bytes.Buffer
	root, _, ranWith := testTree(&help)

	err := root.Execute(context.Background(), []string{"voice", "greet", "--tims", "2"})
	if err == nil || !strings.Contains(err.Error(), "did you mean --times?") {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(err.(*ToolError).Hint, "vcstatus voice greet --help") {
		t.Errorf("hint = %q", err.(*ToolError).Hint)
	}
	if *ranWith != nil {
		t.Error("command ran despite the bad flag")
	}
}

func TestExecuteRequiresSubcommand(t *testing.T) {
	var help bytes.Buffer
	root, _, _ := testTree(&help)

	err := root.Execute(context.Background(), []string{"voice"})
	if err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(help.String(), "greet") {
		t.Errorf("help not printed:\n%s", help.String())
	}
}

func TestHelpOutput(t *testing.T) {
	var help bytes.Buffer
	root, _, ranWith := testTree(&help)

	if err := root.Execute(context.Background(), []string{"voice", "greet", "--help"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if *ranWith != nil {
		t.Error("--help ran the command")
	}
	output := help.String()
	for _, want := range []string{"Say hello", "Usage:\n  vcstatus voice greet [flags]", "--name", "who to greet", "--json"} {
		if !strings.Contains(output, want) {
			t.Errorf("help missing %q:\n%s", want, output)
		}
	}

	help.Reset()
	root.PrintHelp(&help)
	if !strings.Contains(help.String(), "Commands:") || !strings.Contains(help.String(), "version") {
		t.Errorf("root help:\n%s", help.String())
	}
}
