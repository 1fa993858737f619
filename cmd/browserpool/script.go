package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/browserpool/pkg/tools"
	"github.com/entrhq/browserpool/pkg/tools/browser"
)

// Script is a YAML list of browser actions run in order.
//
//	session_id: shop
//	stop_on_error: true
//	steps:
//	  - action: navigate
//	    url: https://example.com
//	  - action: click
//	    text: More information
type Script struct {
	// SessionID is the default session for steps that name none. When empty,
	// each step continues in the session the previous step used.
	SessionID   string `yaml:"session_id"`
	StopOnError bool   `yaml:"stop_on_error"`
	Steps       []Step `yaml:"steps"`
}

// Step is one browser action. Its fields mirror the tool arguments.
type Step struct {
	Action    string `yaml:"action"`
	URL       string `yaml:"url,omitempty"`
	Selector  string `yaml:"selector,omitempty"`
	Text      string `yaml:"text,omitempty"`
	Timeout   int    `yaml:"timeout,omitempty"`
	SessionID string `yaml:"session_id,omitempty"`
	FullPage  bool   `yaml:"full_page,omitempty"`
	WaitUntil string `yaml:"wait_until,omitempty"`
}

// Args returns the step as tool arguments, leaving out unset fields.
func (s Step) Args() map[string]string {
	args := map[string]string{"action": s.Action}
	set := func(key, value string) {
		if value != "" {
			args[key] = value
		}
	}
	set("url", s.URL)
	set("selector", s.Selector)
	set("text", s.Text)
	set("session_id", s.SessionID)
	set("wait_until", s.WaitUntil)
	if s.Timeout > 0 {
		args["timeout"] = strconv.Itoa(s.Timeout)
	}
	if s.FullPage {
		args["full_page"] = "true"
	}
	return args
}

// parseScript decodes and validates a YAML script.
func parseScript(data []byte) (*Script, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("script has no steps")
	}
	for i, step := range script.Steps {
		if strings.TrimSpace(step.Action) == "" {
			return nil, fmt.Errorf("step %d: action is required", i+1)
		}
	}
	return &script, nil
}

// loadCalls reads path and returns the tool calls it describes. YAML files
// are scripts; anything else, including "-" for stdin, is scanned for XML
// tool calls.
func loadCalls(path string, stdin io.Reader) (*Script, []*tools.ToolCall, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read script: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		script, err := parseScript(data)
		if err != nil {
			return nil, nil, err
		}
		return script, nil, nil
	}

	calls, err := tools.ParseToolCalls(string(data))
	if err != nil {
		return nil, nil, err
	}
	if len(calls) == 0 {
		return nil, nil, fmt.Errorf("no tool calls found in %s", path)
	}
	return nil, calls, nil
}

// executor runs one tool call.
type executor interface {
	Execute(ctx context.Context, call *tools.ToolCall) tools.Result
}

// runScript executes the steps in order and writes each result to out.
// It returns the number of failed steps.
func runScript(ctx context.Context, exec executor, script *Script, out io.Writer) (int, error) {
	failed := 0
	current := script.SessionID
	for i, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		if step.SessionID == "" {
			step.SessionID = current
		}

		result := exec.Execute(ctx, tools.NewToolCall(browser.ToolName, step.Args()))
		writeResult(out, i+1, step.Action, result)

		if id, ok := result.Metadata["session_id"].(string); ok && id != "" && script.SessionID == "" {
			current = id
		}
		if step.Action == browser.ActionCloseSession && step.SessionID == current {
			current = script.SessionID
		}
		if result.Err != nil {
			failed++
			if script.StopOnError {
				return failed, fmt.Errorf("step %d (%s) failed: %w", i+1, step.Action, result.Err)
			}
		}
	}
	return failed, nil
}

// runCalls executes parsed XML tool calls in order.
func runCalls(ctx context.Context, exec executor, calls []*tools.ToolCall, out io.Writer) (int, error) {
	failed := 0
	for i, call := range calls {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		result := exec.Execute(ctx, call)
		writeResult(out, i+1, call.ToolName, result)
		if result.Err != nil {
			failed++
		}
	}
	return failed, nil
}

func writeResult(out io.Writer, n int, label string, result tools.Result) {
	fmt.Fprintf(out, "=== %d. %s ===\n", n, label)
	switch {
	case result.Output != "":
		fmt.Fprintln(out, result.Output)
	case result.Err != nil:
		fmt.Fprintf(out, "Error: %v\n", result.Err)
	}
	fmt.Fprintln(out)
}
