// Package execjson runs helper commands that take JSON on stdin and answer
// with JSON on stdout. Model backends without a Go client are wrapped this
// way.
package execjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/loqalabs/file2text/internal/fault"
	"github.com/mattn/go-shellwords"
)

// oomMarkers are stderr fragments that identify an out-of-memory failure
// of the inference backend.
var oomMarkers = []string{
	"out of memory",
	"outofmemoryerror",
	"cuda error: out of memory",
	"cannot allocate memory",
	"std::bad_alloc",
}

// Command is a parsed helper command line.
type Command struct {
	name string
	args []string
	env  []string
}

// Parse splits command with shell quoting rules.
func Parse(command string) (*Command, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("command is empty")
	}
	return &Command{name: args[0], args: args[1:]}, nil
}

// WithEnv returns a copy of c that adds KEY=value pairs to the helper's
// environment.
func (c *Command) WithEnv(kv ...string) *Command {
	clone := *c
	clone.env = append(append([]string(nil), c.env...), kv...)
	return &clone
}

// Name returns the executable.
func (c *Command) Name() string { return c.name }

// Run executes the command with extra arguments appended, writes input as
// JSON to stdin when non-nil and decodes stdout into output. Out-of-memory
// failures are reported as resource errors and a missing executable as a
// configuration error.
func (c *Command) Run(ctx context.Context, extra []string, input, output any) error {
	args := append(append([]string{}, c.args...), extra...)
	cmd := exec.CommandContext(ctx, c.name, args...)
	if len(c.env) > 0 {
		cmd.Env = append(os.Environ(), c.env...)
	}
	if input != nil {
		payload, err := json.Marshal(input)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		cmd.Stdin = bytes.NewReader(payload)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fault.Configuration(c.name, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		detail := strings.TrimSpace(stderr.String())
		if isOutOfMemory(detail) {
			return fault.Resource(c.name, fmt.Errorf("%w: %s", err, detail))
		}
		return fmt.Errorf("%s failed: %w: %s", c.name, err, detail)
	}
	if output == nil {
		return nil
	}
	if err := json.Unmarshal(stdout.Bytes(), output); err != nil {
		return fmt.Errorf("decode %s response: %w", c.name, err)
	}
	return nil
}

func isOutOfMemory(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, marker := range oomMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
