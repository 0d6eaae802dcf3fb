// Package command runs external tools (shell, ansible, psql, kubectl) with a
// bounded timeout and captures their combined output as lines.
package command

import (
	"bytes"
	"context"
	"deployd/internal/apperrors"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// Command describes one external process invocation.
type Command struct {
	Name    string
	Args    []string
	Env     []string // appended to the service environment
	Dir     string
	Timeout time.Duration
}

// String renders the command line with shell quoting, for job logs.
func (c *Command) String() string {
	return shellquote.Join(append([]string{c.Name}, c.Args...)...)
}

// Output is the captured result of a command.
type Output struct {
	ExitCode int
	Lines    []string
	TimedOut bool
	Err      error // nil when the process exited 0
}

// Failed reports whether the process did not run to a zero exit.
func (o *Output) Failed() bool {
	return o.Err != nil
}

// Runner executes commands. Implementations never return Go errors for
// expected failures; those are reported through Output.Err.
type Runner interface {
	Run(ctx context.Context, cmd *Command) *Output
}

// ExecRunner runs commands as local subprocesses.
type ExecRunner struct {
	// Hints maps a tool name to a remediation hint shown when it is missing.
	Hints map[string]string
}

// NewExecRunner creates a runner with install hints for the usual tools.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Hints: map[string]string{
		"psql":             "install the PostgreSQL client (postgresql-client) on the service host",
		"ansible-playbook": "install ansible-core on the service host",
		"ansible":          "install ansible-core on the service host",
		"kubectl":          "install kubectl and configure a kubeconfig for the service user",
	}}
}

// Run executes cmd and waits for it to exit or time out.
func (r *ExecRunner) Run(ctx context.Context, cmd *Command) *Output {
	path, err := exec.LookPath(cmd.Name)
	if err != nil {
		return &Output{ExitCode: -1, Err: apperrors.ToolUnavailable(cmd.Name, r.Hints[cmd.Name])}
	}

	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	// Children of a killed shell may hold the pipes open.
	c.WaitDelay = 5 * time.Second

	var buf bytes.Buffer
	c.Stdout = &buf
	c.Stderr = &buf

	runErr := c.Run()
	out := &Output{Lines: SplitLines(buf.String())}

	switch {
	case runErr == nil:
		return out
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		out.ExitCode = -1
		out.TimedOut = true
		out.Err = apperrors.ExecutionFailure(cmd.Name, fmt.Sprintf("timed out after %s", cmd.Timeout))
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			out.Err = apperrors.ExecutionFailure(cmd.Name, fmt.Sprintf("exit status %d", out.ExitCode))
		} else {
			out.ExitCode = -1
			out.Err = apperrors.ExecutionFailure(cmd.Name, runErr.Error())
		}
	}
	return out
}

// SplitLines splits output into non-empty lines with trailing whitespace removed.
func SplitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

var _ Runner = (*ExecRunner)(nil)
