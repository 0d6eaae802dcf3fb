// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"deployd/internal/apperrors"
	"deployd/internal/command"
	"fmt"
	"strings"
	"sync"
)

// Response is a scripted result for commands whose rendered line contains Match.
type Response struct {
	Match    string
	ExitCode int
	Lines    []string
	TimedOut bool
	Missing  bool // simulate the tool not being installed
}

// FakeRunner records every command and answers from scripted responses.
// Commands with no matching response succeed with no output.
type FakeRunner struct {
	mu        sync.Mutex
	responses []Response
	calls     []*command.Command
	// OnRun, if set, is called before a response is chosen.
	OnRun func(cmd *command.Command)
}

// NewFakeRunner creates a runner with the given scripted responses. The first
// matching response wins.
func NewFakeRunner(responses ...Response) *FakeRunner {
	return &FakeRunner{responses: responses}
}

// Run implements command.Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd *command.Command) *command.Output {
	if f.OnRun != nil {
		f.OnRun(cmd)
	}

	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	responses := f.responses
	f.mu.Unlock()

	line := cmd.String()
	for _, r := range responses {
		if !strings.Contains(line, r.Match) {
			continue
		}
		out := &command.Output{ExitCode: r.ExitCode, Lines: r.Lines, TimedOut: r.TimedOut}
		switch {
		case r.Missing:
			out.ExitCode = -1
			out.Err = apperrors.ToolUnavailable(cmd.Name, "install "+cmd.Name)
		case r.TimedOut:
			out.ExitCode = -1
			out.Err = apperrors.ExecutionFailure(cmd.Name, fmt.Sprintf("timed out after %s", cmd.Timeout))
		case r.ExitCode != 0:
			out.Err = apperrors.ExecutionFailure(cmd.Name, fmt.Sprintf("exit status %d", r.ExitCode))
		}
		return out
	}
	return &command.Output{}
}

// Calls returns the commands run so far.
func (f *FakeRunner) Calls() []*command.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*command.Command(nil), f.calls...)
}

// CallCount returns how many commands contained match.
func (f *FakeRunner) CallCount(match string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.Contains(c.String(), match) {
			n++
		}
	}
	return n
}

var _ command.Runner = (*FakeRunner)(nil)
