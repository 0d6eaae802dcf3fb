package step

import (
	"context"
	"deployd/internal/command"
	"time"
)

// ShellCommand runs a command string through sh on the service host.
type ShellCommand struct {
	Base
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

func (s *ShellCommand) StepType() string { return TypeShellCommand }

func (s *ShellCommand) Describe() string { return s.describe("run shell command") }

func (s *ShellCommand) Execute(ctx context.Context, env *Env) (*Result, error) {
	timeout := env.shellTimeout()
	if s.TimeoutSeconds > 0 {
		timeout = time.Duration(min(s.TimeoutSeconds, MaxTimeoutSeconds)) * time.Second
	}

	out := env.Runner.Run(ctx, &command.Command{
		Name:    "sh",
		Args:    []string{"-c", s.Command},
		Dir:     env.WorkDir,
		Timeout: timeout,
	})
	return fromOutput(out), nil
}
