// Package step defines the deployment step kinds a template is made of and
// how each one is executed against the inventory.
package step

import (
	"context"
	"deployd/internal/command"
	"deployd/internal/config"
	"deployd/internal/inventory"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Step type discriminators as they appear in template documents.
const (
	TypeShellCommand     = "shell-command"
	TypeFileDeployment   = "file-deployment"
	TypeServiceOperation = "service-operation"
	TypeSQLDeployment    = "sql-deployment"
	TypeRemotePlaybook   = "remote-playbook"
	TypeHelmUpgrade      = "helm-upgrade"
)

// Step is one unit of work inside a template.
// Execute reports expected failures (non-zero exit, missing file, timeout)
// through the Result and only returns an error for faults it cannot express
// as an outcome, such as failing to write a working file.
type Step interface {
	StepOrder() int
	StepType() string
	Describe() string
	Execute(ctx context.Context, env *Env) (*Result, error)
}

// Base carries the fields shared by every step kind.
type Base struct {
	Order       int    `json:"order"`
	Description string `json:"description,omitempty"`
}

func (b Base) StepOrder() int { return b.Order }

func (b Base) describe(fallback string) string {
	if b.Description != "" {
		return b.Description
	}
	return fallback
}

// Outcome is the terminal state of a step.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Result is what a step produced.
type Result struct {
	Outcome  Outcome
	Output   []string
	Warnings []string
	Err      error // reason for a failed outcome
}

// Succeeded reports whether the step completed successfully.
func (r *Result) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

func succeeded(output, warnings []string) *Result {
	return &Result{Outcome: OutcomeSuccess, Output: output, Warnings: warnings}
}

func failed(err error, output []string) *Result {
	return &Result{Outcome: OutcomeFailed, Output: output, Err: err}
}

// fromOutput applies the exit-code contract shared by plain commands.
func fromOutput(out *command.Output) *Result {
	if out.Failed() {
		return failed(out.Err, out.Lines)
	}
	return succeeded(out.Lines, nil)
}

// Resolver looks symbolic names up in the inventory. It is consulted on every
// execution so inventory edits apply to the next step that needs them.
type Resolver interface {
	TargetHosts(names []string) ([]inventory.Host, error)
	Database(name string) (*inventory.Database, error)
	DBUser(name string) (*inventory.DBUser, error)
	Playbook(name string) (*inventory.Playbook, error)
	HelmUpgrade(name string) (*inventory.HelmUpgrade, error)
}

// ContainerExecer runs a command inside a named container.
type ContainerExecer interface {
	Exec(ctx context.Context, containerName string, argv []string, timeout time.Duration) *command.Output
}

// Env is everything a step needs from the service to execute.
type Env struct {
	JobID       string
	Runner      command.Runner
	Docker      ContainerExecer // nil when container exec is disabled
	Inventory   Resolver
	ArtifactDir string
	SQLDir      string
	WorkDir     string
	Tools       config.ToolConfig
}

// writeWorkFile writes a generated file whose name is unique to the job and
// step. The returned cleanup removes it.
func (e *Env) writeWorkFile(order int, suffix string, data []byte) (string, func(), error) {
	path := filepath.Join(e.WorkDir, fmt.Sprintf("deployd-%s-step%d-%s", e.JobID, order, suffix))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", func() {}, fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return path, func() { _ = os.Remove(path) }, nil
}

func (e *Env) remoteTimeout() time.Duration {
	if e.Tools.RemoteTimeout > 0 {
		return e.Tools.RemoteTimeout
	}
	return 300 * time.Second
}

func (e *Env) shellTimeout() time.Duration {
	if e.Tools.ShellTimeout > 0 {
		return e.Tools.ShellTimeout
	}
	return 30 * time.Second
}

func toolName(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}
