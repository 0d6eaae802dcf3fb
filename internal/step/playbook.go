package step

import (
	"context"
	"deployd/internal/command"
	"strconv"
)

// RemotePlaybook runs a named playbook from the playbook catalog.
type RemotePlaybook struct {
	Base
	Playbook string `json:"playbook"`
}

func (s *RemotePlaybook) StepType() string { return TypeRemotePlaybook }

func (s *RemotePlaybook) Describe() string { return s.describe("run playbook " + s.Playbook) }

func (s *RemotePlaybook) Execute(ctx context.Context, env *Env) (*Result, error) {
	spec, err := env.Inventory.Playbook(s.Playbook)
	if err != nil {
		return failed(err, nil), nil
	}

	var args []string
	if spec.Inventory != "" {
		args = append(args, "-i", spec.Inventory)
	}
	args = append(args, spec.Path)
	if spec.Forks > 0 {
		args = append(args, "--forks", strconv.Itoa(spec.Forks))
	}
	if spec.Environment != "" {
		args = append(args, "-e", "env="+spec.Environment)
	}
	for _, vars := range spec.ExtraVars {
		args = append(args, "-e", "@"+vars)
	}
	if spec.VaultPasswordFile != "" {
		args = append(args, "--vault-password-file", spec.VaultPasswordFile)
	}

	out := env.Runner.Run(ctx, &command.Command{
		Name:    toolName(env.Tools.AnsiblePlaybook, "ansible-playbook"),
		Args:    args,
		Dir:     env.WorkDir,
		Timeout: env.remoteTimeout(),
	})
	return fromOutput(out), nil
}
