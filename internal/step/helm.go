package step

import (
	"context"
	"deployd/internal/apperrors"
	"deployd/internal/command"
	"fmt"

	"github.com/kballard/go-shellquote"
)

// HelmUpgrade runs a named, pre-built upgrade command in a pod, a container
// or on the service host, depending on the upgrade spec.
type HelmUpgrade struct {
	Base
	Upgrade string `json:"upgrade"`
}

func (s *HelmUpgrade) StepType() string { return TypeHelmUpgrade }

func (s *HelmUpgrade) Describe() string { return s.describe("run upgrade " + s.Upgrade) }

func (s *HelmUpgrade) Execute(ctx context.Context, env *Env) (*Result, error) {
	spec, err := env.Inventory.HelmUpgrade(s.Upgrade)
	if err != nil {
		return failed(err, nil), nil
	}

	argv, err := shellquote.Split(spec.Command)
	if err != nil || len(argv) == 0 {
		return failed(apperrors.Validation("command", fmt.Sprintf("upgrade %s has an unparsable command", spec.Name)), nil), nil
	}

	switch {
	case spec.Container != "":
		if env.Docker == nil {
			return failed(apperrors.ToolUnavailable("docker", "set DOCKER_EXEC=true and mount the Docker socket"), nil), nil
		}
		return fromOutput(env.Docker.Exec(ctx, spec.Container, argv, env.remoteTimeout())), nil

	case spec.Pod != "":
		args := []string{"exec"}
		if spec.Namespace != "" {
			args = append(args, "-n", spec.Namespace)
		}
		args = append(args, spec.Pod, "--")
		args = append(args, argv...)
		return fromOutput(env.Runner.Run(ctx, &command.Command{
			Name:    toolName(env.Tools.Kubectl, "kubectl"),
			Args:    args,
			Dir:     env.WorkDir,
			Timeout: env.remoteTimeout(),
		})), nil

	default:
		return fromOutput(env.Runner.Run(ctx, &command.Command{
			Name:    "sh",
			Args:    []string{"-c", spec.Command},
			Dir:     env.WorkDir,
			Timeout: env.remoteTimeout(),
		})), nil
	}
}
