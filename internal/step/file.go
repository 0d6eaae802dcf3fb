package step

import (
	"context"
	"deployd/internal/apperrors"
	"deployd/internal/command"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"
)

// FileDeployment copies artifacts from the artifact directory to a path on
// every target host, backing up whatever it replaces.
type FileDeployment struct {
	Base
	Files       []string `json:"files"`
	TargetPath  string   `json:"targetPath"`
	TargetUser  string   `json:"targetUser,omitempty"`
	TargetHosts []string `json:"targetHosts"`
	Mode        string   `json:"mode,omitempty"`
}

const defaultFileMode = "0644"

func (s *FileDeployment) StepType() string { return TypeFileDeployment }

func (s *FileDeployment) Describe() string {
	return s.describe(fmt.Sprintf("deploy %d file(s) to %s", len(s.Files), s.TargetPath))
}

func (s *FileDeployment) Execute(ctx context.Context, env *Env) (*Result, error) {
	// Every source must exist before anything touches a remote host.
	sources := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		src, err := filepath.Abs(filepath.Join(env.ArtifactDir, f))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve artifact path %s: %w", f, err)
		}
		if _, err := os.Stat(src); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return failed(apperrors.NotFound("artifact", f), []string{"source file not found: " + src}), nil
			}
			return failed(apperrors.ExecutionFailure("file-deployment", err.Error()), nil), nil
		}
		sources = append(sources, src)
	}

	hosts, err := env.Inventory.TargetHosts(s.TargetHosts)
	if err != nil {
		return failed(err, nil), nil
	}

	invData, err := renderInventory(hosts)
	if err != nil {
		return nil, err
	}
	playData, err := renderPlaybook(s.playbook(sources, time.Now()))
	if err != nil {
		return nil, err
	}

	invPath, cleanupInv, err := env.writeWorkFile(s.Order, "inventory.yml", invData)
	defer cleanupInv()
	if err != nil {
		return nil, err
	}
	playPath, cleanupPlay, err := env.writeWorkFile(s.Order, "playbook.yml", playData)
	defer cleanupPlay()
	if err != nil {
		return nil, err
	}

	out := env.Runner.Run(ctx, &command.Command{
		Name:    toolName(env.Tools.AnsiblePlaybook, "ansible-playbook"),
		Args:    []string{"-i", invPath, playPath},
		Dir:     env.WorkDir,
		Timeout: env.remoteTimeout(),
	})
	return fromOutput(out), nil
}

// playbook builds the play: connectivity check, target directory, then a
// backup and copy per file.
func (s *FileDeployment) playbook(sources []string, now time.Time) ansiblePlay {
	mode := s.Mode
	if mode == "" {
		mode = defaultFileMode
	}
	stamp := now.Format("20060102150405")

	dirArgs := map[string]any{"path": s.TargetPath, "state": "directory"}
	if s.TargetUser != "" {
		dirArgs["owner"] = s.TargetUser
	}

	tasks := []ansibleTask{
		{Name: "check connectivity", Args: map[string]any{"ansible.builtin.ping": map[string]any{}}},
		{Name: "ensure " + s.TargetPath + " exists", Args: map[string]any{"ansible.builtin.file": dirArgs}},
	}

	for i, src := range sources {
		dest := path.Join(s.TargetPath, path.Base(filepath.ToSlash(s.Files[i])))
		backup := fmt.Sprintf("if [ -f %s ]; then cp -p %s %s; fi", quote(dest), quote(dest), quote(dest+".bak."+stamp))

		copyArgs := map[string]any{"src": src, "dest": dest, "mode": mode}
		if s.TargetUser != "" {
			copyArgs["owner"] = s.TargetUser
		}

		tasks = append(tasks,
			ansibleTask{Name: "back up " + dest, Args: map[string]any{"ansible.builtin.shell": backup}},
			ansibleTask{Name: "copy " + dest, Args: map[string]any{"ansible.builtin.copy": copyArgs}},
		)
	}

	return ansiblePlay{
		Name:        s.Describe(),
		Hosts:       "all",
		GatherFacts: false,
		Become:      true,
		Tasks:       tasks,
	}
}
