package step

import (
	"context"
	"deployd/internal/command"
	"fmt"
	"slices"
	"strings"
)

// ServiceOperation applies a systemd operation to a unit on every target host.
type ServiceOperation struct {
	Base
	Service     string   `json:"service"`
	Operation   string   `json:"operation"`
	TargetHosts []string `json:"targetHosts"`
}

// ServiceOperations lists the accepted operations.
var ServiceOperations = []string{"start", "stop", "restart", "reload", "enable", "disable", "status", "daemon-reload"}

// unitDirs are probed, in order, for the unit file before the operation runs.
var unitDirs = []string{"/etc/systemd/system", "/usr/lib/systemd/system", "/lib/systemd/system"}

func (s *ServiceOperation) StepType() string { return TypeServiceOperation }

func (s *ServiceOperation) Describe() string {
	if s.Operation == "daemon-reload" {
		return s.describe("systemctl daemon-reload")
	}
	return s.describe(fmt.Sprintf("%s %s", s.Operation, s.unit()))
}

func (s *ServiceOperation) Execute(ctx context.Context, env *Env) (*Result, error) {
	if !slices.Contains(ServiceOperations, s.Operation) {
		return failed(fmt.Errorf("unsupported service operation %q", s.Operation), nil), nil
	}

	hosts, err := env.Inventory.TargetHosts(s.TargetHosts)
	if err != nil {
		return failed(err, nil), nil
	}
	invData, err := renderInventory(hosts)
	if err != nil {
		return nil, err
	}
	invPath, cleanup, err := env.writeWorkFile(s.Order, "inventory.yml", invData)
	defer cleanup()
	if err != nil {
		return nil, err
	}

	out := env.Runner.Run(ctx, &command.Command{
		Name:    toolName(env.Tools.Ansible, "ansible"),
		Args:    []string{"all", "-i", invPath, "--become", "-m", "ansible.builtin.shell", "-a", s.script()},
		Dir:     env.WorkDir,
		Timeout: env.remoteTimeout(),
	})

	res := fromOutput(out)
	res.Warnings = command.Inspect(out.Lines).Warnings
	return res, nil
}

func (s *ServiceOperation) unit() string {
	if strings.Contains(s.Service, ".") {
		return s.Service
	}
	return s.Service + ".service"
}

// script renders the remote shell for the operation. The unit is probed in
// the standard locations first; status is a read-only probe and never fails
// the host.
func (s *ServiceOperation) script() string {
	if s.Operation == "daemon-reload" {
		return "systemctl daemon-reload"
	}

	unit := quote(s.unit())
	var b strings.Builder
	fmt.Fprintf(&b, "unit=%s; found=''; ", unit)
	fmt.Fprintf(&b, "for d in %s; do if [ -f \"$d/$unit\" ]; then found=\"$d/$unit\"; break; fi; done; ", strings.Join(unitDirs, " "))
	b.WriteString("if [ -z \"$found\" ]; then echo \"WARNING: unit $unit not found in standard locations\"; fi; ")

	if s.Operation == "status" {
		b.WriteString("systemctl status \"$unit\" --no-pager || true")
		return b.String()
	}
	fmt.Fprintf(&b, "systemctl %s \"$unit\" && (systemctl status \"$unit\" --no-pager || true)", s.Operation)
	return b.String()
}
