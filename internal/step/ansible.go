package step

import (
	"deployd/internal/inventory"
	"fmt"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"
)

// Generated ansible documents. Only the keys deployd emits are modelled.

type ansibleHostVars struct {
	Host    string `yaml:"ansible_host"`
	User    string `yaml:"ansible_user,omitempty"`
	Port    int    `yaml:"ansible_port,omitempty"`
	KeyFile string `yaml:"ansible_ssh_private_key_file,omitempty"`
}

type ansibleGroup struct {
	Hosts map[string]ansibleHostVars `yaml:"hosts"`
}

type ansibleInventory struct {
	All ansibleGroup `yaml:"all"`
}

type ansibleTask struct {
	Name string         `yaml:"name"`
	Args map[string]any `yaml:",inline"`
}

type ansiblePlay struct {
	Name        string        `yaml:"name"`
	Hosts       string        `yaml:"hosts"`
	GatherFacts bool          `yaml:"gather_facts"`
	Become      bool          `yaml:"become"`
	Tasks       []ansibleTask `yaml:"tasks"`
}

func renderInventory(hosts []inventory.Host) ([]byte, error) {
	inv := ansibleInventory{All: ansibleGroup{Hosts: make(map[string]ansibleHostVars, len(hosts))}}
	for _, h := range hosts {
		inv.All.Hosts[h.Name] = ansibleHostVars{
			Host:    h.Address,
			User:    h.User,
			Port:    h.Port,
			KeyFile: h.KeyFile,
		}
	}
	data, err := yaml.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("failed to render inventory: %w", err)
	}
	return data, nil
}

func renderPlaybook(play ansiblePlay) ([]byte, error) {
	data, err := yaml.Marshal([]ansiblePlay{play})
	if err != nil {
		return nil, fmt.Errorf("failed to render playbook: %w", err)
	}
	return data, nil
}

func quote(s string) string {
	return shellquote.Join(s)
}
