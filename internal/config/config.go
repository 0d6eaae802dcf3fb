// Package config provides configuration loading from environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// ServiceConfig holds configuration for the deployment service.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	ConfigDir         string // inventory, db inventory, playbooks, templates, users
	ArtifactDir       string // source files for file deployments
	SQLDir            string // SQL scripts for sql deployments
	WorkDir           string // generated playbooks and inventories
	HistoryFile       string // job history snapshot
	JWTSecret         string
	TokenExpiry       time.Duration
	UsersFile         string
	MaxConcurrentJobs int // 0 means unlimited
	ShutdownDrainWait time.Duration
	ShutdownJobWait   time.Duration // bound on waiting for running deployments
	Tools             ToolConfig
}

// ToolConfig names the external tools steps shell out to and their timeouts.
type ToolConfig struct {
	SQLClient       string
	AnsiblePlaybook string
	Ansible         string
	Kubectl         string
	DockerExec      bool
	ShellTimeout    time.Duration
	RemoteTimeout   time.Duration
}

// LoadServiceConfig loads service configuration from environment variables.
func LoadServiceConfig() *ServiceConfig {
	configDir := GetEnv("CONFIG_DIR", "./config")
	return &ServiceConfig{
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		ConfigDir:         configDir,
		ArtifactDir:       GetEnv("ARTIFACT_DIR", "./artifacts"),
		SQLDir:            GetEnv("SQL_DIR", "./sql"),
		WorkDir:           GetEnv("WORK_DIR", os.TempDir()),
		HistoryFile:       GetEnv("HISTORY_FILE", "./data/deployments.json"),
		JWTSecret:         GetSecretFile(GetEnv("JWT_SECRET_FILE", "")),
		TokenExpiry:       GetDurationEnv("TOKEN_EXPIRY", 8*time.Hour),
		UsersFile:         GetEnv("USERS_FILE", filepath.Join(configDir, "users.json")),
		MaxConcurrentJobs: GetIntEnv("MAX_CONCURRENT_JOBS", 0),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
		ShutdownJobWait:   GetDurationEnv("SHUTDOWN_JOB_WAIT", 60*time.Second),
		Tools: ToolConfig{
			SQLClient:       GetEnv("SQL_CLIENT", "psql"),
			AnsiblePlaybook: GetEnv("ANSIBLE_PLAYBOOK_BIN", "ansible-playbook"),
			Ansible:         GetEnv("ANSIBLE_BIN", "ansible"),
			Kubectl:         GetEnv("KUBECTL_BIN", "kubectl"),
			DockerExec:      GetBoolEnv("DOCKER_EXEC", false),
			ShellTimeout:    GetDurationEnv("SHELL_TIMEOUT", 30*time.Second),
			RemoteTimeout:   GetDurationEnv("REMOTE_TIMEOUT", 300*time.Second),
		},
	}
}
