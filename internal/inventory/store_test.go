package inventory

import (
	"deployd/internal/apperrors"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestStore_Fallbacks(t *testing.T) {
	t.Parallel()
	s := NewStore(t.TempDir())

	hosts, err := s.Hosts()
	if err != nil {
		t.Fatalf("Hosts() error = %v", err)
	}
	if len(hosts.Hosts) != 1 || hosts.Hosts[0].Name != "localhost" || hosts.Hosts[0].Address != "127.0.0.1" {
		t.Errorf("Expected localhost fallback, got %+v", hosts.Hosts)
	}
	if hosts.Hosts[0].User != "deploy" || hosts.Hosts[0].Port != 22 {
		t.Errorf("Expected deploy@:22 fallback, got %+v", hosts.Hosts[0])
	}

	dbs, err := s.Databases()
	if err != nil {
		t.Fatalf("Databases() error = %v", err)
	}
	if len(dbs.Databases) != 1 || dbs.Databases[0].Port != 5432 || dbs.Databases[0].Database != "postgres" {
		t.Errorf("Expected local postgres fallback, got %+v", dbs.Databases)
	}

	playbooks, err := s.Playbooks()
	if err != nil || len(playbooks) != 0 {
		t.Errorf("Expected empty playbooks, got %v, %v", playbooks, err)
	}
	upgrades, err := s.HelmUpgrades()
	if err != nil || len(upgrades) != 0 {
		t.Errorf("Expected empty upgrades, got %v, %v", upgrades, err)
	}
}

func TestStore_FallbackIsNotShared(t *testing.T) {
	t.Parallel()
	s := NewStore(t.TempDir())

	first, _ := s.Hosts()
	first.Hosts[0].Address = "10.9.9.9"

	second, _ := s.Hosts()
	if second.Hosts[0].Address != "127.0.0.1" {
		t.Errorf("Expected fallback to be unaffected by caller mutation, got %s", second.Hosts[0].Address)
	}
}

func TestStore_Resolve(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDoc(t, dir, HostsFile, `{"hosts":[{"name":"shared","address":"10.0.0.1"},{"name":"web1","address":"10.0.0.2"}]}`)
	writeDoc(t, dir, DatabasesFile, `{"databases":[{"name":"shared","host":"10.0.0.50","database":"x"},{"name":"orders","host":"10.0.0.51","database":"orders"}]}`)
	s := NewStore(dir)

	tests := []struct {
		name     string
		wantKind string
		wantErr  error
	}{
		{"web1", "host", nil},
		{"orders", "database", nil},
		{"shared", "host", nil},
		{"missing", "", apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Resolve(tt.name)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if res.Kind != tt.wantKind {
				t.Errorf("Expected kind %s, got %s", tt.wantKind, res.Kind)
			}
		})
	}
}

func TestStore_TargetHosts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDoc(t, dir, HostsFile, `{"hosts":[
	  {"name":"web1","address":"10.0.0.1","groups":["web","all-app"]},
	  {"name":"web2","address":"10.0.0.2","groups":["web","all-app"]},
	  {"name":"api1","address":"10.0.0.3","groups":["all-app"]}
	]}`)
	s := NewStore(dir)

	hosts, err := s.TargetHosts([]string{"web", "web1", "api1"})
	if err != nil {
		t.Fatalf("TargetHosts() error = %v", err)
	}
	if len(hosts) != 3 {
		t.Errorf("Expected 3 de-duplicated hosts, got %d", len(hosts))
	}

	if _, err := s.TargetHosts([]string{"web", "db9"}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown host, got %v", err)
	}
}

func TestStore_ReadsOnEveryCall(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDoc(t, dir, PlaybooksFile, `{"playbooks":[{"name":"site","path":"/a.yml"}]}`)
	s := NewStore(dir)

	p, err := s.Playbook("site")
	if err != nil || p.Path != "/a.yml" {
		t.Fatalf("Expected /a.yml, got %v, %v", p, err)
	}

	writeDoc(t, dir, PlaybooksFile, `{"playbooks":[{"name":"site","path":"/b.yml"}]}`)
	p, err = s.Playbook("site")
	if err != nil || p.Path != "/b.yml" {
		t.Errorf("Expected edited path /b.yml, got %v, %v", p, err)
	}
}

func TestStore_MalformedDocument(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDoc(t, dir, HostsFile, `{"hosts":[`)
	s := NewStore(dir)

	if _, err := s.Hosts(); !errors.Is(err, apperrors.ErrInternal) {
		t.Errorf("Expected ErrInternal for malformed document, got %v", err)
	}
}

func TestStore_Lookups(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDoc(t, dir, UpgradesFile, `{"upgrades":[{"name":"api","pod":"toolbox-0","command":"helm upgrade api ./chart"}]}`)
	s := NewStore(dir)

	if _, err := s.HelmUpgrade("api"); err != nil {
		t.Errorf("HelmUpgrade() error = %v", err)
	}
	if _, err := s.HelmUpgrade("web"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := s.DBUser("postgres"); err != nil {
		t.Errorf("Expected fallback postgres user, got %v", err)
	}
	if _, err := s.Database("nope"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
