package inventory

import (
	"deployd/internal/apperrors"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/samber/lo"
)

// Store reads inventory documents on every call. Nothing is cached so edits
// to the documents apply to the next step that resolves a name.
type Store struct {
	dir string
}

// NewStore creates a store over the given configuration directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the configuration directory.
func (s *Store) Dir() string {
	return s.dir
}

// Hosts returns the host inventory, or the fallback if the document is absent.
func (s *Store) Hosts() (*HostInventory, error) {
	var inv HostInventory
	found, err := s.read(HostsFile, &inv)
	if err != nil {
		return nil, err
	}
	if !found {
		fb := fallbackHosts
		fb.Hosts = slices.Clone(fallbackHosts.Hosts)
		return &fb, nil
	}
	return &inv, nil
}

// Databases returns the database inventory, or the fallback if absent.
func (s *Store) Databases() (*DBInventory, error) {
	var inv DBInventory
	found, err := s.read(DatabasesFile, &inv)
	if err != nil {
		return nil, err
	}
	if !found {
		return &DBInventory{
			Databases: slices.Clone(fallbackDatabases.Databases),
			Users:     slices.Clone(fallbackDatabases.Users),
		}, nil
	}
	return &inv, nil
}

// Playbooks returns the playbook catalog. Empty if the document is absent.
func (s *Store) Playbooks() ([]Playbook, error) {
	var doc playbookDocument
	if _, err := s.read(PlaybooksFile, &doc); err != nil {
		return nil, err
	}
	if doc.Playbooks == nil {
		return []Playbook{}, nil
	}
	return doc.Playbooks, nil
}

// HelmUpgrades returns the upgrade catalog. Empty if the document is absent.
func (s *Store) HelmUpgrades() ([]HelmUpgrade, error) {
	var doc helmDocument
	if _, err := s.read(UpgradesFile, &doc); err != nil {
		return nil, err
	}
	if doc.Upgrades == nil {
		return []HelmUpgrade{}, nil
	}
	return doc.Upgrades, nil
}

// Resolve looks a name up in the host inventory first, then the database
// inventory.
func (s *Store) Resolve(name string) (*Resolution, error) {
	hosts, err := s.Hosts()
	if err != nil {
		return nil, err
	}
	if h, ok := lo.Find(hosts.Hosts, func(h Host) bool { return h.Name == name }); ok {
		return &Resolution{Name: name, Kind: "host", Host: &h}, nil
	}

	dbs, err := s.Databases()
	if err != nil {
		return nil, err
	}
	if d, ok := lo.Find(dbs.Databases, func(d Database) bool { return d.Name == name }); ok {
		return &Resolution{Name: name, Kind: "database", Database: &d}, nil
	}

	return nil, apperrors.NotFound("inventory entry", name)
}

// TargetHosts resolves host names or group names to hosts, de-duplicated and
// in declaration order.
func (s *Store) TargetHosts(names []string) ([]Host, error) {
	inv, err := s.Hosts()
	if err != nil {
		return nil, err
	}

	var out []Host
	for _, name := range names {
		matched := lo.Filter(inv.Hosts, func(h Host, _ int) bool {
			return h.Name == name || slices.Contains(h.Groups, name)
		})
		if len(matched) == 0 {
			return nil, apperrors.NotFound("host", name)
		}
		out = append(out, matched...)
	}
	return lo.UniqBy(out, func(h Host) string { return h.Name }), nil
}

// Database resolves a named connection.
func (s *Store) Database(name string) (*Database, error) {
	inv, err := s.Databases()
	if err != nil {
		return nil, err
	}
	d, ok := lo.Find(inv.Databases, func(d Database) bool { return d.Name == name })
	if !ok {
		return nil, apperrors.NotFound("database", name)
	}
	return &d, nil
}

// DBUser resolves a named database login.
func (s *Store) DBUser(name string) (*DBUser, error) {
	inv, err := s.Databases()
	if err != nil {
		return nil, err
	}
	u, ok := lo.Find(inv.Users, func(u DBUser) bool { return u.Name == name })
	if !ok {
		return nil, apperrors.NotFound("database user", name)
	}
	return &u, nil
}

// Playbook resolves a named playbook spec.
func (s *Store) Playbook(name string) (*Playbook, error) {
	all, err := s.Playbooks()
	if err != nil {
		return nil, err
	}
	p, ok := lo.Find(all, func(p Playbook) bool { return p.Name == name })
	if !ok {
		return nil, apperrors.NotFound("playbook", name)
	}
	return &p, nil
}

// HelmUpgrade resolves a named upgrade spec.
func (s *Store) HelmUpgrade(name string) (*HelmUpgrade, error) {
	all, err := s.HelmUpgrades()
	if err != nil {
		return nil, err
	}
	u, ok := lo.Find(all, func(u HelmUpgrade) bool { return u.Name == name })
	if !ok {
		return nil, apperrors.NotFound("helm upgrade", name)
	}
	return &u, nil
}

// read decodes a document. found is false when the file does not exist.
func (s *Store) read(file string, v any) (found bool, err error) {
	path := filepath.Join(s.dir, file)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Internal("inventory.read", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, apperrors.Internal("inventory.read", fmt.Errorf("%s: %w", file, err))
	}
	return true, nil
}
