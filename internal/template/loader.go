package template

import (
	"context"
	"deployd/internal/apperrors"
	"deployd/internal/step"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Loader reads template documents from a directory. Every Load reads the
// document afresh, so a run sees the template as it was when the run started.
// The catalog listing is cached and dropped whenever the directory changes.
type Loader struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	catalog []Summary // nil means stale
}

// NewLoader creates a loader over dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, logger: slog.With("component", "templates")}
}

// Dir returns the template directory.
func (l *Loader) Dir() string {
	return l.dir
}

func (l *Loader) path(name string) (string, error) {
	if !namePattern.MatchString(name) {
		return "", apperrors.Validation("name", fmt.Sprintf("invalid template name %q", name))
	}
	return filepath.Join(l.dir, name+".json"), nil
}

func (l *Loader) read(name string) ([]byte, error) {
	path, err := l.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NotFound("template", name)
	}
	if err != nil {
		return nil, apperrors.Internal("template.read", err)
	}
	return data, nil
}

// Get returns the stored template without variable substitution.
func (l *Loader) Get(name string) (*Template, error) {
	data, err := l.read(name)
	if err != nil {
		return nil, err
	}
	t, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if t.Name == "" {
		t.Name = name
	}
	return t, nil
}

// Load resolves a template for a run: placeholders are substituted, the
// result is validated, and steps are returned in ascending order.
func (l *Loader) Load(name string, vars map[string]string) (*Template, error) {
	data, err := l.read(name)
	if err != nil {
		return nil, err
	}
	t, err := Parse(Substitute(data, vars))
	if err != nil {
		return nil, err
	}
	if t.Name == "" {
		t.Name = name
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.Steps = step.Sorted(t.Steps)
	t.TotalSteps = len(t.Steps)
	return t, nil
}

// List returns the catalog sorted by name. Unparsable documents are skipped
// with a warning.
func (l *Loader) List() ([]Summary, error) {
	l.mu.RLock()
	cached := l.catalog
	l.mu.RUnlock()
	if cached != nil {
		return slices.Clone(cached), nil
	}

	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Summary{}, nil
	}
	if err != nil {
		return nil, apperrors.Internal("template.list", err)
	}

	catalog := make([]Summary, 0, len(entries))
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok || strings.HasPrefix(name, ".") {
			continue
		}
		t, err := l.Get(name)
		if err != nil {
			l.logger.Warn("Skipping unreadable template", "name", name, "error", err)
			continue
		}
		catalog = append(catalog, t.summary())
	}
	slices.SortFunc(catalog, func(a, b Summary) int { return strings.Compare(a.Name, b.Name) })

	l.mu.Lock()
	l.catalog = catalog
	l.mu.Unlock()
	return slices.Clone(catalog), nil
}

// Save validates t and writes it as <name>.json, replacing any existing
// document atomically. TotalSteps is recomputed.
func (l *Loader) Save(t *Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	path, err := l.path(t.Name)
	if err != nil {
		return err
	}
	t.TotalSteps = len(t.Steps)

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return apperrors.Internal("template.save", err)
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return apperrors.Internal("template.save", err)
	}

	tmp, err := os.CreateTemp(l.dir, ".template-*.tmp")
	if err != nil {
		return apperrors.Internal("template.save", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.Internal("template.save", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Internal("template.save", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperrors.Internal("template.save", err)
	}

	l.invalidate()
	l.logger.Info("Template saved", "name", t.Name, "steps", t.TotalSteps)
	return nil
}

func (l *Loader) invalidate() {
	l.mu.Lock()
	l.catalog = nil
	l.mu.Unlock()
}

// Watch drops the cached catalog whenever a document in the directory is
// created, written, renamed or removed. It returns when ctx is done.
func (l *Loader) Watch(ctx context.Context) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create template dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", l.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".json") || event.Op == fsnotify.Chmod {
				continue
			}
			l.logger.Debug("Template directory changed", "file", filepath.Base(event.Name), "op", event.Op.String())
			l.invalidate()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("Template watcher error", "error", err)
		}
	}
}
