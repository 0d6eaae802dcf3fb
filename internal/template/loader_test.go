package template

import (
	"context"
	"deployd/internal/apperrors"
	"deployd/internal/step"
	"deployd/internal/testutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const releaseDoc = `{
  "name": "release",
  "description": "Release {{ version }}",
  "ticket": "OPS-42",
  "steps": [
    {"type": "shell-command", "order": 2, "description": "announce", "command": "echo deploying {{version}} to {{ env }}"},
    {"type": "sql-deployment", "order": 1, "database": "local", "file": "{{ version }}/migrate.sql"},
    {"type": "helm-upgrade", "order": 3, "upgrade": "api"}
  ]
}`

func newLoader(t *testing.T, files map[string]string) *Loader {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, files)
	return NewLoader(dir)
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()
	l := newLoader(t, map[string]string{"release.json": releaseDoc})

	tpl, err := l.Load("release", map[string]string{"version": "1.4.0"})
	require.NoError(t, err)

	assert.Equal(t, "Release 1.4.0", tpl.Description)
	assert.Equal(t, 3, tpl.TotalSteps)
	require.Len(t, tpl.Steps, 3)
	for i, s := range tpl.Steps {
		assert.Equal(t, i+1, s.StepOrder())
	}

	sql := tpl.Steps[0].(*step.SQLDeployment)
	assert.Equal(t, "1.4.0/migrate.sql", sql.File)

	shell := tpl.Steps[1].(*step.ShellCommand)
	assert.Equal(t, "echo deploying 1.4.0 to {{ env }}", shell.Command, "unknown placeholders stay verbatim")
}

func TestLoader_LoadIsASnapshot(t *testing.T) {
	t.Parallel()
	l := newLoader(t, map[string]string{"release.json": releaseDoc})

	first, err := l.Load("release", nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(l.Dir(), "release.json"), []byte(`{"name":"release","steps":[{"type":"shell-command","order":1,"command":"true"}]}`), 0o644))

	assert.Len(t, first.Steps, 3, "a loaded template is not affected by later edits")

	second, err := l.Load("release", nil)
	require.NoError(t, err)
	assert.Len(t, second.Steps, 1)
}

func TestLoader_LoadNotFound(t *testing.T) {
	t.Parallel()
	l := newLoader(t, nil)

	_, err := l.Load("missing", nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = l.Get("missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLoader_LoadRejectsBadNames(t *testing.T) {
	t.Parallel()
	l := newLoader(t, nil)

	_, err := l.Load("../secrets", nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestLoader_LoadInvalidDocument(t *testing.T) {
	t.Parallel()
	l := newLoader(t, map[string]string{
		"broken.json":  `{"name":"broken","steps":[{"type":"teleport","order":1}]}`,
		"dupes.json":   `{"name":"dupes","steps":[{"type":"shell-command","order":1,"command":"a"},{"type":"shell-command","order":1,"command":"b"}]}`,
		"garbage.json": `not json`,
	})

	for _, name := range []string{"broken", "dupes", "garbage"} {
		_, err := l.Load(name, nil)
		assert.ErrorIs(t, err, apperrors.ErrValidation, name)
	}
}

func TestLoader_SubstitutionEscapesValues(t *testing.T) {
	t.Parallel()
	l := newLoader(t, map[string]string{
		"t.json": `{"name":"t","steps":[{"type":"shell-command","order":1,"command":"echo {{ msg }}"}]}`,
	})

	tpl, err := l.Load("t", map[string]string{"msg": `say "hi"` + "\n" + `","order":9`})
	require.NoError(t, err)
	require.Len(t, tpl.Steps, 1)
	assert.Equal(t, 1, tpl.Steps[0].StepOrder())
	assert.Equal(t, "echo say \"hi\"\n\",\"order\":9", tpl.Steps[0].(*step.ShellCommand).Command)
}

func TestLoader_List(t *testing.T) {
	t.Parallel()
	l := newLoader(t, map[string]string{
		"release.json": releaseDoc,
		"hotfix.json":  `{"name":"hotfix","steps":[{"type":"shell-command","order":1,"command":"true"}]}`,
		"bad.json":     `{`,
		"notes.txt":    "ignored",
	})

	list, err := l.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "hotfix", list[0].Name)
	assert.Equal(t, "release", list[1].Name)
	assert.Equal(t, 3, list[1].TotalSteps)
	assert.Equal(t, "OPS-42", list[1].Ticket)
}

func TestLoader_ListMissingDir(t *testing.T) {
	t.Parallel()
	l := NewLoader(filepath.Join(t.TempDir(), "nope"))

	list, err := l.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLoader_Save(t *testing.T) {
	t.Parallel()
	l := newLoader(t, nil)

	// Prime the cache so Save has something to invalidate.
	list, err := l.List()
	require.NoError(t, err)
	require.Empty(t, list)

	tpl := &Template{
		Name:       "rollout",
		TotalSteps: 99,
		Steps: step.List{
			&step.ShellCommand{Base: step.Base{Order: 1}, Command: "uptime"},
			&step.RemotePlaybook{Base: step.Base{Order: 2}, Playbook: "site"},
		},
	}
	require.NoError(t, l.Save(tpl))
	assert.Equal(t, 2, tpl.TotalSteps)

	got, err := l.Get("rollout")
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalSteps)
	assert.Equal(t, step.TypeRemotePlaybook, got.Steps[1].StepType())

	list, err = l.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	entries, err := os.ReadDir(l.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLoader_SaveRejectsInvalid(t *testing.T) {
	t.Parallel()
	l := newLoader(t, nil)

	tests := []struct {
		name string
		tpl  *Template
	}{
		{"no name", &Template{Steps: step.List{&step.ShellCommand{Base: step.Base{Order: 1}, Command: "x"}}}},
		{"bad name", &Template{Name: "../x", Steps: step.List{&step.ShellCommand{Base: step.Base{Order: 1}, Command: "x"}}}},
		{"no steps", &Template{Name: "empty"}},
		{"invalid step", &Template{Name: "bad", Steps: step.List{&step.ShellCommand{Base: step.Base{Order: 1}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, l.Save(tt.tpl), apperrors.ErrValidation)
		})
	}
}

func TestLoader_WatchInvalidatesCatalog(t *testing.T) {
	t.Parallel()
	l := newLoader(t, map[string]string{"release.json": releaseDoc})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Watch(ctx) }()

	list, err := l.List()
	require.NoError(t, err)
	require.Len(t, list, 1)

	testutil.MustWaitFor(t, func() bool {
		testutil.WriteFiles(t, l.Dir(), map[string]string{
			"hotfix.json": `{"name":"hotfix","steps":[{"type":"shell-command","order":1,"command":"true"}]}`,
		})
		list, err := l.List()
		return err == nil && len(list) == 2
	}, testutil.WithTimeout(5*time.Second), testutil.WithInterval(50*time.Millisecond))
}

func TestParseFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"ok.json":  releaseDoc,
		"bad.json": `{"name":"bad","steps":[{"type":"sql-deployment","order":1}]}`,
	})

	tpl, err := ParseFile(filepath.Join(dir, "ok.json"))
	require.NoError(t, err)
	assert.Equal(t, "release", tpl.Name)

	_, err = ParseFile(filepath.Join(dir, "bad.json"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
