package main

import (
	"bytes"
	"deployd/internal/testutil"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestTemplatesValidate(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"good.json": `{"name":"good","steps":[{"type":"shell-command","order":1,"command":"true"}]}`,
		"bad.json":  `{"name":"bad","steps":[{"type":"teleport","order":1}]}`,
	})

	out, err := execute(t, "", "templates", "validate", filepath.Join(dir, "good.json"))
	if err != nil {
		t.Fatalf("Expected valid template, got %v: %s", err, out)
	}
	if !strings.Contains(out, "ok (good, 1 steps)") {
		t.Errorf("Unexpected output: %s", out)
	}

	out, err = execute(t, "", "templates", "validate", filepath.Join(dir, "good.json"), filepath.Join(dir, "bad.json"))
	if err == nil {
		t.Fatalf("Expected error for invalid template: %s", out)
	}
	if !strings.Contains(out, "bad.json") {
		t.Errorf("Expected bad.json to be reported: %s", out)
	}
}

func TestTemplatesList(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"templates/web.json": `{"name":"web","description":"web tier","steps":[{"type":"shell-command","order":1,"command":"true"}]}`,
	})

	out, err := execute(t, "", "templates", "list", "--config-dir", dir)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "web\t1\tweb tier") {
		t.Errorf("Unexpected output: %q", out)
	}
}

func TestUsersHashPassword(t *testing.T) {
	out, err := execute(t, "hunter2\n", "users", "hash-password")
	if err != nil {
		t.Fatalf("hash-password failed: %v", err)
	}
	hash := strings.TrimSpace(out)
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")) != nil {
		t.Errorf("Expected a bcrypt hash of the password, got %q", hash)
	}

	if _, err := execute(t, "", "users", "hash-password"); err == nil {
		t.Error("Expected error for empty password")
	}
}
