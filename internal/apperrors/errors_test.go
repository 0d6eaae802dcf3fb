package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestValidation(t *testing.T) {
	t.Parallel()
	err := Validation("kind", "deployment kind is required")

	if !errors.Is(err, ErrValidation) {
		t.Error("expected error to match ErrValidation")
	}
	if err.Error() != "deployment kind is required" {
		t.Errorf("unexpected message %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Field != "kind" {
		t.Errorf("expected field 'kind', got %q", appErr.Field)
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	err := NotFound("deployment", "abc123")

	if !errors.Is(err, ErrNotFound) {
		t.Error("expected error to match ErrNotFound")
	}
	if err.Error() != "deployment abc123 not found" {
		t.Errorf("unexpected message %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Resource != "deployment" {
		t.Errorf("expected resource 'deployment', got %q", appErr.Resource)
	}
}

func TestToolUnavailable(t *testing.T) {
	t.Parallel()
	err := ToolUnavailable("psql", "install postgresql-client")

	if !errors.Is(err, ErrToolUnavailable) {
		t.Error("expected error to match ErrToolUnavailable")
	}
	if err.Error() != `required tool "psql" not found in PATH` {
		t.Errorf("unexpected message %q", err.Error())
	}
	if HintOf(err) != "install postgresql-client" {
		t.Errorf("expected hint to be preserved, got %q", HintOf(err))
	}
	if HintOf(fmt.Errorf("wrapped: %w", err)) != "install postgresql-client" {
		t.Error("expected hint through wrapping")
	}
}

func TestExecutionFailure(t *testing.T) {
	t.Parallel()
	err := ExecutionFailure("sql-deployment", "exit status 3")

	if !errors.Is(err, ErrExecution) {
		t.Error("expected error to match ErrExecution")
	}
	if err.Error() != "sql-deployment: exit status 3" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestInternal(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("disk full")
	err := Internal("registry.snapshot", cause)

	if !errors.Is(err, ErrInternal) {
		t.Error("expected error to match ErrInternal")
	}
	if err.Error() != "registry.snapshot: disk full" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Cause != cause {
		t.Error("expected cause to be preserved")
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", Validation("id", "required"), http.StatusBadRequest},
		{"not found", NotFound("deployment", "123"), http.StatusNotFound},
		{"conflict", Conflict("deployment", "123", "exists"), http.StatusConflict},
		{"unauthorized", Unauthorized("missing token"), http.StatusUnauthorized},
		{"forbidden", Forbidden("admin role required"), http.StatusForbidden},
		{"tool unavailable", ToolUnavailable("ansible-playbook", ""), http.StatusServiceUnavailable},
		{"execution", ExecutionFailure("op", "boom"), http.StatusInternalServerError},
		{"internal", Internal("op", fmt.Errorf("fail")), http.StatusInternalServerError},
		{"wrapped validation", fmt.Errorf("wrap: %w", Validation("f", "m")), http.StatusBadRequest},
		{"unknown error", fmt.Errorf("unknown"), http.StatusInternalServerError},
		{"nil error", nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := HTTPStatus(tt.err); got != tt.expected {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.expected)
			}
		})
	}
}
