package classifier

import (
	"context"
	"fmt"
	"testing"
)

func TestPatternClassifier_Categories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		lines        []string
		wantCategory string
		wantSeverity string
	}{
		{
			name:         "unreachable host",
			lines:        []string{"web2 | UNREACHABLE! => ssh: connect to host 10.0.0.2 port 22: Connection refused"},
			wantCategory: "connectivity",
			wantSeverity: SeverityError,
		},
		{
			name:         "missing psql",
			lines:        []string{`Step 1 failed: required tool "psql" not found in PATH`},
			wantCategory: "tool-missing",
			wantSeverity: SeverityCritical,
		},
		{
			name:         "permission",
			lines:        []string{"cp: cannot create regular file '/etc/app/app.conf': Permission denied"},
			wantCategory: "permission",
			wantSeverity: SeverityError,
		},
		{
			name:         "sql error",
			lines:        []string{`psql:/sql/001.sql:4: ERROR:  relation "orders" does not exist`},
			wantCategory: "sql",
			wantSeverity: SeverityError,
		},
		{
			name:         "timeout",
			lines:        []string{"Step 2 failed: sh: timed out after 30s"},
			wantCategory: "timeout",
			wantSeverity: SeverityError,
		},
		{
			name:         "missing artifact",
			lines:        []string{"Step 1 failed: artifact app.conf not found"},
			wantCategory: "missing-file",
			wantSeverity: SeverityError,
		},
		{
			name:         "clean",
			lines:        []string{"Step 1 completed", "Deployment completed successfully"},
			wantCategory: "none",
			wantSeverity: SeverityInfo,
		},
	}

	c := NewPatternClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, err := c.Classify(context.Background(), tt.lines, "job-1")
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if d.Category != tt.wantCategory {
				t.Errorf("Expected category %s, got %s", tt.wantCategory, d.Category)
			}
			if d.Severity != tt.wantSeverity {
				t.Errorf("Expected severity %s, got %s", tt.wantSeverity, d.Severity)
			}
			if d.DeploymentID != "job-1" {
				t.Errorf("Expected deploymentId job-1, got %s", d.DeploymentID)
			}
		})
	}
}

func TestPatternClassifier_MostHitsWins(t *testing.T) {
	t.Parallel()
	lines := []string{
		"Permission denied (publickey)",
		"host1 UNREACHABLE",
		"host2 UNREACHABLE",
		"host3 UNREACHABLE",
	}
	d, _ := NewPatternClassifier().Classify(context.Background(), lines, "j")
	if d.Category != "connectivity" {
		t.Errorf("Expected connectivity, got %s", d.Category)
	}
	if d.Confidence <= 0.5 || d.Confidence > 0.95 {
		t.Errorf("Unexpected confidence %v", d.Confidence)
	}
	if len(d.Evidence) != 3 {
		t.Errorf("Expected 3 evidence lines, got %d", len(d.Evidence))
	}
}

func TestPatternClassifier_Window(t *testing.T) {
	t.Parallel()
	lines := []string{"Permission denied"}
	for i := range WindowSize {
		lines = append(lines, fmt.Sprintf("ok line %d", i))
	}

	d, _ := NewPatternClassifier().Classify(context.Background(), lines, "j")
	if d.Category != "none" {
		t.Errorf("Expected lines outside the window to be ignored, got %s", d.Category)
	}
}

func TestPatternClassifier_Empty(t *testing.T) {
	t.Parallel()
	d, err := NewPatternClassifier().Classify(context.Background(), nil, "j")
	if err != nil {
		t.Fatal(err)
	}
	if d.Confidence != 0 {
		t.Errorf("Expected zero confidence for empty logs, got %v", d.Confidence)
	}
}

func TestPatternClassifier_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewPatternClassifier().Classify(ctx, []string{"x"}, "j"); err == nil {
		t.Error("Expected error for cancelled context")
	}
}
