// Package classifier turns a deployment's log lines into a short diagnosis.
package classifier

import (
	"context"
	"regexp"
	"slices"
	"strings"
)

// WindowSize is how many trailing log lines are classified.
const WindowSize = 200

// Severity levels, lowest first.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Diagnosis is a structured summary of a job's logs.
type Diagnosis struct {
	DeploymentID    string   `json:"deploymentId"`
	Summary         string   `json:"summary"`
	Severity        string   `json:"severity"`
	Category        string   `json:"category"`
	Recommendations []string `json:"recommendations"`
	Confidence      float64  `json:"confidence"`
	Evidence        []string `json:"evidence,omitempty"`
}

// Classifier produces a diagnosis from log lines.
type Classifier interface {
	Classify(ctx context.Context, lines []string, jobID string) (*Diagnosis, error)
}

type rule struct {
	category        string
	severity        string
	summary         string
	pattern         *regexp.Regexp
	recommendations []string
}

var defaultRules = []rule{
	{
		category: "tool-missing",
		severity: SeverityCritical,
		summary:  "A required tool is not installed on the deployment host",
		pattern:  regexp.MustCompile(`(?i)(not found in PATH|command not found|executable file not found)`),
		recommendations: []string{
			"Install the missing tool on the service host",
			"Check the *_BIN settings point at the right executables",
		},
	},
	{
		category: "connectivity",
		severity: SeverityError,
		summary:  "Target hosts could not be reached",
		pattern:  regexp.MustCompile(`(?i)(unreachable|connection (refused|timed out|reset)|no route to host|could not resolve|name or service not known|ssh: connect)`),
		recommendations: []string{
			"Verify the host addresses in the inventory",
			"Check SSH access and firewall rules from the service host",
		},
	},
	{
		category: "permission",
		severity: SeverityError,
		summary:  "The operation was denied by the target",
		pattern:  regexp.MustCompile(`(?i)(permission denied|access denied|not permitted|authentication failed|password authentication failed|must be owner)`),
		recommendations: []string{
			"Check the deploy user's privileges and sudo rules",
			"Verify credential files referenced by the inventory",
		},
	},
	{
		category: "missing-file",
		severity: SeverityError,
		summary:  "A referenced file does not exist",
		pattern:  regexp.MustCompile(`(?i)(no such file or directory|artifact .* not found|sql script .* not found|source file not found|could not find or access)`),
		recommendations: []string{
			"Upload the artifact or script before deploying",
			"Check file names in the request or template for typos",
		},
	},
	{
		category: "sql",
		severity: SeverityError,
		summary:  "The SQL script reported errors",
		pattern:  regexp.MustCompile(`(?i)(ERROR:\s+(relation|column|syntax|duplicate|permission|null value|insert or update|current transaction)|psql:.*ERROR)`),
		recommendations: []string{
			"Review the failing statement in the script output",
			"Make the migration idempotent before re-running it",
		},
	},
	{
		category: "timeout",
		severity: SeverityError,
		summary:  "An operation ran past its time limit",
		pattern:  regexp.MustCompile(`(?i)(timed out after|deadline exceeded|timeout)`),
		recommendations: []string{
			"Check whether the target is overloaded or hung",
			"Raise SHELL_TIMEOUT or REMOTE_TIMEOUT if the operation is legitimately slow",
		},
	},
	{
		category: "service",
		severity: SeverityWarning,
		summary:  "A systemd unit failed or could not be found",
		pattern:  regexp.MustCompile(`(?i)(unit .* not found|failed to (start|restart|stop)|Active: failed|job for .* failed)`),
		recommendations: []string{
			"Inspect journalctl -u <unit> on the affected host",
			"Confirm the unit name and that it is installed",
		},
	},
}

// PatternClassifier matches log lines against fixed rules and reports the
// rule with the most hits.
type PatternClassifier struct {
	rules  []rule
	window int
}

// NewPatternClassifier creates a classifier with the built-in rules.
func NewPatternClassifier() *PatternClassifier {
	return &PatternClassifier{rules: defaultRules, window: WindowSize}
}

// Classify implements Classifier.
func (c *PatternClassifier) Classify(ctx context.Context, lines []string, jobID string) (*Diagnosis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(lines) > c.window {
		lines = lines[len(lines)-c.window:]
	}

	best, bestHits := -1, 0
	var evidence []string
	for i, r := range c.rules {
		var hits []string
		for _, line := range lines {
			if r.pattern.MatchString(line) {
				hits = append(hits, line)
			}
		}
		if len(hits) > bestHits {
			best, bestHits, evidence = i, len(hits), hits
		}
	}

	if best < 0 {
		return c.clean(lines, jobID), nil
	}

	r := c.rules[best]
	if len(evidence) > 5 {
		evidence = evidence[len(evidence)-5:]
	}
	return &Diagnosis{
		DeploymentID:    jobID,
		Summary:         r.summary,
		Severity:        r.severity,
		Category:        r.category,
		Recommendations: slices.Clone(r.recommendations),
		Confidence:      confidence(bestHits),
		Evidence:        evidence,
	}, nil
}

func (c *PatternClassifier) clean(lines []string, jobID string) *Diagnosis {
	d := &Diagnosis{
		DeploymentID:    jobID,
		Summary:         "No known failure patterns found",
		Severity:        SeverityInfo,
		Category:        "none",
		Recommendations: []string{},
		Confidence:      0.5,
	}
	if len(lines) == 0 {
		d.Summary = "No log lines to analyze"
		d.Confidence = 0
		return d
	}
	last := strings.ToLower(lines[len(lines)-1])
	if strings.Contains(last, "completed successfully") {
		d.Summary = "Deployment completed without errors"
		d.Confidence = 0.9
	}
	return d
}

func confidence(hits int) float64 {
	c := 0.5 + 0.1*float64(hits)
	if c > 0.95 {
		return 0.95
	}
	return c
}

var _ Classifier = (*PatternClassifier)(nil)
