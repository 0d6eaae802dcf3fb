// Package job holds deployment job records: the request model, the
// concurrency-safe registry every status endpoint reads from, and the
// history snapshot that survives restarts.
package job

import (
	"time"
)

// Kind is the deployment flavour. The single-file and single-sql kinds run a
// one-step plan built from the request itself.
type Kind string

const (
	KindFile     Kind = "file"
	KindSQL      Kind = "sql"
	KindTemplate Kind = "template"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// transitions lists the allowed next states for each state.
var transitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusFailed},
	StatusRunning: {StatusSuccess, StatusFailed},
}

// Parameters is the kind-specific input snapshot captured at submission.
type Parameters struct {
	// file
	Files       []string `json:"files,omitempty"`
	TargetPath  string   `json:"targetPath,omitempty"`
	TargetUser  string   `json:"targetUser,omitempty"`
	TargetHosts []string `json:"targetHosts,omitempty"`
	Mode        string   `json:"mode,omitempty"`

	// sql
	Database string `json:"database,omitempty"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	DBName   string `json:"dbName,omitempty"`
	User     string `json:"user,omitempty"`
	File     string `json:"file,omitempty"`

	// template
	Template  string            `json:"templateName,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
}

// clone returns a deep copy so callers cannot mutate a stored snapshot.
func (p Parameters) clone() Parameters {
	out := p
	out.Files = append([]string(nil), p.Files...)
	out.TargetHosts = append([]string(nil), p.TargetHosts...)
	if p.Variables != nil {
		out.Variables = make(map[string]string, len(p.Variables))
		for k, v := range p.Variables {
			out.Variables[k] = v
		}
	}
	return out
}

// Callback represents callback configuration for a job
type Callback struct {
	URL    string   `json:"url"`
	Events []string `json:"events,omitempty"`
	Key    string   `json:"key,omitempty"` // HMAC signing key
}

func (c *Callback) clone() *Callback {
	if c == nil {
		return nil
	}
	out := *c
	out.Events = append([]string(nil), c.Events...)
	return &out
}

// Request is a deployment submission.
type Request struct {
	Kind Kind `json:"kind"`
	Parameters
	Callback *Callback `json:"callback,omitempty"`
}

// SubmitResponse is returned when a deployment is accepted.
type SubmitResponse struct {
	ID string `json:"deploymentId"`
}

// View is the full state of one job.
type View struct {
	ID          string     `json:"deploymentId"`
	Kind        Kind       `json:"type"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"timestamp"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	CurrentStep int        `json:"currentStep"`
	TotalSteps  int        `json:"totalSteps"`
	SubmittedBy string     `json:"submittedBy,omitempty"`
	LogCount    int        `json:"logCount"`
	Parameters
}

// LogsView is a job's status with its log lines.
type LogsView struct {
	ID        string    `json:"deploymentId"`
	Status    Status    `json:"status"`
	Logs      []string  `json:"logs"`
	CreatedAt time.Time `json:"timestamp"`
	Kind      Kind      `json:"type"`
}

// Summary is one row of the job listing.
type Summary struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"type"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"timestamp"`
}

// LogTimeFormat prefixes every job log line.
const LogTimeFormat = "2006-01-02 15:04:05"
