// Package health provides health check functionality for liveness and readiness probes.
package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ReadinessChecker is implemented by dependencies that can report readiness,
// such as the docker executor.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult contains the result of a health check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the health check response.
type Response struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Check is a named readiness probe. A failing optional check degrades
// readiness instead of failing it.
type Check struct {
	Name     string
	Optional bool
	Run      func(ctx context.Context) error
}

// Checker performs health checks on dependencies.
type Checker struct {
	checks  []Check
	timeout time.Duration

	mu           sync.RWMutex
	lastCheck    time.Time
	cachedReady  *Response
	shuttingDown bool
}

// NewChecker creates a new health checker.
func NewChecker(checks ...Check) *Checker {
	return &Checker{
		checks:  checks,
		timeout: 5 * time.Second,
	}
}

// Add registers another readiness check.
func (c *Checker) Add(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, check)
	c.cachedReady = nil
}

// Liveness returns true if the service is alive.
// It never touches dependencies; failing it should restart the process.
func (c *Checker) Liveness(ctx context.Context) *Response {
	return &Response{
		Status: StatusHealthy,
	}
}

// Readiness runs every registered check.
// Failing this probe should remove the instance from load balancer rotation.
func (c *Checker) Readiness(ctx context.Context) *Response {
	c.mu.RLock()
	if c.shuttingDown {
		c.mu.RUnlock()
		return &Response{
			Status: StatusUnhealthy,
			Checks: map[string]CheckResult{
				"shutdown": {Status: StatusUnhealthy, Message: "service is shutting down"},
			},
		}
	}

	// Use cached result if recent
	if c.cachedReady != nil && time.Since(c.lastCheck) < time.Second {
		cached := c.cachedReady
		c.mu.RUnlock()
		return cached
	}
	checks := append([]Check(nil), c.checks...)
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	overallStatus := StatusHealthy

	for _, check := range checks {
		result := c.run(ctx, check)
		results[check.Name] = result
		switch {
		case result.Status == StatusUnhealthy:
			overallStatus = StatusUnhealthy
		case result.Status == StatusDegraded && overallStatus == StatusHealthy:
			overallStatus = StatusDegraded
		}
	}

	response := &Response{
		Status: overallStatus,
		Checks: results,
	}

	c.mu.Lock()
	c.cachedReady = response
	c.lastCheck = time.Now()
	c.mu.Unlock()

	return response
}

func (c *Checker) run(ctx context.Context, check Check) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := check.Run(ctx); err != nil {
		status := StatusUnhealthy
		if check.Optional {
			status = StatusDegraded
		}
		return CheckResult{Status: status, Message: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// IsHealthy returns true if the overall status is healthy.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// IsServing reports whether the instance should receive traffic.
func (r *Response) IsServing() bool {
	return r.Status != StatusUnhealthy
}

// SetShuttingDown marks the service as shutting down.
// Readiness reports unhealthy from now on so load balancers stop sending traffic.
func (c *Checker) SetShuttingDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuttingDown = true
	c.cachedReady = nil
}

// DirReadable checks that dir exists and is a directory.
func DirReadable(name, dir string) Check {
	return Check{
		Name: name,
		Run: func(ctx context.Context) error {
			info, err := os.Stat(dir)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}
			return nil
		},
	}
}

// DirWritable checks that a file can be created in dir.
func DirWritable(name, dir string) Check {
	return Check{
		Name: name,
		Run: func(ctx context.Context) error {
			f, err := os.CreateTemp(dir, ".readyz-*")
			if err != nil {
				return err
			}
			path := f.Name()
			f.Close()
			return os.Remove(path)
		},
	}
}

// ToolsOnPath checks that every tool resolves on PATH. Missing tools degrade.
func ToolsOnPath(name string, tools ...string) Check {
	return Check{
		Name:     name,
		Optional: true,
		Run: func(ctx context.Context) error {
			var missing []string
			for _, tool := range tools {
				if _, err := exec.LookPath(tool); err != nil {
					missing = append(missing, filepath.Base(tool))
				}
			}
			if len(missing) == 0 {
				return nil
			}
			sort.Strings(missing)
			return fmt.Errorf("missing tools: %v", missing)
		},
	}
}

// Dependency adapts a ReadinessChecker into a required check.
func Dependency(name string, dep ReadinessChecker) Check {
	return Check{
		Name: name,
		Run: func(ctx context.Context) error {
			if dep == nil {
				return errors.New(name + " not configured")
			}
			return dep.Ready(ctx)
		},
	}
}
