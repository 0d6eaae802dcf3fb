// Package orchestrator runs submitted deployments on background tasks.
//
// Each deployment gets its own goroutine. Steps execute strictly in ascending
// order, every log line and status change is committed to the registry before
// the next step starts, and the first failed step stops the deployment.
package orchestrator

import (
	"context"
	"deployd/internal/apperrors"
	"deployd/internal/command"
	"deployd/internal/config"
	"deployd/internal/job"
	"deployd/internal/notify"
	"deployd/internal/step"
	"deployd/internal/template"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Log lines written by the orchestrator itself.
const (
	MessageCompleted = "Deployment completed successfully"
	MessageQueued    = "Waiting for a free execution slot"
)

// TemplateSource resolves a named template for one run.
type TemplateSource interface {
	Load(name string, vars map[string]string) (*template.Template, error)
}

// Notifier accepts callback events for asynchronous delivery.
type Notifier interface {
	Dispatch(event *notify.Event) error
}

// Recorder receives deployment and step metrics.
type Recorder interface {
	RecordDeploymentSubmitted(ctx context.Context, kind string)
	RecordDeploymentStarted(ctx context.Context, kind string)
	RecordDeploymentFinished(ctx context.Context, kind string, success bool, durationSeconds float64)
	RecordStep(ctx context.Context, stepType, outcome string, durationSeconds float64)
}

// Config holds the orchestrator's collaborators. Notifier, Metrics and Docker
// are optional.
type Config struct {
	Runner    command.Runner
	Docker    step.ContainerExecer
	Inventory step.Resolver
	Templates TemplateSource
	Notifier  Notifier
	Metrics   Recorder

	ArtifactDir string
	SQLDir      string
	WorkDir     string
	Tools       config.ToolConfig

	// MaxConcurrent bounds running deployments. Zero means unlimited.
	MaxConcurrent int
	// EventSource is the CloudEvents source attribute of callbacks.
	EventSource string
}

// Orchestrator validates submissions, records them in the registry and
// executes them.
type Orchestrator struct {
	registry *job.Registry
	cfg      Config
	slots    *semaphore.Weighted // nil when unlimited
	logger   *slog.Logger

	wg      sync.WaitGroup
	running atomic.Int64
}

// New creates an orchestrator writing to registry.
func New(registry *job.Registry, cfg Config) *Orchestrator {
	if cfg.EventSource == "" {
		cfg.EventSource = "deployd"
	}
	o := &Orchestrator{
		registry: registry,
		cfg:      cfg,
		logger:   slog.With("component", "orchestrator"),
	}
	if cfg.MaxConcurrent > 0 {
		o.slots = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return o
}

// Registry returns the registry jobs are recorded in.
func (o *Orchestrator) Registry() *job.Registry {
	return o.registry
}

// Submit validates req, creates the job and starts executing it. It returns
// as soon as the job is registered.
func (o *Orchestrator) Submit(ctx context.Context, req *job.Request, submittedBy string) (string, error) {
	if req == nil {
		return "", apperrors.Validation("kind", "request body is required")
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	id := o.registry.Create(req.Kind, req.Parameters, submittedBy, req.Callback)
	o.logger.InfoContext(ctx, "Deployment submitted",
		"deployment_id", id,
		"kind", req.Kind,
		"submitted_by", submittedBy,
	)
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.RecordDeploymentSubmitted(ctx, string(req.Kind))
	}

	// Detached from the request: the job outlives the HTTP call.
	o.wg.Add(1)
	go o.supervise(id, req.Kind)

	return id, nil
}

// Running returns the number of deployments currently executing steps.
func (o *Orchestrator) Running() int {
	return int(o.running.Load())
}

// Wait blocks until every submitted deployment has finished or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%d deployment(s) still running: %w", o.Running(), ctx.Err())
	}
}

// supervise is the outermost boundary of a job's task. A panic anywhere below
// is logged into the job and fails it without touching other jobs.
// The run works from the registry's input snapshot, never from the caller's
// request, which may be reused once Submit returns.
func (o *Orchestrator) supervise(id string, kind job.Kind) {
	defer o.wg.Done()

	r := &run{
		o:      o,
		id:     id,
		req:    &job.Request{Kind: kind},
		logger: o.logger.With("deployment_id", id, "kind", kind),
		events: job.NewEventBuilder(id, kind, o.cfg.EventSource),
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Deployment panicked", "panic", p, "stack", string(debug.Stack()))
			cause := fmt.Errorf("unexpected error: %v", p)
			r.log(cause.Error())
			r.finish(job.StatusFailed, cause)
		}
	}()

	params, err := o.registry.Parameters(id)
	if err != nil {
		r.logger.Error("Deployment vanished before it started", "error", err)
		return
	}
	r.req.Parameters = params
	r.req.Callback, _ = o.registry.Callback(id)

	r.execute(context.Background())
}

// run is the state of one executing deployment.
type run struct {
	o      *Orchestrator
	id     string
	req    *job.Request
	logger *slog.Logger
	events *job.EventBuilder

	started   time.Time
	isRunning bool
	finished  bool
}

func (r *run) execute(ctx context.Context) {
	if r.o.slots != nil {
		if !r.o.slots.TryAcquire(1) {
			r.log(MessageQueued)
			if err := r.o.slots.Acquire(ctx, 1); err != nil {
				r.finish(job.StatusFailed, err)
				return
			}
		}
		defer r.o.slots.Release(1)
	}

	if err := r.o.registry.SetStatus(r.id, job.StatusRunning); err != nil {
		r.logger.Error("Failed to start deployment", "error", err)
		return
	}
	r.isRunning = true
	r.started = time.Now()
	r.o.running.Add(1)
	defer r.o.running.Add(-1)
	if r.o.cfg.Metrics != nil {
		r.o.cfg.Metrics.RecordDeploymentStarted(ctx, string(r.req.Kind))
	}

	steps, err := r.plan()
	if err != nil {
		r.log(fmt.Sprintf("Failed to resolve deployment plan: %v", err))
		r.finish(job.StatusFailed, err)
		return
	}

	total := len(steps)
	_ = r.o.registry.SetProgress(r.id, 0, total)
	r.log(fmt.Sprintf("Deployment started: %d step(s)", total))
	r.notify(job.EventTypeStart, r.events.BuildStartEvent(total))

	env := r.env()
	for i, s := range steps {
		if err := r.runStep(ctx, env, s, i+1, total); err != nil {
			r.finish(job.StatusFailed, err)
			return
		}
	}

	r.log(MessageCompleted)
	r.finish(job.StatusSuccess, nil)
}

// plan returns the ordered steps of the deployment. Templates are loaded
// once here, so later edits to the document do not affect this run.
func (r *run) plan() (step.List, error) {
	switch r.req.Kind {
	case job.KindTemplate:
		if r.o.cfg.Templates == nil {
			return nil, apperrors.Internal("orchestrator.plan", errors.New("no template source configured"))
		}
		t, err := r.o.cfg.Templates.Load(r.req.Template, r.req.Variables)
		if err != nil {
			return nil, err
		}
		r.log(fmt.Sprintf("Loaded template %s (%d steps)", t.Name, len(t.Steps)))
		return t.Steps, nil
	default:
		s, err := r.req.SingleStep()
		if err != nil {
			return nil, apperrors.Validation("kind", err.Error())
		}
		return step.List{s}, nil
	}
}

func (r *run) env() *step.Env {
	return &step.Env{
		JobID:       r.id,
		Runner:      r.o.cfg.Runner,
		Docker:      r.o.cfg.Docker,
		Inventory:   r.o.cfg.Inventory,
		ArtifactDir: r.o.cfg.ArtifactDir,
		SQLDir:      r.o.cfg.SQLDir,
		WorkDir:     r.o.cfg.WorkDir,
		Tools:       r.o.cfg.Tools,
	}
}

// runStep executes one step and commits its log lines. A non-nil return
// stops the deployment.
func (r *run) runStep(ctx context.Context, env *step.Env, s step.Step, position, total int) error {
	_ = r.o.registry.SetProgress(r.id, position, total)
	r.log(fmt.Sprintf("Step %d/%d started (order %d): %s", position, total, s.StepOrder(), s.Describe()))

	start := time.Now()
	res, err := s.Execute(ctx, env)
	if err != nil {
		r.logger.Error("Step faulted", "order", s.StepOrder(), "type", s.StepType(), "error", err)
		res = &step.Result{Outcome: step.OutcomeFailed, Err: apperrors.Internal("step.execute", err)}
	}
	duration := time.Since(start)

	for _, line := range res.Output {
		r.log(line)
	}
	if r.o.cfg.Metrics != nil {
		r.o.cfg.Metrics.RecordStep(ctx, s.StepType(), string(res.Outcome), duration.Seconds())
	}
	r.notify(job.EventTypeStep, r.events.BuildStepEvent(s.StepOrder(), s.StepType(), string(res.Outcome), res.Err))

	if !res.Succeeded() {
		reason := res.Err
		if reason == nil {
			reason = errors.New("step reported failure")
		}
		r.log(fmt.Sprintf("Step %d/%d failed: %v", position, total, reason))
		if hint := apperrors.HintOf(reason); hint != "" {
			r.log("Hint: " + hint)
		}
		return reason
	}

	if n := len(res.Warnings); n > 0 {
		r.log(fmt.Sprintf("Step %d/%d completed with %d warning(s)", position, total, n))
	} else {
		r.log(fmt.Sprintf("Step %d/%d completed", position, total))
	}
	return nil
}

// finish moves the job to a terminal status once.
func (r *run) finish(status job.Status, cause error) {
	if r.finished {
		return
	}
	r.finished = true

	if err := r.o.registry.SetStatus(r.id, status); err != nil {
		r.logger.Error("Failed to record final status", "status", status, "error", err)
	}
	if r.isRunning && r.o.cfg.Metrics != nil {
		r.o.cfg.Metrics.RecordDeploymentFinished(context.Background(), string(r.req.Kind), status == job.StatusSuccess, time.Since(r.started).Seconds())
	}
	r.notify(job.EventTypeExit, r.events.BuildExitEvent(status, cause))

	attrs := []any{"status", status}
	if r.isRunning {
		attrs = append(attrs, "duration", time.Since(r.started))
	}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	r.logger.Info("Deployment finished", attrs...)
}

// log appends a line to the job's own log and mirrors it at debug level.
func (r *run) log(line string) {
	if err := r.o.registry.AppendLog(r.id, line); err != nil {
		r.logger.Error("Failed to append log", "error", err)
		return
	}
	r.logger.Debug(line)
}

func (r *run) notify(eventType string, event *notify.CloudEvent) {
	cb := r.req.Callback
	if r.o.cfg.Notifier == nil || cb == nil || cb.URL == "" {
		return
	}
	if !job.FilteredEvents(eventType, cb.Events) {
		return
	}
	if err := r.o.cfg.Notifier.Dispatch(&notify.Event{
		Payload:     event,
		Destination: cb.URL,
		SigningKey:  cb.Key,
	}); err != nil {
		r.logger.Warn("Callback event dropped", "event_type", eventType, "error", err)
	}
}
