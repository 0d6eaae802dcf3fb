package job

import (
	"deployd/internal/apperrors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// record is the mutable state of one job. Fields are guarded by mu; the
// registry lock only guards the map itself.
type record struct {
	mu          sync.RWMutex
	id          string
	seq         uint64
	kind        Kind
	status      Status
	createdAt   time.Time
	updatedAt   time.Time
	finishedAt  *time.Time
	logs        []string
	params      Parameters
	currentStep int
	totalSteps  int
	submittedBy string
	callback    *Callback
}

// Registry is the in-memory source of truth for deployment jobs.
// Each job has its own lock so one job's writer never blocks readers or
// writers of another job.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*record
	seq  uint64

	history *snapshotFile // nil disables persistence
	now     func() time.Time
	logger  *slog.Logger
}

// NewRegistry creates a registry. historyFile may be empty to keep history in
// memory only.
func NewRegistry(historyFile string) *Registry {
	r := &Registry{
		jobs:   make(map[string]*record),
		now:    time.Now,
		logger: slog.With("component", "registry"),
	}
	if historyFile != "" {
		r.history = &snapshotFile{path: historyFile}
	}
	return r
}

// Create registers a new pending job and returns its id.
func (r *Registry) Create(kind Kind, params Parameters, submittedBy string, callback *Callback) string {
	now := r.now().UTC()

	r.mu.Lock()
	id := uuid.NewString()
	for r.jobs[id] != nil {
		id = uuid.NewString()
	}
	r.seq++
	r.jobs[id] = &record{
		id:          id,
		seq:         r.seq,
		kind:        kind,
		status:      StatusPending,
		createdAt:   now,
		updatedAt:   now,
		logs:        []string{},
		params:      params.clone(),
		submittedBy: submittedBy,
		callback:    callback.clone(),
	}
	r.mu.Unlock()

	r.persist()
	return id
}

func (r *Registry) lookup(id string) (*record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.jobs[id]
	if !ok {
		return nil, apperrors.NotFound("deployment", id)
	}
	return rec, nil
}

// AppendLog appends a timestamped line to the job's log.
func (r *Registry) AppendLog(id, line string) error {
	rec, err := r.lookup(id)
	if err != nil {
		return err
	}

	now := r.now()
	rec.mu.Lock()
	rec.logs = append(rec.logs, fmt.Sprintf("%s - %s", now.Format(LogTimeFormat), line))
	rec.updatedAt = now.UTC()
	rec.mu.Unlock()
	return nil
}

// SetStatus moves the job to status. Only forward transitions are accepted:
// pending to running or failed, running to success or failed.
func (r *Registry) SetStatus(id string, status Status) error {
	rec, err := r.lookup(id)
	if err != nil {
		return err
	}

	now := r.now().UTC()
	rec.mu.Lock()
	if !slices.Contains(transitions[rec.status], status) {
		from := rec.status
		rec.mu.Unlock()
		return apperrors.Conflict("deployment", id, fmt.Sprintf("cannot move deployment from %s to %s", from, status))
	}
	rec.status = status
	rec.updatedAt = now
	if status.Terminal() {
		rec.finishedAt = &now
	}
	rec.mu.Unlock()

	r.persist()
	return nil
}

// SetProgress records the step pointer.
func (r *Registry) SetProgress(id string, current, total int) error {
	rec, err := r.lookup(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	rec.currentStep = current
	rec.totalSteps = total
	rec.updatedAt = r.now().UTC()
	rec.mu.Unlock()
	return nil
}

// Get returns the job's state.
func (r *Registry) Get(id string) (*View, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return &View{
		ID:          rec.id,
		Kind:        rec.kind,
		Status:      rec.status,
		CreatedAt:   rec.createdAt,
		UpdatedAt:   rec.updatedAt,
		FinishedAt:  rec.finishedAt,
		CurrentStep: rec.currentStep,
		TotalSteps:  rec.totalSteps,
		SubmittedBy: rec.submittedBy,
		LogCount:    len(rec.logs),
		Parameters:  rec.params.clone(),
	}, nil
}

// Logs returns the job's status and a copy of its log lines.
func (r *Registry) Logs(id string) (*LogsView, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return &LogsView{
		ID:        rec.id,
		Status:    rec.status,
		Logs:      slices.Clone(rec.logs),
		CreatedAt: rec.createdAt,
		Kind:      rec.kind,
	}, nil
}

// Callback returns a copy of the job's callback configuration, if any.
func (r *Registry) Callback(id string) (*Callback, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.callback.clone(), nil
}

// Parameters returns the job's input snapshot.
func (r *Registry) Parameters(id string) (Parameters, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return Parameters{}, err
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.params.clone(), nil
}

// List returns every job, most recent first.
func (r *Registry) List() []Summary {
	recs := r.records()
	return lo.Map(recs, func(rec *record, _ int) Summary {
		rec.mu.RLock()
		defer rec.mu.RUnlock()
		return Summary{ID: rec.id, Kind: rec.kind, Status: rec.status, CreatedAt: rec.createdAt}
	})
}

// Counts returns the number of jobs per status.
func (r *Registry) Counts() map[Status]int {
	return lo.CountValuesBy(r.List(), func(s Summary) Status { return s.Status })
}

// records returns the records newest first.
func (r *Registry) records() []*record {
	r.mu.RLock()
	recs := lo.Values(r.jobs)
	r.mu.RUnlock()

	// createdAt and seq are immutable, so no record lock is needed here.
	slices.SortFunc(recs, func(a, b *record) int {
		if c := b.createdAt.Compare(a.createdAt); c != 0 {
			return c
		}
		return int(b.seq) - int(a.seq)
	})
	return recs
}
