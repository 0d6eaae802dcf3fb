package job

import (
	"deployd/internal/apperrors"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// InterruptedMessage is logged on jobs found unfinished when history is loaded.
const InterruptedMessage = "interrupted by service restart"

const snapshotVersion = 1

type snapshotDocument struct {
	Version     int           `json:"version"`
	SavedAt     time.Time     `json:"savedAt"`
	Deployments []snapshotJob `json:"deployments"`
}

// snapshotJob is the persisted form of a record. The callback signing key is
// not written to disk.
type snapshotJob struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"type"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	CurrentStep int        `json:"currentStep"`
	TotalSteps  int        `json:"totalSteps"`
	SubmittedBy string     `json:"submittedBy,omitempty"`
	Parameters  Parameters `json:"parameters"`
	Logs        []string   `json:"logs"`
}

// snapshotFile rewrites the whole history document atomically.
type snapshotFile struct {
	mu   sync.Mutex // one writer at a time
	path string
}

// write captures the document under the writer lock so a slower writer can
// never replace a newer snapshot with an older one.
func (f *snapshotFile) write(capture func() *snapshotDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(capture(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".deployments-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *snapshotFile) read() (*snapshotDocument, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return &doc, nil
}

// document captures the full registry, oldest first.
func (r *Registry) document() *snapshotDocument {
	recs := r.records()
	doc := &snapshotDocument{
		Version:     snapshotVersion,
		SavedAt:     r.now().UTC(),
		Deployments: make([]snapshotJob, 0, len(recs)),
	}
	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]
		rec.mu.RLock()
		doc.Deployments = append(doc.Deployments, snapshotJob{
			ID:          rec.id,
			Kind:        rec.kind,
			Status:      rec.status,
			CreatedAt:   rec.createdAt,
			UpdatedAt:   rec.updatedAt,
			FinishedAt:  rec.finishedAt,
			CurrentStep: rec.currentStep,
			TotalSteps:  rec.totalSteps,
			SubmittedBy: rec.submittedBy,
			Parameters:  rec.params.clone(),
			Logs:        append([]string(nil), rec.logs...),
		})
		rec.mu.RUnlock()
	}
	return doc
}

// persist writes the snapshot. Failures are logged; the in-memory registry
// stays authoritative.
func (r *Registry) persist() {
	if r.history == nil {
		return
	}
	if err := r.history.write(r.document); err != nil {
		r.logger.Warn("Failed to write deployment history", "path", r.history.path, "error", err)
	}
}

// Flush writes the snapshot and reports any error.
func (r *Registry) Flush() error {
	if r.history == nil {
		return nil
	}
	if err := r.history.write(r.document); err != nil {
		return apperrors.Internal("registry.snapshot", err)
	}
	return nil
}

// Load restores history from the snapshot file. Jobs that were pending or
// running when the snapshot was written are marked failed. Jobs already in
// the registry are left alone. Returns the number of jobs restored.
func (r *Registry) Load() (int, error) {
	if r.history == nil {
		return 0, nil
	}
	doc, err := r.history.read()
	if err != nil {
		return 0, apperrors.Internal("registry.load", err)
	}
	if doc == nil {
		return 0, nil
	}

	now := r.now()
	interrupted := 0
	loaded := 0

	r.mu.Lock()
	for _, sj := range doc.Deployments {
		if sj.ID == "" || r.jobs[sj.ID] != nil {
			continue
		}
		r.seq++
		rec := &record{
			id:          sj.ID,
			seq:         r.seq,
			kind:        sj.Kind,
			status:      sj.Status,
			createdAt:   sj.CreatedAt,
			updatedAt:   sj.UpdatedAt,
			finishedAt:  sj.FinishedAt,
			logs:        sj.Logs,
			params:      sj.Parameters,
			currentStep: sj.CurrentStep,
			totalSteps:  sj.TotalSteps,
			submittedBy: sj.SubmittedBy,
		}
		if rec.logs == nil {
			rec.logs = []string{}
		}
		if !rec.status.Terminal() {
			finished := now.UTC()
			rec.status = StatusFailed
			rec.finishedAt = &finished
			rec.updatedAt = finished
			rec.logs = append(rec.logs, fmt.Sprintf("%s - %s", now.Format(LogTimeFormat), InterruptedMessage))
			interrupted++
		}
		r.jobs[sj.ID] = rec
		loaded++
	}
	r.mu.Unlock()

	if interrupted > 0 {
		r.persist()
	}
	r.logger.Info("Deployment history loaded", "jobs", loaded, "interrupted", interrupted)
	return loaded, nil
}
