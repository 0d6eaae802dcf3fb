package job

import (
	"deployd/internal/apperrors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	t.Parallel()
	r := NewRegistry("")

	id := r.Create(KindFile, Parameters{Files: []string{"app.conf"}, TargetPath: "/etc/app"}, "alice", nil)
	require.NotEmpty(t, id)

	view, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, view.ID)
	assert.Equal(t, KindFile, view.Kind)
	assert.Equal(t, StatusPending, view.Status)
	assert.Equal(t, "alice", view.SubmittedBy)
	assert.Equal(t, []string{"app.conf"}, view.Files)
	assert.Nil(t, view.FinishedAt)
}

func TestRegistry_GetUnknown(t *testing.T) {
	t.Parallel()
	r := NewRegistry("")

	_, err := r.Get("nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = r.Logs("nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.ErrorIs(t, r.AppendLog("nope", "x"), apperrors.ErrNotFound)
	assert.ErrorIs(t, r.SetStatus("nope", StatusRunning), apperrors.ErrNotFound)
}

func TestRegistry_ParametersAreSnapshotted(t *testing.T) {
	t.Parallel()
	r := NewRegistry("")

	params := Parameters{TargetHosts: []string{"web1"}, Variables: map[string]string{"v": "1"}}
	id := r.Create(KindTemplate, params, "", nil)

	params.TargetHosts[0] = "mutated"
	params.Variables["v"] = "2"

	got, err := r.Parameters(id)
	require.NoError(t, err)
	assert.Equal(t, "web1", got.TargetHosts[0])
	assert.Equal(t, "1", got.Variables["v"])
}

func TestRegistry_StatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    []Status
		wantErr bool
	}{
		{"pending to running to success", []Status{StatusRunning, StatusSuccess}, false},
		{"pending to running to failed", []Status{StatusRunning, StatusFailed}, false},
		{"pending to failed", []Status{StatusFailed}, false},
		{"pending to success", []Status{StatusSuccess}, true},
		{"running twice", []Status{StatusRunning, StatusRunning}, true},
		{"success to running", []Status{StatusRunning, StatusSuccess, StatusRunning}, true},
		{"failed to success", []Status{StatusFailed, StatusSuccess}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewRegistry("")
			id := r.Create(KindSQL, Parameters{}, "", nil)

			var err error
			for _, s := range tt.path {
				if err = r.SetStatus(id, s); err != nil {
					break
				}
			}
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrConflict)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistry_TerminalSetsFinishedAt(t *testing.T) {
	t.Parallel()
	r := NewRegistry("")
	id := r.Create(KindSQL, Parameters{}, "", nil)

	require.NoError(t, r.SetStatus(id, StatusRunning))
	require.NoError(t, r.SetStatus(id, StatusSuccess))

	view, err := r.Get(id)
	require.NoError(t, err)
	require.NotNil(t, view.FinishedAt)
}

func TestRegistry_AppendLogFormat(t *testing.T) {
	t.Parallel()
	r := NewRegistry("")
	r.now = func() time.Time { return time.Date(2026, 3, 1, 14, 5, 9, 0, time.UTC) }
	id := r.Create(KindSQL, Parameters{}, "", nil)

	require.NoError(t, r.AppendLog(id, "Starting step 1"))

	logs, err := r.Logs(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-01 14:05:09 - Starting step 1"}, logs.Logs)
}

func TestRegistry_LogsAreCopies(t *testing.T) {
	t.Parallel()
	r := NewRegistry("")
	id := r.Create(KindSQL, Parameters{}, "", nil)
	require.NoError(t, r.AppendLog(id, "one"))

	first, _ := r.Logs(id)
	first.Logs[0] = "tampered"

	second, _ := r.Logs(id)
	assert.True(t, strings.HasSuffix(second.Logs[0], "one"))
}

func TestRegistry_ListNewestFirst(t *testing.T) {
	t.Parallel()
	r := NewRegistry("")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := range 3 {
		r.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		ids = append(ids, r.Create(KindFile, Parameters{}, "", nil))
	}

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[1], list[1].ID)
	assert.Equal(t, ids[0], list[2].ID)
}

func TestRegistry_ListSameTimestamp(t *testing.T) {
	t.Parallel()
	r := NewRegistry("")
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	first := r.Create(KindFile, Parameters{}, "", nil)
	second := r.Create(KindFile, Parameters{}, "", nil)

	list := r.List()
	assert.Equal(t, second, list[0].ID)
	assert.Equal(t, first, list[1].ID)
}

func TestRegistry_ConcurrentCreates(t *testing.T) {
	t.Parallel()
	r := NewRegistry("")

	const n = 200
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- r.Create(KindSQL, Parameters{}, "", nil)
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Len(t, r.List(), n)
}

func TestRegistry_ConcurrentAppendAndRead(t *testing.T) {
	t.Parallel()
	r := NewRegistry("")

	const jobs, lines = 8, 100
	ids := make([]string, jobs)
	for i := range ids {
		ids[i] = r.Create(KindTemplate, Parameters{}, "", nil)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range lines {
				_ = r.AppendLog(id, fmt.Sprintf("line %d", i))
			}
		}()
		go func() {
			defer wg.Done()
			prev := 0
			for range lines {
				logs, err := r.Logs(id)
				if err != nil {
					t.Error(err)
					return
				}
				if len(logs.Logs) < prev {
					t.Errorf("log shrank from %d to %d", prev, len(logs.Logs))
				}
				prev = len(logs.Logs)
				_ = r.List()
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		logs, err := r.Logs(id)
		require.NoError(t, err)
		require.Len(t, logs.Logs, lines)
		for i, line := range logs.Logs {
			assert.True(t, strings.HasSuffix(line, fmt.Sprintf("line %d", i)), "line %d out of order: %s", i, line)
		}
	}
}

func TestRegistry_Counts(t *testing.T) {
	t.Parallel()
	r := NewRegistry("")
	a := r.Create(KindSQL, Parameters{}, "", nil)
	r.Create(KindSQL, Parameters{}, "", nil)
	require.NoError(t, r.SetStatus(a, StatusFailed))

	counts := r.Counts()
	assert.Equal(t, 1, counts[StatusPending])
	assert.Equal(t, 1, counts[StatusFailed])
}
