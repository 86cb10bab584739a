package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cadastre-cli/internal/model"
	"github.com/sells-group/cadastre-cli/internal/store"
)

// mockStore implements store.Store for testing.
type mockStore struct {
	jobs    []model.Job
	listErr error
	filter  store.JobFilter
}

func (m *mockStore) ListJobs(_ context.Context, filter store.JobFilter) ([]model.Job, error) {
	m.filter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	var filtered []model.Job
	for _, j := range m.jobs {
		if !filter.CreatedAfter.IsZero() && j.CreatedAt.Before(filter.CreatedAfter) {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		filtered = append(filtered, j)
	}
	return filtered, nil
}

// Unused store methods satisfy the interface.
func (m *mockStore) CreateJob(context.Context, model.JobRequest) (*model.Job, error) {
	return nil, nil
}
func (m *mockStore) MarkRunning(context.Context, string) error                   { return nil }
func (m *mockStore) CompleteJob(context.Context, string, *model.JobResult) error { return nil }
func (m *mockStore) FailJob(context.Context, string, string) error               { return nil }
func (m *mockStore) GetJob(context.Context, string) (*model.Job, error)          { return nil, nil }
func (m *mockStore) Migrate(context.Context) error                               { return nil }
func (m *mockStore) Close() error                                                { return nil }

func succeeded(rows, ok int, age time.Duration) model.Job {
	return model.Job{
		Status: model.JobStatusSuccess,
		Result: &model.JobResult{
			TotalRows:   rows,
			SuccessRows: ok,
			SuccessRate: model.NewRate(ok, rows),
			FailureRate: model.NewRate(rows-ok, rows),
		},
		CreatedAt: time.Now().UTC().Add(-age),
	}
}

func withStatus(status model.JobStatus, age time.Duration) model.Job {
	return model.Job{Status: status, CreatedAt: time.Now().UTC().Add(-age)}
}

func TestCollector_EmptyStore(t *testing.T) {
	c := NewCollector(&mockStore{})

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 0, snap.JobsTotal)
	assert.Equal(t, 0.0, snap.JobFailRate)
	assert.Equal(t, 0.0, snap.AvgRowSuccessRate)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestCollector_CountsStatuses(t *testing.T) {
	st := &mockStore{jobs: []model.Job{
		succeeded(4, 3, time.Hour),
		succeeded(2, 1, time.Hour),
		withStatus(model.JobStatusFailure, time.Hour),
		withStatus(model.JobStatusPending, time.Minute),
		withStatus(model.JobStatusRunning, time.Minute),
	}}

	snap, err := NewCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 5, snap.JobsTotal)
	assert.Equal(t, 2, snap.Succeeded)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.Pending)
	assert.Equal(t, 1, snap.Running)
	assert.InDelta(t, 1.0/3.0, snap.JobFailRate, 1e-9)
	assert.Equal(t, 2, snap.RatedJobs)
	assert.InDelta(t, 0.625, snap.AvgRowSuccessRate, 1e-9)
	assert.Equal(t, 6, snap.RowsProcessed)
	assert.Equal(t, collectLimit, st.filter.Limit)
}

func TestCollector_SkipsUnratedJobs(t *testing.T) {
	st := &mockStore{jobs: []model.Job{
		succeeded(0, 0, time.Hour),
		succeeded(10, 10, time.Hour),
	}}

	snap, err := NewCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 1, snap.RatedJobs)
	assert.InDelta(t, 1.0, snap.AvgRowSuccessRate, 1e-9)
}

func TestCollector_LookbackWindow(t *testing.T) {
	st := &mockStore{jobs: []model.Job{
		withStatus(model.JobStatusFailure, 48*time.Hour),
		succeeded(1, 1, time.Hour),
	}}

	snap, err := NewCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 1, snap.JobsTotal)
	assert.Equal(t, 0, snap.Failed)
	assert.WithinDuration(t, time.Now().UTC().Add(-24*time.Hour), st.filter.CreatedAfter, time.Minute)
}

func TestCollector_ListError(t *testing.T) {
	st := &mockStore{listErr: errors.New("db down")}

	_, err := NewCollector(st).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list jobs")
}
