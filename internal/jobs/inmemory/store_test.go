package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/auditor-agent/internal/jobs"
)

func TestStore_SaveAndGetReturnCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	job := &jobs.AnalyzeJob{JobID: "j1", GCSURI: "gs://a/b.csv", Status: jobs.JobStatusPending}
	require.NoError(t, s.SaveJob(ctx, job))

	job.Status = jobs.JobStatusRunning
	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, got.Status, "store keeps its own copy")

	got.Status = jobs.JobStatusFailed
	again, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, again.Status)
}

func TestStore_SaveRequiresID(t *testing.T) {
	assert.Error(t, NewStore().SaveJob(context.Background(), &jobs.AnalyzeJob{}))
}

func TestStore_GetMissing(t *testing.T) {
	_, err := NewStore().GetJob(context.Background(), "nope")
	assert.True(t, errors.Is(err, jobs.ErrJobNotFound))
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

	seed := []*jobs.AnalyzeJob{
		{JobID: "a", GCSURI: "gs://x/1.csv", Status: jobs.JobStatusCompleted, CreatedAt: base},
		{JobID: "b", GCSURI: "gs://x/2.csv", Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Minute)},
		{JobID: "c", GCSURI: "gs://x/1.csv", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(2 * time.Minute)},
		{JobID: "d", GCSURI: "gs://x/3.csv", Status: jobs.JobStatusPending, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, j := range seed {
		require.NoError(t, s.SaveJob(ctx, j))
	}

	ids := func(js []*jobs.AnalyzeJob) []string {
		out := []string{}
		for _, j := range js {
			out = append(out, j.JobID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"c", "d", "b", "a"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusCompleted}, []string{"c", "a"}},
		{"by uri", jobs.JobFilter{GCSURI: "gs://x/1.csv"}, []string{"c", "a"}},
		{"limit", jobs.JobFilter{Limit: 2}, []string{"c", "d"}},
		{"offset", jobs.JobFilter{Offset: 3}, []string{"a"}},
		{"offset past end", jobs.JobFilter{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.SaveJob(ctx, &jobs.AnalyzeJob{JobID: "j1", Status: jobs.JobStatusRunning}))

	require.NoError(t, s.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "boom"))
	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	assert.True(t, errors.Is(s.UpdateJobStatus(ctx, "nope", jobs.JobStatusFailed, ""), jobs.ErrJobNotFound))
}
