package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"nereus/pkg/api"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestCreateJob(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	job, err := s.CreateJob(ctx)
	require.NoError(t, err)
	for _, dir := range []string{job.RootDir, job.InputDir, job.OutputDir} {
		assert.DirExists(t, dir)
	}
	assert.Equal(t, filepath.Join(s.WorkRoot(), job.ID), job.RootDir)

	status, err := s.GetStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, api.StatusUnknown, status)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.OutputDir, got.OutputDir)
	assert.True(t, job.CreatedAt.Equal(got.CreatedAt))
}

func TestGetJobNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, id := range []string{uuid.New().String(), "../etc", "", "not-a-uuid"} {
		_, err := s.GetJob(ctx, id)
		assert.True(t, errors.As(errors.Cause(err), &ErrNotFound{}), id)
		_, err = s.GetStatus(ctx, id)
		assert.True(t, errors.As(errors.Cause(err), &ErrNotFound{}), id)
	}
}

func TestTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("completed", func(t *testing.T) {
		s := newTestStore(t)
		job, err := s.CreateJob(ctx)
		require.NoError(t, err)

		require.NoError(t, s.Transition(ctx, job.ID, api.StatusStarted, ""))
		assert.FileExists(t, filepath.Join(job.OutputDir, MarkerStarted))
		require.NoError(t, s.Transition(ctx, job.ID, api.StatusCompleted, ""))
		assert.FileExists(t, filepath.Join(job.OutputDir, MarkerCompleted))

		rec, err := s.GetRecord(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, api.StatusCompleted, rec.Status)
		require.NotNil(t, rec.StartedAt)
		require.NotNil(t, rec.EndedAt)
		require.Len(t, rec.Transitions, 2)
		assert.Equal(t, Transition{From: api.StatusUnknown, To: api.StatusStarted, At: rec.Transitions[0].At}, rec.Transitions[0])
		assert.Equal(t, api.StatusCompleted, rec.Transitions[1].To)
	})

	t.Run("terminal is final", func(t *testing.T) {
		s := newTestStore(t)
		job, err := s.CreateJob(ctx)
		require.NoError(t, err)

		require.NoError(t, s.Transition(ctx, job.ID, api.StatusStarted, ""))
		require.NoError(t, s.Transition(ctx, job.ID, api.StatusFailed, "Process failed with return code: 1"))

		// same status is a no-op
		require.NoError(t, s.Transition(ctx, job.ID, api.StatusFailed, ""))

		err = s.Transition(ctx, job.ID, api.StatusCompleted, "")
		require.Error(t, err)
		assert.Equal(t, ErrInvalidTransition{From: api.StatusFailed, To: api.StatusCompleted}, errors.Cause(err))
		assert.NoFileExists(t, filepath.Join(job.OutputDir, MarkerCompleted))

		b, err := os.ReadFile(filepath.Join(job.OutputDir, MarkerFailed))
		require.NoError(t, err)
		assert.Contains(t, string(b), "Process failed with return code: 1")
	})

	t.Run("must start first", func(t *testing.T) {
		s := newTestStore(t)
		job, err := s.CreateJob(ctx)
		require.NoError(t, err)

		err = s.Transition(ctx, job.ID, api.StatusCompleted, "")
		assert.True(t, errors.As(err, &ErrInvalidTransition{}))
		err = s.Transition(ctx, job.ID, api.StatusUnknown, "")
		require.NoError(t, err)
	})

	t.Run("not found", func(t *testing.T) {
		s := newTestStore(t)
		err := s.Transition(ctx, uuid.New().String(), api.StatusStarted, "")
		assert.True(t, errors.As(errors.Cause(err), &ErrNotFound{}))
	})
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(api.StatusUnknown, api.StatusStarted))
	assert.True(t, CanTransition(api.StatusStarted, api.StatusCompleted))
	assert.True(t, CanTransition(api.StatusStarted, api.StatusFailed))
	assert.False(t, CanTransition(api.StatusUnknown, api.StatusFailed))
	assert.False(t, CanTransition(api.StatusCompleted, api.StatusFailed))
	assert.False(t, CanTransition(api.StatusFailed, api.StatusStarted))
}

func TestStatusPrecedence(t *testing.T) {
	ctx := context.Background()

	write := func(t *testing.T, dir string, names ...string) {
		for _, n := range names {
			require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0644))
		}
	}

	tests := []struct {
		name    string
		markers []string
		want    api.Status
	}{
		{"none", nil, api.StatusUnknown},
		{"started", []string{MarkerStarted}, api.StatusStarted},
		{"started and completed", []string{MarkerStarted, MarkerCompleted}, api.StatusCompleted},
		{"started and failed", []string{MarkerStarted, MarkerFailed}, api.StatusFailed},
		{"all", []string{MarkerStarted, MarkerCompleted, MarkerFailed}, api.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			job, err := s.CreateJob(ctx)
			require.NoError(t, err)
			write(t, job.OutputDir, tt.markers...)

			status, err := s.GetStatus(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}

	t.Run("without record", func(t *testing.T) {
		s := newTestStore(t)
		id := uuid.New().String()
		out := filepath.Join(s.WorkRoot(), id, "output")
		require.NoError(t, os.MkdirAll(out, 0755))
		write(t, out, MarkerStarted, MarkerFailed)

		rec, err := s.GetRecord(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, api.StatusFailed, rec.Status)
		assert.NotNil(t, rec.EndedAt)
	})
}

func TestRecordPersisted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	job, err := s.CreateJob(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Transition(ctx, job.ID, api.StatusStarted, ""))

	b, err := os.ReadFile(filepath.Join(job.RootDir, "job.json"))
	require.NoError(t, err)
	var rec Record
	require.NoError(t, json.Unmarshal(b, &rec))
	assert.Equal(t, job.ID, rec.JobID)
	assert.Equal(t, api.StatusStarted, rec.Status)
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	j1, err := s.CreateJob(ctx)
	require.NoError(t, err)
	j2, err := s.CreateJob(ctx)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(s.WorkRoot(), "lost+found"), 0755))

	ids, err := s.ListJobIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{j1.ID, j2.ID}, ids)

	require.NoError(t, s.DeleteJob(ctx, j1.ID))
	assert.NoDirExists(t, j1.RootDir)

	err = s.DeleteJob(ctx, j1.ID)
	assert.True(t, errors.As(errors.Cause(err), &ErrNotFound{}))
}
