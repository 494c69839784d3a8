package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nereus/pkg/api"
	"nereus/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)
	r := New(s)

	list, err := r.List(ctx)
	require.NoError(t, err)
	assert.True(t, list.WorkDirExists)
	assert.Equal(t, 0, list.TotalJobs)
	assert.NotNil(t, list.Jobs)

	var jobs []store.Job
	for i := 0; i < 3; i++ {
		j, err := s.CreateJob(ctx)
		require.NoError(t, err)
		jobs = append(jobs, j)
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, s.Transition(ctx, jobs[1].ID, api.StatusStarted, ""))
	require.NoError(t, s.Transition(ctx, jobs[2].ID, api.StatusStarted, ""))
	require.NoError(t, s.Transition(ctx, jobs[2].ID, api.StatusFailed, "boom"))

	list, err = r.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, list.TotalJobs)
	assert.Equal(t, s.WorkRoot(), list.WorkDir)

	// newest first
	assert.Equal(t, jobs[2].ID, list.Jobs[0].JobID)
	assert.Equal(t, jobs[1].ID, list.Jobs[1].JobID)
	assert.Equal(t, jobs[0].ID, list.Jobs[2].JobID)

	assert.Equal(t, api.StatusFailed, list.Jobs[0].Status)
	assert.Equal(t, api.StatusStarted, list.Jobs[1].Status)
	assert.Equal(t, api.StatusUnknown, list.Jobs[2].Status)
	assert.True(t, list.Jobs[0].HasOutput)
	assert.ElementsMatch(t, []string{"input", "output", "job.json"}, list.Jobs[2].Contents)
	assert.NotNil(t, list.Jobs[0].EndedAt)
}

func TestListMissingWorkDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "work")
	s, err := store.NewFSStore(root)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(root))

	list, err := New(s).List(context.Background())
	require.NoError(t, err)
	assert.False(t, list.WorkDirExists)
	assert.Empty(t, list.Jobs)
}

func TestExpired(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)
	r := New(s)

	done, err := s.CreateJob(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Transition(ctx, done.ID, api.StatusStarted, ""))
	require.NoError(t, s.Transition(ctx, done.ID, api.StatusCompleted, ""))
	running, err := s.CreateJob(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Transition(ctx, running.ID, api.StatusStarted, ""))

	ids, err := r.Expired(ctx, time.Hour, time.Now())
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = r.Expired(ctx, time.Hour, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{done.ID}, ids)
}
