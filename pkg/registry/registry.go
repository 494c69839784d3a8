// Package registry lists the jobs of a store for operational visibility.
package registry

import (
	"context"
	"os"
	"sort"
	"time"

	"nereus/pkg/api"
	"nereus/pkg/store"

	"github.com/pkg/errors"
)

// Registry enumerates jobs with their derived status
type Registry struct {
	store store.Store
}

// New returns a Registry over s
func New(s store.Store) Registry {
	return Registry{store: s}
}

// List returns all jobs, newest first.
func (r Registry) List(ctx context.Context) (api.JobList, error) {
	res := api.JobList{
		Jobs:    []api.JobSummary{},
		WorkDir: r.store.WorkRoot(),
	}
	if fi, err := os.Stat(res.WorkDir); err != nil || !fi.IsDir() {
		return res, nil
	}
	res.WorkDirExists = true

	ids, err := r.store.ListJobIDs(ctx)
	if err != nil {
		return api.JobList{}, errors.Wrap(err, "cannot list jobs")
	}
	for _, id := range ids {
		sum, err := r.Summary(ctx, id)
		if errors.As(errors.Cause(err), &store.ErrNotFound{}) {
			// deleted while listing
			continue
		}
		if err != nil {
			return api.JobList{}, err
		}
		res.Jobs = append(res.Jobs, sum)
	}
	sort.SliceStable(res.Jobs, func(i, j int) bool {
		return res.Jobs[i].Created.After(res.Jobs[j].Created)
	})
	res.TotalJobs = len(res.Jobs)
	return res, nil
}

// Summary returns the summary of a single job.
func (r Registry) Summary(ctx context.Context, id string) (api.JobSummary, error) {
	job, err := r.store.GetJob(ctx, id)
	if err != nil {
		return api.JobSummary{}, err
	}
	rec, err := r.store.GetRecord(ctx, id)
	if err != nil {
		return api.JobSummary{}, errors.Wrapf(err, "cannot read record of job %s", id)
	}
	sum := api.JobSummary{
		JobID:     id,
		Created:   job.CreatedAt,
		Status:    rec.Status,
		Contents:  []string{},
		StartedAt: rec.StartedAt,
		EndedAt:   rec.EndedAt,
	}
	if fi, err := os.Stat(job.OutputDir); err == nil && fi.IsDir() {
		sum.HasOutput = true
	}
	entries, err := os.ReadDir(job.RootDir)
	if err != nil {
		return api.JobSummary{}, errors.Wrapf(err, "cannot list job directory %s", job.RootDir)
	}
	for _, e := range entries {
		sum.Contents = append(sum.Contents, e.Name())
	}
	return sum, nil
}

// Expired returns the ids of finished jobs that ended before now minus maxAge.
func (r Registry) Expired(ctx context.Context, maxAge time.Duration, now time.Time) ([]string, error) {
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, j := range list.Jobs {
		if !j.Status.Finished() || j.EndedAt == nil {
			continue
		}
		if now.Sub(*j.EndedAt) > maxAge {
			ids = append(ids, j.JobID)
		}
	}
	return ids, nil
}
