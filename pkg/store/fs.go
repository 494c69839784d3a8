package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"nereus/pkg/api"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// NewFSStore returns a Store keeping each job in its own directory under workRoot.
// workRoot is created if missing.
func NewFSStore(workRoot string) (Store, error) {
	if workRoot == "" {
		return nil, errors.New("work root is not set")
	}
	abs, err := filepath.Abs(workRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve work root %s", workRoot)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, errors.Wrapf(err, "cannot create work root %s", abs)
	}
	return &fsStore{
		root: abs,
		now:  time.Now,
	}, nil
}

type fsStore struct {
	root string
	now  func() time.Time
	// mu serializes status changes so a record and its marker are always written together
	mu sync.Mutex
}

func (s *fsStore) WorkRoot() string {
	return s.root
}

// validID returns true if id is a canonical uuid, anything else never names a job directory.
func validID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.String() == id
}

func (s *fsStore) layout(id string) Job {
	root := filepath.Join(s.root, id)
	return Job{
		ID:        id,
		RootDir:   root,
		InputDir:  filepath.Join(root, inputDirName),
		OutputDir: filepath.Join(root, outputDirName),
	}
}

func (s *fsStore) CreateJob(ctx context.Context) (Job, error) {
	job := s.layout(uuid.New().String())
	job.CreatedAt = s.now().UTC()

	for _, dir := range []string{job.InputDir, job.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			os.RemoveAll(job.RootDir)
			return Job{}, errors.Wrapf(err, "cannot create directory %s", dir)
		}
	}
	rec := Record{
		JobID:       job.ID,
		Status:      api.StatusUnknown,
		CreatedAt:   job.CreatedAt,
		Transitions: []Transition{},
	}
	if err := s.writeRecord(job, rec); err != nil {
		os.RemoveAll(job.RootDir)
		return Job{}, err
	}
	return job, nil
}

func (s *fsStore) GetJob(ctx context.Context, id string) (Job, error) {
	if !validID(id) {
		return Job{}, NotFoundError(fmt.Sprintf("job %s", id))
	}
	job := s.layout(id)
	fi, err := os.Stat(job.RootDir)
	if err != nil || !fi.IsDir() {
		return Job{}, NotFoundError(fmt.Sprintf("job %s", id))
	}
	job.CreatedAt = fi.ModTime().UTC()
	rec, ok, err := s.readRecord(job)
	if err != nil {
		return Job{}, err
	}
	if ok {
		job.CreatedAt = rec.CreatedAt
	}
	return job, nil
}

func (s *fsStore) Transition(ctx context.Context, id string, to api.Status, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	rec, err := s.record(job)
	if err != nil {
		return err
	}
	if rec.Status == to {
		return nil
	}
	if !CanTransition(rec.Status, to) {
		return ErrInvalidTransition{From: rec.Status, To: to}
	}

	now := s.now().UTC()
	rec.Transitions = append(rec.Transitions, Transition{From: rec.Status, To: to, At: now})
	rec.Status = to
	if message != "" {
		rec.Message = message
	}
	switch to {
	case api.StatusStarted:
		rec.StartedAt = &now
	case api.StatusCompleted, api.StatusFailed:
		rec.EndedAt = &now
	}
	if err := s.writeRecord(job, rec); err != nil {
		return err
	}
	return s.writeMarker(job, to, now, message)
}

func (s *fsStore) writeMarker(job Job, status api.Status, at time.Time, message string) error {
	name, ok := markers[status]
	if !ok {
		return nil
	}
	if err := os.MkdirAll(job.OutputDir, 0755); err != nil {
		return errors.Wrapf(err, "cannot create directory %s", job.OutputDir)
	}
	content := fmt.Sprintf("Job %s %s at %s", job.ID, status, at.Format(time.RFC3339))
	if message != "" {
		content += ": " + message
	}
	p := filepath.Join(job.OutputDir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		return errors.Wrapf(err, "cannot write marker %s", p)
	}
	return nil
}

func (s *fsStore) GetStatus(ctx context.Context, id string) (api.Status, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return api.StatusUnknown, err
	}
	rec, err := s.record(job)
	if err != nil {
		return api.StatusUnknown, err
	}
	return rec.Status, nil
}

func (s *fsStore) GetRecord(ctx context.Context, id string) (Record, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return Record{}, err
	}
	return s.record(job)
}

// record returns the persisted record of job, or one built from its markers,
// with the status derived from both.
func (s *fsStore) record(job Job) (Record, error) {
	rec, ok, err := s.readRecord(job)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		rec = Record{
			JobID:       job.ID,
			Status:      api.StatusUnknown,
			CreatedAt:   job.CreatedAt,
			Transitions: []Transition{},
		}
	}
	statuses := []api.Status{rec.Status}
	for status, name := range markers {
		fi, err := os.Stat(filepath.Join(job.OutputDir, name))
		if err != nil {
			continue
		}
		statuses = append(statuses, status)
		mt := fi.ModTime().UTC()
		switch status {
		case api.StatusStarted:
			if rec.StartedAt == nil {
				rec.StartedAt = &mt
			}
		default:
			if rec.EndedAt == nil {
				rec.EndedAt = &mt
			}
		}
	}
	rec.Status = api.Highest(statuses...)
	return rec, nil
}

func (s *fsStore) readRecord(job Job) (Record, bool, error) {
	p := filepath.Join(job.RootDir, recordFile)
	b, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, errors.Wrapf(err, "cannot read job record %s", p)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, false, errors.Wrapf(err, "cannot decode job record %s", p)
	}
	rec.Status = api.ParseStatus(string(rec.Status))
	return rec, true, nil
}

func (s *fsStore) writeRecord(job Job, rec Record) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrap(err, "cannot encode job record")
	}
	f, err := os.CreateTemp(job.RootDir, ".job-*.json")
	if err != nil {
		return errors.Wrapf(err, "cannot create job record for job %s", job.ID)
	}
	tmp := f.Name()
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "cannot write job record for job %s", job.ID)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "cannot write job record for job %s", job.ID)
	}
	if err := os.Rename(tmp, filepath.Join(job.RootDir, recordFile)); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "cannot save job record for job %s", job.ID)
	}
	return nil
}

func (s *fsStore) ListJobIDs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot list work root %s", s.root)
	}
	ids := []string{}
	for _, e := range entries {
		if e.IsDir() && validID(e.Name()) {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

func (s *fsStore) DeleteJob(ctx context.Context, id string) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(job.RootDir); err != nil {
		return errors.Wrapf(err, "cannot delete job %s", id)
	}
	return nil
}
