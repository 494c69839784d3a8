// Package relay forwards authenticated pipeline runs to a worker and streams its events back.
package relay

import (
	"fmt"
	"io"

	"nereus/pkg/api"
	"nereus/pkg/auth"
	"nereus/pkg/client"
	"nereus/pkg/ingest"
	"nereus/pkg/ownership"
	"nereus/pkg/util/context"

	"github.com/pkg/errors"
)

// Relay sits between callers and a worker.
type Relay struct {
	worker   client.Client
	verifier auth.Verifier
	owners   ownership.Store
}

// New returns a new Relay
func New(worker client.Client, v auth.Verifier, owners ownership.Store) *Relay {
	if owners == nil {
		owners = ownership.NewMemoryStore()
	}
	return &Relay{
		worker:   worker,
		verifier: v,
		owners:   owners,
	}
}

// Authenticate returns the identity of the caller presenting the given Authorization header.
func (r *Relay) Authenticate(authorization string) (string, error) {
	return auth.Subject(r.verifier, authorization)
}

// Run authenticates the caller, validates the upload and forwards it to the worker.
// Errors returned happen before anything is streamed. Once streaming, failures
// are sent as events and the returned channel always ends with the sentinel frame.
func (r *Relay) Run(ctx context.Context, up client.Upload, authorization string) (<-chan []byte, error) {
	user, err := r.Authenticate(authorization)
	if err != nil {
		return nil, err
	}
	if err := ingest.ValidateFilename(up.Filename); err != nil {
		return nil, err
	}
	size, err := up.Content.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, api.WrapError(err, api.KindValidation, "Error reading file")
	}
	if size == 0 {
		return nil, api.NewError(api.KindValidation, "Empty file uploaded")
	}

	up.UserID = user
	ctx = context.WithUserID(ctx, user)
	ctx.Logger().Infof("relaying pipeline request for file %s (%d bytes)", up.Filename, size)

	out := make(chan []byte)
	go func() {
		defer close(out)
		sink(ctx, adapt(ctx, r.source(ctx, up)), out)
	}()
	return out, nil
}

// Download returns the result archive of a job.
func (r *Relay) Download(ctx context.Context, jobID, authorization string) (io.ReadCloser, error) {
	if err := r.authorize(ctx, jobID, authorization); err != nil {
		return nil, err
	}
	rc, err := r.worker.Download(ctx, jobID)
	if err != nil {
		return nil, upstreamError(err, "Download failed")
	}
	return rc, nil
}

// Files returns the file tree of a job output.
func (r *Relay) Files(ctx context.Context, jobID, authorization string) (api.JobFiles, error) {
	if err := r.authorize(ctx, jobID, authorization); err != nil {
		return api.JobFiles{}, err
	}
	files, err := r.worker.Files(ctx, jobID)
	if err != nil {
		return api.JobFiles{}, upstreamError(err, "Failed to get files")
	}
	return files, nil
}

// Health returns the combined health of the relay and the worker.
func (r *Relay) Health(ctx context.Context) api.RelayHealth {
	h := api.RelayHealth{Status: "healthy", MainBackend: "running"}
	wh, err := r.worker.Health(ctx)
	switch {
	case err == nil:
		h.GPUServer = wh
	case errors.As(err, &client.ErrUnavailable{}):
		ctx.Logger().Errorf("health check failed: %s", err)
		h.Status = "unhealthy"
		h.GPUServer = fmt.Sprintf("error: %s", err)
	default:
		ctx.Logger().Warnf("worker is unhealthy: %s", err)
		h.Status = "unhealthy"
		h.GPUServer = "unreachable"
	}
	return h
}

// authorize checks the caller may access the job.
// Jobs owned by someone else are reported as not found.
func (r *Relay) authorize(ctx context.Context, jobID, authorization string) error {
	user, err := r.Authenticate(authorization)
	if err != nil {
		return err
	}
	ok, err := ownership.Allowed(ctx, r.owners, jobID, user)
	if err != nil {
		return errors.Wrapf(err, "cannot check owner of job %s", jobID)
	}
	if !ok {
		ctx.Logger().Warnf("user %s denied access to job %s", user, jobID)
		return api.NewError(api.KindNotFound, "Job not found")
	}
	return nil
}

// upstreamError converts a worker client error into the error returned to callers.
// Worker statuses other than not found are kept as they are.
func upstreamError(err error, msg string) error {
	switch {
	case errors.As(err, &client.ErrUnavailable{}):
		return api.WrapError(err, api.KindUpstreamUnavailable, "GPU server unavailable")
	case errors.As(err, &client.ErrNotFound{}):
		return api.WrapError(err, api.KindNotFound, msg)
	case errors.As(err, &client.ErrBadRequest{}):
		return api.WrapError(err, api.KindValidation, msg)
	case errors.As(err, &client.ErrStatus{}):
		return err
	}
	return errors.Wrap(err, msg)
}
