package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"nereus/pkg/api"
	"nereus/pkg/archive"
	"nereus/pkg/broker"
	"nereus/pkg/client"
	"nereus/pkg/filetree"
	"nereus/pkg/util/context"
	"nereus/pkg/util/fsutil"
	"nereus/pkg/util/server"

	"github.com/labstack/echo/v4"
)

const (
	resultsArchive = "results.zip"
	serviceName    = "nereus-worker"
)

func (h handlers) Download(c echo.Context) error {
	ctx := server.Context(c)
	id := c.Param(client.JobIDParam)
	ctx = context.WithJobID(ctx, id)

	job, err := h.store.GetJob(ctx, id)
	if err != nil {
		return server.HTTPError(err, fmt.Sprintf("Job directory not found: %s", id))
	}
	dest := filepath.Join(job.RootDir, resultsArchive)
	n, err := archive.PackFile(ctx, job.OutputDir, dest)
	if err != nil {
		ctx.Logger().Errorf("cannot package results: %s", err)
		return server.HTTPError(err, fmt.Sprintf("Job results not found: %s", id))
	}
	ctx.Logger().Infof("packaged %d result files", n)
	return c.Attachment(dest, client.ArchiveName(id))
}

func (h handlers) DownloadFile(c echo.Context) error {
	ctx := server.Context(c)
	id := c.Param(client.JobIDParam)

	job, err := h.store.GetJob(ctx, id)
	if err != nil {
		return server.HTTPError(err, "File not found")
	}
	p, ok := fsutil.Resolve(job.OutputDir, c.QueryParam(client.FilePathQuery))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid file path")
	}
	if fi, err := os.Stat(p); err != nil || fi.IsDir() {
		return echo.NewHTTPError(http.StatusNotFound, "File not found")
	}
	return c.Attachment(p, filepath.Base(p))
}

func (h handlers) Files(c echo.Context) error {
	ctx := server.Context(c)
	id := c.Param(client.JobIDParam)

	job, err := h.store.GetJob(ctx, id)
	if err != nil {
		return server.HTTPError(err, "Job not found")
	}
	if fi, err := os.Stat(job.OutputDir); err != nil || !fi.IsDir() {
		return echo.NewHTTPError(http.StatusNotFound, "Job not found")
	}
	return c.JSON(http.StatusOK, api.JobFiles{
		JobID: id,
		Files: filetree.Build(job.OutputDir),
	})
}

func (h handlers) Jobs(c echo.Context) error {
	ctx := server.Context(c)
	list, err := h.registry.List(ctx)
	if err != nil {
		return server.HTTPError(err, "")
	}
	return c.JSON(http.StatusOK, list)
}

func (h handlers) DeleteJob(c echo.Context) error {
	ctx := server.Context(c)
	id := c.Param(client.JobIDParam)
	ctx = context.WithJobID(ctx, id)

	if err := h.store.DeleteJob(ctx, id); err != nil {
		return server.HTTPError(err, "Job not found")
	}
	ctx.Logger().Info("job cleaned up")
	broker.Notify(ctx, h.broker, broker.TypeDeleted, "")
	return c.JSON(http.StatusOK, api.Message{Message: fmt.Sprintf("Job %s cleaned up", id)})
}

func (h handlers) Health(c echo.Context) error {
	st := h.exec.Script()
	res := api.Health{
		Status:           "healthy",
		Service:          serviceName,
		ScriptPath:       st.Path,
		ScriptExists:     st.Exists,
		ScriptExecutable: st.Executable,
		WorkDir:          h.store.WorkRoot(),
	}
	if fi, err := os.Stat(res.WorkDir); err == nil && fi.IsDir() {
		res.WorkDirExists = true
	}
	return c.JSON(http.StatusOK, res)
}
